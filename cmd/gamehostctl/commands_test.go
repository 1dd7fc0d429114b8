package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/r-heap47/gamehost/client"
	v1 "github.com/r-heap47/gamehost/internal/api/grpc/v1"
	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/installsignal"
	"github.com/r-heap47/gamehost/internal/orchestrator"
	"github.com/r-heap47/gamehost/internal/panel/memory"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
	"github.com/r-heap47/gamehost/internal/pkg/async"
	"github.com/r-heap47/gamehost/internal/repository"
)

// startDaemon serves the API over an in-memory listener and returns the dial option reaching it.
func startDaemon(t *testing.T) grpc.DialOption {
	t.Helper()

	signals := installsignal.NewMemory()
	t.Cleanup(func() { _ = signals.Close() })

	seed := memory.DefaultSeed()
	seed.InstallDelay = time.Hour
	seed.Signals = signals

	p, err := memory.New(context.Background(), seed)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	pool, err := async.NewPool(2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close(context.Background()) })

	binder := handle.NewBinder(handle.Config{Panel: p, Pool: pool})

	orc, err := orchestrator.New(orchestrator.Config{
		Binder:    binder,
		Signals:   signals,
		GrantMode: orchestrator.GrantNone,
	})
	require.NoError(t, err)

	repoCfg := &repository.Config{Binder: binder}
	impl := v1.New(&v1.Config{
		Orchestrator: orc,
		Servers:      repository.NewServers(repoCfg),
		Users:        repository.NewUsers(repoCfg),
		Binder:       binder,
	})

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	pbgamehost.RegisterProvisionerServer(srv, impl)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

// execute runs one gamehostctl invocation against the daemon behind dial.
func execute(t *testing.T, dial grpc.DialOption, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd(&out, dial)
	root.SetArgs(append([]string{"--addr", "passthrough:///bufnet", "--timeout", "5s"}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// TestRun_MissingArgs verifies that every command rejects a wrong argument count before calling the daemon.
func TestRun_MissingArgs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, err := client.New(ctx, "localhost:1")
	require.NoError(t, err)
	defer c.Close()

	tests := []struct {
		name string
		run  runFunc
		args []string
	}{
		{"user create", runUserCreate, nil},
		{"user find", runUserFind, []string{"email"}},
		{"user update", runUserUpdate, []string{"bob@example.net"}},
		{"user delete", runUserDelete, nil},
		{"user servers", runUserServers, nil},
		{"server create", runServerCreate, []string{"lobby", "bob@example.net", "paper", "2048"}},
		{"server find", runServerFind, []string{"name"}},
		{"server list", runServerList, []string{"1", "2", "3"}},
		{"server delete", runServerDelete, nil},
		{"server status", runServerStatus, nil},
		{"server usage", runServerUsage, nil},
		{"server power", runServerPower, []string{"abcd1234"}},
		{"server rename", runServerRename, []string{"abcd1234"}},
		{"server resources", runServerResources, []string{"abcd1234"}},
		{"server domain", runServerDomain, []string{"abcd1234"}},
		{"access allow", runAccessAllow, []string{"abcd1234"}},
		{"access disallow", runAccessDisallow, []string{"abcd1234"}},
		{"access check", runAccessCheck, []string{"abcd1234"}},
		{"placement", runPlacement, []string{"extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(ctx, c, tt.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "usage")
		})
	}
}

// TestParseResources verifies the key=value form of the resources command.
func TestParseResources(t *testing.T) {
	t.Parallel()

	req, err := parseResources("abcd1234", []string{"memory=3072", "cpu=50"})
	require.NoError(t, err)
	assert.Equal(t, "abcd1234", req.Identifier)
	require.NotNil(t, req.Memory)
	require.NotNil(t, req.CPU)
	assert.Equal(t, 3072, *req.Memory)
	assert.Equal(t, 50, *req.CPU)
	assert.Nil(t, req.Disk)

	bad := [][]string{
		{"ram=1024"},
		{"memory"},
		{"memory=lots"},
		{"disk=1", "disk=2"},
	}
	for _, args := range bad {
		_, err := parseResources("abcd1234", args)
		assert.Error(t, err, args)
	}
}

// TestParseUserUpdate verifies that only the given fields are set.
func TestParseUserUpdate(t *testing.T) {
	t.Parallel()

	req, err := parseUserUpdate("bob@example.net", []string{"username=robert"})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.net", req.Email)
	require.NotNil(t, req.NewUsername)
	assert.Equal(t, "robert", *req.NewUsername)
	assert.Nil(t, req.NewEmail)
	assert.Nil(t, req.NewPassword)

	_, err = parseUserUpdate("bob@example.net", []string{"tag=x"})
	assert.Error(t, err)
}

// TestParsePage verifies the optional page and size arguments.
func TestParsePage(t *testing.T) {
	t.Parallel()

	page, size, err := parsePage(nil)
	require.NoError(t, err)
	assert.Zero(t, page)
	assert.Zero(t, size)

	page, size, err = parsePage([]string{"2", "25"})
	require.NoError(t, err)
	assert.Equal(t, 2, page)
	assert.Equal(t, 25, size)

	_, _, err = parsePage([]string{"two"})
	assert.Error(t, err)
}

// TestRootCmd_RequiresAddr verifies that commands refuse to run without a daemon address.
func TestRootCmd_RequiresAddr(t *testing.T) {
	t.Parallel()

	root := newRootCmd(&bytes.Buffer{})
	root.SetArgs([]string{"--addr", "", "placement"})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GAMEHOST_ADDR")
}

// TestRootCmd_Flow verifies a provisioning session through the command tree.
func TestRootCmd_Flow(t *testing.T) {
	t.Parallel()

	dial := startDaemon(t)

	out, err := execute(t, dial, "user", "create", "bob", "bob@example.net", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, `"email": "bob@example.net"`)

	out, err = execute(t, dial, "server", "create", "lobby", "bob@example.net", "paper", "2048", "4096", "200")
	require.NoError(t, err)

	var srv client.Server
	require.NoError(t, json.Unmarshal([]byte(out), &srv))
	assert.Equal(t, "node-a", srv.Node)
	assert.Equal(t, "203.0.113.5:25565", srv.Address)

	out, err = execute(t, dial, "server", "list")
	require.NoError(t, err)
	assert.Contains(t, out, srv.Identifier)
	assert.Contains(t, out, "lobby")

	out, err = execute(t, dial, "access", "check", srv.Identifier, "bob@example.net")
	require.NoError(t, err)
	assert.Equal(t, "true", strings.TrimSpace(out))

	out, err = execute(t, dial, "placement")
	require.NoError(t, err)
	assert.Contains(t, out, "node-a")
	assert.Contains(t, out, "node-b")

	_, err = execute(t, dial, "server", "find", "name", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found: ghost")

	out, err = execute(t, dial, "server", "delete", srv.Identifier)
	require.NoError(t, err)
	assert.Equal(t, "deleted", strings.TrimSpace(out))
}
