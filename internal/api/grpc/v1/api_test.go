package v1_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	v1 "github.com/r-heap47/gamehost/internal/api/grpc/v1"
	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/installsignal"
	"github.com/r-heap47/gamehost/internal/metrics"
	"github.com/r-heap47/gamehost/internal/orchestrator"
	"github.com/r-heap47/gamehost/internal/panel/memory"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
	"github.com/r-heap47/gamehost/internal/pkg/async"
	"github.com/r-heap47/gamehost/internal/repository"
)

const bufSize = 1024 * 1024

// startProvisioner serves the API over an in-memory listener backed by the default simulated panel.
func startProvisioner(t *testing.T, installDelay time.Duration) (pbgamehost.ProvisionerClient, *memory.Panel) {
	t.Helper()

	signals := installsignal.NewMemory()
	t.Cleanup(func() { _ = signals.Close() })

	seed := memory.DefaultSeed()
	seed.InstallDelay = installDelay
	seed.Signals = signals

	p, err := memory.New(context.Background(), seed)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	pool, err := async.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close(context.Background()) })

	m := metrics.New()
	binder := handle.NewBinder(handle.Config{Panel: p, Pool: pool, Metrics: m})

	orc, err := orchestrator.New(orchestrator.Config{
		Binder:    binder,
		Signals:   signals,
		Metrics:   m,
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

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer()
	pbgamehost.RegisterProvisionerServer(srv, impl)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return pbgamehost.NewProvisionerClient(conn), p
}

func testCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func lobby(owner string) *pbgamehost.CreateServerRequest {
	return &pbgamehost.CreateServerRequest{
		Name:       "lobby",
		OwnerEmail: owner,
		Egg:        "paper",
		Memory:     2048,
		Disk:       4096,
		CPU:        200,
	}
}

// requireInfo asserts the status code and the ErrorInfo attached to err.
func requireInfo(t *testing.T, err error, code codes.Code, reason, entity, ref string) {
	t.Helper()

	st, ok := status.FromError(err)
	require.True(t, ok, "expected a status error, got %v", err)
	require.Equal(t, code, st.Code(), st.Message())

	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			assert.Equal(t, v1.ErrorDomain, info.Domain)
			assert.Equal(t, reason, info.Reason)
			assert.Equal(t, entity, info.Metadata["entity"])
			assert.Equal(t, ref, info.Metadata["ref"])
			return
		}
	}

	t.Fatalf("no ErrorInfo in %v", st.Details())
}

// TestProvisioner_CreateAndFind verifies the create workflows and every lookup over the wire.
func TestProvisioner_CreateAndFind(t *testing.T) {
	t.Parallel()

	client, _ := startProvisioner(t, time.Hour)
	ctx := testCtx(t)

	user, err := client.CreateUser(ctx, &pbgamehost.CreateUserRequest{Username: "bob", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.net", user.Email)
	assert.Equal(t, "bob", user.Tag)

	srv, err := client.CreateServer(ctx, lobby(user.Email))
	require.NoError(t, err)
	assert.Equal(t, "node-a", srv.Node)
	assert.Equal(t, "203.0.113.5:25565", srv.Address)
	assert.Equal(t, user.ID, srv.OwnerID)

	lookups := []*pbgamehost.FindServerRequest{
		{By: pbgamehost.ServerByName, Value: "lobby"},
		{By: pbgamehost.ServerByUUID, Value: srv.UUID},
		{By: pbgamehost.ServerByIdentifier, Value: srv.Identifier},
		{By: pbgamehost.ServerByID, Value: strconv.FormatInt(srv.ID, 10)},
	}
	for _, req := range lookups {
		found, err := client.FindServer(ctx, req)
		require.NoError(t, err, req.By)
		assert.Equal(t, srv.Identifier, found.Identifier, req.By)
	}

	byEmail, err := client.FindUser(ctx, &pbgamehost.FindUserRequest{By: pbgamehost.UserByEmail, Value: "bob@example.net"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byName, err := client.FindUser(ctx, &pbgamehost.FindUserRequest{By: pbgamehost.UserByUsername, Value: "bob"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	servers, err := client.ListServers(ctx, &pbgamehost.ListRequest{Page: 1})
	require.NoError(t, err)
	require.Len(t, servers.Servers, 1)

	mine, err := client.UserServers(ctx, &pbgamehost.UserRef{Email: user.Email})
	require.NoError(t, err)
	require.Len(t, mine.Servers, 1)
	assert.Equal(t, srv.Identifier, mine.Servers[0].Identifier)

	users, err := client.ListUsers(ctx, &pbgamehost.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, users.Users, 2) // service account + bob
}

// TestProvisioner_CorrelationLookup verifies that an account is found by the correlation id it was created with.
func TestProvisioner_CorrelationLookup(t *testing.T) {
	t.Parallel()

	client, _ := startProvisioner(t, time.Hour)
	ctx := testCtx(t)

	const correlation = "0f8fad5b-d9cb-469f-a165-70867728950e"

	user, err := client.CreateUser(ctx, &pbgamehost.CreateUserRequest{
		CorrelationID: correlation,
		Username:      "carol",
		Email:         "carol@players.example.net",
	})
	require.NoError(t, err)
	assert.Equal(t, "0f8fad5b", user.Tag)

	found, err := client.FindUser(ctx, &pbgamehost.FindUserRequest{By: pbgamehost.UserByCorrelation, Value: correlation})
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

// TestProvisioner_ErrorDetails verifies that domain failures keep their kind, entity and reference.
func TestProvisioner_ErrorDetails(t *testing.T) {
	t.Parallel()

	client, _ := startProvisioner(t, time.Hour)
	ctx := testCtx(t)

	_, err := client.CreateUser(ctx, &pbgamehost.CreateUserRequest{Username: "bob"})
	require.NoError(t, err)

	_, err = client.CreateUser(ctx, &pbgamehost.CreateUserRequest{Username: "bob"})
	requireInfo(t, err, codes.AlreadyExists, "already_exists", "user", "bob")

	_, err = client.FindServer(ctx, &pbgamehost.FindServerRequest{By: pbgamehost.ServerByName, Value: "ghost"})
	requireInfo(t, err, codes.NotFound, "does_not_exist", "server", "ghost")

	req := lobby("bob@example.net")
	req.Egg = "bedrock"
	_, err = client.CreateServer(ctx, req)
	requireInfo(t, err, codes.NotFound, "does_not_exist", "egg", "bedrock")

	_, err = client.CreateServer(ctx, lobby("nobody@example.net"))
	requireInfo(t, err, codes.NotFound, "does_not_exist", "user", "nobody@example.net")

	_, err = client.CreateServer(ctx, lobby("bob@example.net"))
	require.NoError(t, err)

	_, err = client.CreateServer(ctx, lobby("bob@example.net"))
	requireInfo(t, err, codes.AlreadyExists, "already_exists", "server", "lobby")
}

// TestProvisioner_InvalidArgument verifies that malformed requests never reach the panel.
func TestProvisioner_InvalidArgument(t *testing.T) {
	t.Parallel()

	client, p := startProvisioner(t, time.Hour)
	ctx := testCtx(t)

	noMemory := lobby("bob@example.net")
	noMemory.Memory = 0

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "user without username",
			call: func() error {
				_, err := client.CreateUser(ctx, &pbgamehost.CreateUserRequest{})
				return err
			},
		},
		{
			name: "malformed correlation id",
			call: func() error {
				_, err := client.CreateUser(ctx, &pbgamehost.CreateUserRequest{Username: "bob", CorrelationID: "nope"})
				return err
			},
		},
		{
			name: "server without memory",
			call: func() error {
				_, err := client.CreateServer(ctx, noMemory)
				return err
			},
		},
		{
			name: "unknown lookup key",
			call: func() error {
				_, err := client.FindServer(ctx, &pbgamehost.FindServerRequest{By: "owner", Value: "bob"})
				return err
			},
		},
		{
			name: "non numeric id",
			call: func() error {
				_, err := client.FindUser(ctx, &pbgamehost.FindUserRequest{By: pbgamehost.UserByID, Value: "one"})
				return err
			},
		},
		{
			name: "unknown power signal",
			call: func() error {
				_, err := client.PowerServer(ctx, &pbgamehost.PowerRequest{Identifier: "abcd1234", Signal: "reboot"})
				return err
			},
		},
		{
			name: "empty update",
			call: func() error {
				_, err := client.UpdateUser(ctx, &pbgamehost.UpdateUserRequest{Email: "bob@example.net"})
				return err
			},
		},
		{
			name: "missing identifier",
			call: func() error {
				_, err := client.ServerStatus(ctx, &pbgamehost.ServerRef{})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, codes.InvalidArgument, status.Code(tt.call()))
		})
	}

	assert.Zero(t, p.Calls("ListUsers"))
	assert.Zero(t, p.Calls("ListServers"))
}

// TestProvisioner_Lifecycle verifies power, usage, edits and deletion of a provisioned server.
func TestProvisioner_Lifecycle(t *testing.T) {
	t.Parallel()

	client, _ := startProvisioner(t, 10*time.Millisecond)
	ctx := testCtx(t)

	_, err := client.CreateUser(ctx, &pbgamehost.CreateUserRequest{Username: "bob"})
	require.NoError(t, err)

	srv, err := client.CreateServer(ctx, lobby("bob@example.net"))
	require.NoError(t, err)
	ref := &pbgamehost.ServerRef{Identifier: srv.Identifier}

	st, err := client.ServerStatus(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, string(handle.StatusOffline), st.Status)

	// power is rejected until the install finishes
	assert.Eventually(t, func() bool {
		_, err := client.PowerServer(ctx, &pbgamehost.PowerRequest{Identifier: srv.Identifier, Signal: pbgamehost.PowerStart})
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	st, err = client.ServerStatus(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, string(handle.StatusOnline), st.Status)

	usage, err := client.ServerUsage(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), usage.MemoryMB)
	assert.Equal(t, int64(1024), usage.DiskMB)
	assert.InDelta(t, 50.0, usage.CPUPercent, 0.001)

	memoryMB := 3072
	limits, err := client.SetResources(ctx, &pbgamehost.SetResourcesRequest{Identifier: srv.Identifier, Memory: &memoryMB})
	require.NoError(t, err)
	assert.Equal(t, pbgamehost.Limits{Memory: 3072, Disk: 4096, CPU: 200}, *limits)

	_, err = client.RenameServer(ctx, &pbgamehost.RenameRequest{Identifier: srv.Identifier, Name: "hub"})
	require.NoError(t, err)

	domain, err := client.SetDomain(ctx, &pbgamehost.SetDomainRequest{Identifier: srv.Identifier, Domain: "hub.example.net"})
	require.NoError(t, err)
	assert.True(t, domain.Updated)

	found, err := client.FindServer(ctx, &pbgamehost.FindServerRequest{By: pbgamehost.ServerByDomain, Value: "hub.example.net"})
	require.NoError(t, err)
	assert.Equal(t, "hub", found.Name)

	_, err = client.DeleteServer(ctx, ref)
	require.NoError(t, err)

	_, err = client.ServerStatus(ctx, ref)
	requireInfo(t, err, codes.NotFound, "does_not_exist", "server", srv.Identifier)
}

// TestProvisioner_Access verifies granting and revoking the control bundle.
func TestProvisioner_Access(t *testing.T) {
	t.Parallel()

	client, _ := startProvisioner(t, time.Hour)
	ctx := testCtx(t)

	_, err := client.CreateUser(ctx, &pbgamehost.CreateUserRequest{Username: "bob"})
	require.NoError(t, err)
	_, err = client.CreateUser(ctx, &pbgamehost.CreateUserRequest{Username: "alice"})
	require.NoError(t, err)

	srv, err := client.CreateServer(ctx, lobby("bob@example.net"))
	require.NoError(t, err)

	req := &pbgamehost.AccessRequest{Identifier: srv.Identifier, Email: "alice@example.net"}

	perm, err := client.HasPermission(ctx, req)
	require.NoError(t, err)
	assert.False(t, perm.Granted)

	changed, err := client.Allow(ctx, req)
	require.NoError(t, err)
	assert.True(t, changed.Changed)

	changed, err = client.Allow(ctx, req)
	require.NoError(t, err)
	assert.False(t, changed.Changed)

	perm, err = client.HasPermission(ctx, req)
	require.NoError(t, err)
	assert.True(t, perm.Granted)

	changed, err = client.Disallow(ctx, req)
	require.NoError(t, err)
	assert.True(t, changed.Changed)

	owner, err := client.HasPermission(ctx, &pbgamehost.AccessRequest{Identifier: srv.Identifier, Email: "bob@example.net"})
	require.NoError(t, err)
	assert.True(t, owner.Granted)
}

// TestProvisioner_UpdateAndDeleteUser verifies account edits and removal.
func TestProvisioner_UpdateAndDeleteUser(t *testing.T) {
	t.Parallel()

	client, _ := startProvisioner(t, time.Hour)
	ctx := testCtx(t)

	_, err := client.CreateUser(ctx, &pbgamehost.CreateUserRequest{Username: "bob"})
	require.NoError(t, err)

	username, email := "robert", "robert@example.net"
	updated, err := client.UpdateUser(ctx, &pbgamehost.UpdateUserRequest{
		Email:       "bob@example.net",
		NewUsername: &username,
		NewEmail:    &email,
	})
	require.NoError(t, err)
	assert.Equal(t, "robert", updated.Username)
	assert.Equal(t, "robert@example.net", updated.Email)

	_, err = client.DeleteUser(ctx, &pbgamehost.UserRef{Email: "robert@example.net"})
	require.NoError(t, err)

	_, err = client.FindUser(ctx, &pbgamehost.FindUserRequest{By: pbgamehost.UserByUsername, Value: "robert"})
	requireInfo(t, err, codes.NotFound, "does_not_exist", "user", "robert")
}

// TestProvisioner_PreviewPlacement verifies that the ranking reflects the live node capacity.
func TestProvisioner_PreviewPlacement(t *testing.T) {
	t.Parallel()

	client, p := startProvisioner(t, time.Hour)
	ctx := testCtx(t)

	preview, err := client.PreviewPlacement(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	require.Len(t, preview.Candidates, 2)
	assert.Equal(t, "node-a", preview.Candidates[0].Node)
	assert.Equal(t, int64(16384), preview.Candidates[0].UnusedMB)

	p.SetMaintenance(memory.SeedNodeA, true)

	preview, err = client.PreviewPlacement(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	require.Len(t, preview.Candidates, 2)
	assert.Equal(t, "node-b", preview.Candidates[0].Node)
	assert.True(t, preview.Candidates[1].Maintenance)
}
