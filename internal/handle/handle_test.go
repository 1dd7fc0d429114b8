package handle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/panel/memory"
	"github.com/r-heap47/gamehost/internal/pkg/async"
	"github.com/r-heap47/gamehost/internal/pkg/utils"
)

type env struct {
	panel  *memory.Panel
	binder *handle.Binder
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cfg := memory.DefaultSeed()
	cfg.InstallDelay = time.Hour

	p, err := memory.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	pool, err := async.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close(context.Background()) })

	b := handle.NewBinder(handle.Config{
		Panel:           p,
		Pool:            pool,
		FallbackAddress: "play.example.net",
	})

	return &env{panel: p, binder: b}
}

func (e *env) user(t *testing.T, username string) *handle.User {
	t.Helper()

	u, err := e.panel.CreateUser(context.Background(), panel.CreateUserRequest{
		Username:  username,
		Email:     username + "@example.net",
		FirstName: username,
		LastName:  "'s Account",
	})
	require.NoError(t, err)

	return e.binder.User(u)
}

func (e *env) server(t *testing.T, name string, owner *handle.User) *handle.Server {
	t.Helper()

	ctx := context.Background()
	s, err := e.panel.CreateServer(ctx, panel.CreateServerRequest{
		Name:            name,
		OwnerID:         owner.ID,
		EggID:           1,
		Limits:          panel.Limits{Memory: 1024, Disk: 2048, CPU: 200},
		DeployLocations: []int64{memory.SeedLocationID},
	})
	require.NoError(t, err)

	h, err := e.binder.Server(ctx, s)
	require.NoError(t, err)

	return h
}

func await[T any](t *testing.T, f *async.Future[T]) (T, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return f.Await(ctx)
}

// TestAddress verifies alias preference, fallback substitution and host:port rendering.
func TestAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		alloc    panel.Allocation
		fallback string
		want     string
	}{
		{
			name:  "ip",
			alloc: panel.Allocation{IP: "203.0.113.5", Port: 25565},
			want:  "203.0.113.5:25565",
		},
		{
			name:  "alias wins",
			alloc: panel.Allocation{IP: "203.0.113.5", Alias: "mc.example.net", Port: 25565},
			want:  "mc.example.net:25565",
		},
		{
			name:     "unspecified ip uses fallback",
			alloc:    panel.Allocation{IP: "0.0.0.0", Port: 25566},
			fallback: "play.example.net",
			want:     "play.example.net:25566",
		},
		{
			name:     "loopback ip uses fallback",
			alloc:    panel.Allocation{IP: "127.0.0.1", Port: 25567},
			fallback: "play.example.net",
			want:     "play.example.net:25567",
		},
		{
			name:  "unspecified ip without fallback",
			alloc: panel.Allocation{IP: "0.0.0.0", Port: 25565},
			want:  "0.0.0.0:25565",
		},
		{
			name:  "ipv6",
			alloc: panel.Allocation{IP: "2001:db8::1", Port: 25565},
			want:  "[2001:db8::1]:25565",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, handle.Address(tc.alloc, tc.fallback))
		})
	}
}

// TestStatusOf verifies the mapping of panel power states.
func TestStatusOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, handle.StatusStarting, handle.StatusOf(panel.StateStarting))
	assert.Equal(t, handle.StatusOnline, handle.StatusOf(panel.StateRunning))
	assert.Equal(t, handle.StatusStopping, handle.StatusOf(panel.StateStopping))
	assert.Equal(t, handle.StatusOffline, handle.StatusOf(panel.StateOffline))
	assert.Equal(t, handle.StatusOffline, handle.StatusOf("suspended"))
}

// TestUsageOf verifies unit conversion and clamping of negative readings.
func TestUsageOf(t *testing.T) {
	t.Parallel()

	u := handle.UsageOf(panel.Utilization{MemoryBytes: 512 * 1024 * 1024, DiskBytes: -1, CPUAbsolute: -3})
	assert.Equal(t, handle.Usage{MemoryMB: 512}, u)
}

// TestCall_ClassifiesFailures verifies that rules apply first and everything else becomes a transport failure.
func TestCall_ClassifiesFailures(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()

	_, err := handle.Call(ctx, e.binder, utils.Const(time.Second), "GetServer", func(ctx context.Context) (panel.Server, error) {
		return e.panel.GetServer(ctx, 404)
	}, handle.NotFoundAs(errs.ServerDoesNotExist("404")))
	assert.ErrorIs(t, err, errs.ErrDoesNotExist)

	_, err = handle.Call(ctx, e.binder, utils.Const(time.Second), "ListNodes", func(ctx context.Context) ([]panel.Node, error) {
		return nil, errors.New("connection refused")
	})
	assert.ErrorIs(t, err, errs.ErrTransport)

	e.panel.SetLatency(time.Second)
	_, err = handle.Call(ctx, e.binder, utils.Const(10*time.Millisecond), "ListNodes", e.panel.ListNodes)
	assert.ErrorIs(t, err, errs.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestServer_StatusAndUsage verifies that the handle reports live state.
func TestServer_StatusAndUsage(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	bob := e.user(t, "bob")
	srv := e.server(t, "lobby", bob)

	assert.Equal(t, "node-a", srv.Node)
	assert.Equal(t, "203.0.113.5:25565", srv.Address)

	st, err := await(t, srv.Status(ctx))
	require.NoError(t, err)
	assert.Equal(t, handle.StatusOffline, st)

	e.panel.SetPowerState(srv.Identifier, panel.StateRunning)

	st, err = await(t, srv.Status(ctx))
	require.NoError(t, err)
	assert.Equal(t, handle.StatusOnline, st)

	usage, err := await(t, srv.Usage(ctx))
	require.NoError(t, err)
	assert.Equal(t, int64(512), usage.MemoryMB)
	assert.Equal(t, int64(512), usage.DiskMB)
	assert.InDelta(t, 50.0, usage.CPUPercent, 0.001)
}

// TestServer_Deleted verifies that operations on a deleted server report it as missing.
func TestServer_Deleted(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	bob := e.user(t, "bob")
	srv := e.server(t, "lobby", bob)

	require.NoError(t, e.panel.DeleteServer(ctx, srv.ID, true))

	_, err := await(t, srv.Status(ctx))
	require.ErrorIs(t, err, errs.ErrDoesNotExist)

	de, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.EntityServer, de.Entity)
	assert.Equal(t, srv.Identifier, de.Ref)

	_, err = await(t, srv.Start(ctx))
	assert.ErrorIs(t, err, errs.ErrDoesNotExist)
	assert.Zero(t, e.panel.Calls("SendPower"))
}

// TestServer_PowerAndRename verifies power signals and renaming.
func TestServer_PowerAndRename(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	bob := e.user(t, "bob")
	srv := e.server(t, "lobby", bob)

	// still installing
	_, err := await(t, srv.Start(ctx))
	assert.ErrorIs(t, err, errs.ErrTransport)

	_, err = await(t, srv.Rename(ctx, "hub"))
	require.NoError(t, err)

	got, err := e.panel.GetServerByIdentifier(ctx, srv.Identifier)
	require.NoError(t, err)
	assert.Equal(t, "hub", got.Name)
}

// TestServer_SetResources verifies that only the supplied limits change.
func TestServer_SetResources(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	bob := e.user(t, "bob")
	srv := e.server(t, "lobby", bob)

	mem := 4096
	limits, err := await(t, srv.SetResources(ctx, handle.ResourceUpdate{Memory: &mem}))
	require.NoError(t, err)
	assert.Equal(t, panel.Limits{Memory: 4096, Disk: 2048, CPU: 200}, limits)

	node, err := e.panel.GetNode(ctx, srv.NodeID)
	require.NoError(t, err)
	assert.Equal(t, "4096", node.AllocatedMemory)

	calls := e.panel.Calls("UpdateBuild")
	limits, err = await(t, srv.SetResources(ctx, handle.ResourceUpdate{}))
	require.NoError(t, err)
	assert.Equal(t, 4096, limits.Memory)
	assert.Equal(t, calls, e.panel.Calls("UpdateBuild"))
}

// TestServer_SetDomain verifies that the domain lands in the allocation notes.
func TestServer_SetDomain(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	bob := e.user(t, "bob")
	srv := e.server(t, "lobby", bob)

	ok, err := await(t, srv.SetDomain(ctx, "lobby.example.net"))
	require.NoError(t, err)
	assert.True(t, ok)

	alloc, err := e.panel.GetAllocation(ctx, srv.AllocationID)
	require.NoError(t, err)
	assert.Equal(t, "lobby.example.net", alloc.Notes)
}

// TestServer_AllowDisallow verifies the control bundle delta logic.
func TestServer_AllowDisallow(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	bob := e.user(t, "bob")
	alice := e.user(t, "alice")
	srv := e.server(t, "lobby", bob)

	has, err := await(t, srv.HasPermission(ctx, alice))
	require.NoError(t, err)
	assert.False(t, has)

	// missing entry: nothing to revoke
	changed, err := await(t, srv.Disallow(ctx, alice))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, e.panel.Calls("UpdateSubuser"))

	changed, err = await(t, srv.Allow(ctx, alice))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, e.panel.Calls("CreateSubuser"))

	changed, err = await(t, srv.Allow(ctx, alice))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, e.panel.Calls("UpdateSubuser"))

	has, err = await(t, srv.HasPermission(ctx, alice))
	require.NoError(t, err)
	assert.True(t, has)

	changed, err = await(t, srv.Disallow(ctx, alice))
	require.NoError(t, err)
	assert.True(t, changed)

	subs, err := e.panel.ListSubusers(ctx, srv.Identifier)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].Permissions)

	changed, err = await(t, srv.Disallow(ctx, alice))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, e.panel.Calls("UpdateSubuser"))

	// partial bundle is completed, extra permissions are kept
	_, err = e.panel.UpdateSubuser(ctx, srv.Identifier, alice.UUID, []panel.Permission{panel.PermFileSFTP, panel.PermControlStart})
	require.NoError(t, err)

	changed, err = await(t, srv.Allow(ctx, alice))
	require.NoError(t, err)
	assert.True(t, changed)

	subs, err = e.panel.ListSubusers(ctx, srv.Identifier)
	require.NoError(t, err)
	assert.ElementsMatch(t, append([]panel.Permission{panel.PermFileSFTP}, panel.ControlPermissions...), subs[0].Permissions)
}

// TestServer_HasPermissionOwner verifies that the owner always has access.
func TestServer_HasPermissionOwner(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	bob := e.user(t, "bob")
	srv := e.server(t, "lobby", bob)

	has, err := await(t, srv.HasPermission(context.Background(), bob))
	require.NoError(t, err)
	assert.True(t, has)
}

// TestUser_Servers verifies that owned and shared servers are listed.
func TestUser_Servers(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	bob := e.user(t, "bob")
	alice := e.user(t, "alice")
	carol := e.user(t, "carol")

	lobby := e.server(t, "lobby", bob)
	survival := e.server(t, "survival", alice)
	e.server(t, "creative", carol)

	_, err := await(t, survival.Allow(ctx, bob))
	require.NoError(t, err)

	servers, err := await(t, bob.Servers(ctx))
	require.NoError(t, err)

	names := make([]string, 0, len(servers))
	for _, s := range servers {
		names = append(names, s.Name)
		assert.NotEmpty(t, s.Address)
	}
	assert.ElementsMatch(t, []string{lobby.Name, survival.Name}, names)
}

// TestUser_Edit verifies account edits, conflicts and the refreshed handle.
func TestUser_Edit(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	bob := e.user(t, "bob")
	e.user(t, "alice")

	_, err := await(t, bob.SetUsername(ctx, "alice"))
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)

	renamed, err := await(t, bob.SetUsername(ctx, "robert"))
	require.NoError(t, err)
	assert.Equal(t, "robert", renamed.Username)

	moved, err := await(t, renamed.SetEmail(ctx, "robert@example.net"))
	require.NoError(t, err)
	assert.Equal(t, "robert@example.net", moved.Email)

	// the old handle resolves by the old email
	_, err = await(t, bob.SetPassword(ctx, "hunter2"))
	assert.ErrorIs(t, err, errs.ErrDoesNotExist)

	_, err = await(t, moved.SetPassword(ctx, "hunter2"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", e.panel.Password(moved.ID))
}
