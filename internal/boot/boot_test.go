package boot

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/config"
	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/installsignal"
	"github.com/r-heap47/gamehost/internal/panel"
)

func parse(t *testing.T, yaml string) *config.Config {
	t.Helper()

	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)

	return cfg
}

// TestPanelConfig_DefaultSeed verifies that the built-in catalog is used when no seed is configured.
func TestPanelConfig_DefaultSeed(t *testing.T) {
	t.Parallel()

	mcfg, err := panelConfig(context.Background(), config.PanelConfig{})
	require.NoError(t, err)

	require.Len(t, mcfg.Nodes, 2)
	assert.Equal(t, "node-a", mcfg.Nodes[0].Name)
	assert.Len(t, mcfg.Allocations, 20)
}

// TestPanelConfig_FromSeed verifies that a configured seed replaces the built-in one.
func TestPanelConfig_FromSeed(t *testing.T) {
	t.Parallel()

	cfg := parse(t, `
panel:
  seed:
    locations:
      - {id: 7, short: us, long: United States}
    nodes:
      - {id: 3, name: node-x, location_id: 7, memory: "4096", maintenance: true}
    allocations:
      - {node_id: 3, ip: 198.51.100.2, alias: mc.example.net, ports: "30000-30002"}
    eggs:
      - {id: 9, nest_id: 1, name: Forge, docker_image: "ghcr.io/pterodactyl/yolks:java_17", startup: java -jar forge.jar}
`)

	mcfg, err := panelConfig(context.Background(), cfg.Panel)
	require.NoError(t, err)

	require.Len(t, mcfg.Nodes, 1)
	assert.Equal(t, panel.Node{ID: 3, Name: "node-x", LocationID: 7, Memory: "4096", AllocatedMemory: "0", Maintenance: true}, mcfg.Nodes[0])

	require.Len(t, mcfg.Allocations, 3)
	assert.Equal(t, "mc.example.net", mcfg.Allocations[0].Alias)
	assert.Equal(t, 30002, mcfg.Allocations[2].Port)

	require.Len(t, mcfg.Eggs, 1)
	assert.Equal(t, "Forge", mcfg.Eggs[0].Name)
	assert.Empty(t, mcfg.Users)
}

// TestPanelConfig_LocalNode verifies that the host machine is appended as a node with its own ports.
func TestPanelConfig_LocalNode(t *testing.T) {
	t.Parallel()

	cfg := parse(t, `
panel:
  local_node:
    enabled: true
    ports: "25600-25601"
`)

	mcfg, err := panelConfig(context.Background(), cfg.Panel)
	require.NoError(t, err)

	require.Len(t, mcfg.Nodes, 3)
	local := mcfg.Nodes[2]
	assert.Equal(t, int64(3), local.ID)
	assert.Equal(t, "local", local.Name)
	assert.Equal(t, int64(1), local.LocationID)

	total, err := strconv.ParseInt(local.Memory, 10, 64)
	require.NoError(t, err)
	assert.Positive(t, total)

	require.Len(t, mcfg.Allocations, 22)
	assert.Equal(t, "127.0.0.1", mcfg.Allocations[20].IP)
}

// TestOpenPanel_UnsupportedScheme verifies that only the simulated panel can be opened.
func TestOpenPanel_UnsupportedScheme(t *testing.T) {
	t.Parallel()

	cfg := parse(t, "panel:\n  url: https://panel.example.net\n")

	_, _, err := openPanel(context.Background(), cfg, installsignal.NewMemory(), zap.NewNop())
	require.ErrorIs(t, err, errs.ErrInvalidConfiguration)

	de, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, "panel.url", de.Ref)
}

// TestOpenPanel_Persistence verifies that panel state survives a restart.
func TestOpenPanel_Persistence(t *testing.T) {
	t.Parallel()

	cfg := parse(t, fmt.Sprintf("panel:\n  persistence: %q\n", t.TempDir()))
	ctx := context.Background()

	p, release, err := openPanel(ctx, cfg, installsignal.NewMemory(), zap.NewNop())
	require.NoError(t, err)

	created, err := p.CreateUser(ctx, panel.CreateUserRequest{
		Username:  "bob",
		Email:     "bob@example.net",
		FirstName: "bob",
		LastName:  "'s Account",
	})
	require.NoError(t, err)
	release()

	p, release, err = openPanel(ctx, cfg, installsignal.NewMemory(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(release)

	restored, err := p.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.net", restored.Email)
}

// TestOpenSignals verifies that the memory driver needs no connection.
func TestOpenSignals(t *testing.T) {
	t.Parallel()

	bus, err := openSignals(config.SignalsConfig{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, bus.Close())
}

// TestNewLogger verifies level parsing.
func TestNewLogger(t *testing.T) {
	t.Parallel()

	logger, err := newLogger(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = newLogger(config.LogConfig{Level: "loud"})
	require.Error(t, err)
}

// TestRootCmd_Flags verifies the config flag default.
func TestRootCmd_Flags(t *testing.T) {
	t.Parallel()

	flag := newRootCmd().Flags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "config/config.yaml", flag.DefValue)
}
