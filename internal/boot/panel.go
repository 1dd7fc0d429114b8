package boot

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/config"
	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/installsignal"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/panel/memory"
	"github.com/r-heap47/gamehost/internal/storage/badger"
)

// memoryScheme is the panel url scheme of the simulated panel.
const memoryScheme = "memory"

// openSignals connects the install-completed bus selected by cfg.
func openSignals(cfg config.SignalsConfig, logger *zap.Logger) (installsignal.Bus, error) {
	switch cfg.Driver {
	case "nats":
		bus, err := installsignal.NewNATS(installsignal.NATSConfig{
			URL:           cfg.URL,
			SubjectPrefix: cfg.SubjectPrefix,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("installsignal.NewNATS: %w", err)
		}
		return bus, nil
	default:
		return installsignal.NewMemory(), nil
	}
}

// openPanel builds the simulated panel, restoring it from badger when persistence is set.
// The returned func releases the panel and its store.
func openPanel(ctx context.Context, cfg *config.Config, signals installsignal.Bus, logger *zap.Logger) (*memory.Panel, func(), error) {
	u, err := url.Parse(cfg.Panel.URL)
	if err != nil {
		return nil, nil, errs.InvalidConfiguration("panel.url", err)
	}
	if u.Scheme != memoryScheme {
		return nil, nil, errs.InvalidConfiguration("panel.url", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}

	mcfg, err := panelConfig(ctx, cfg.Panel)
	if err != nil {
		return nil, nil, err
	}
	mcfg.InstallDelay = cfg.Panel.InstallDelay.Duration
	mcfg.Signals = signals
	mcfg.Logger = logger

	var store *badger.Store
	if cfg.Panel.Persistence != "" {
		store, err = badger.Open(badger.Config{Path: cfg.Panel.Persistence, Logger: logger.Named("badger")})
		if err != nil {
			return nil, nil, fmt.Errorf("badger.Open: %w", err)
		}
		mcfg.Store = store
		mcfg.IsNotFound = func(err error) bool { return errors.Is(err, badger.ErrNotFound) }
	}

	p, err := memory.New(ctx, mcfg)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, fmt.Errorf("memory.New: %w", err)
	}

	release := func() {
		if err := p.Close(); err != nil {
			logger.Warn("panel close", zap.Error(err))
		}
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Warn("badger close", zap.Error(err))
			}
		}
	}

	return p, release, nil
}

// panelConfig converts the configured seed, or takes the built-in one, and adds the local node.
func panelConfig(ctx context.Context, cfg config.PanelConfig) (memory.Config, error) {
	mcfg := memory.DefaultSeed()
	if cfg.Seed != nil {
		mcfg = fromSeed(*cfg.Seed)
	}

	if !cfg.LocalNode.Enabled {
		return mcfg, nil
	}

	ln := cfg.LocalNode

	locationID := ln.LocationID
	if locationID == 0 && len(mcfg.Locations) > 0 {
		locationID = mcfg.Locations[0].ID
	}

	nextID := lo.MaxBy(mcfg.Nodes, func(a, b panel.Node) bool { return a.ID > b.ID }).ID + 1

	node, err := memory.HostNode(ctx, nextID, ln.Name, locationID)
	if err != nil {
		return memory.Config{}, fmt.Errorf("memory.HostNode: %w", err)
	}

	mcfg.Nodes = append(mcfg.Nodes, node)
	mcfg.Allocations = append(mcfg.Allocations, memory.Allocations(node.ID, ln.IP, ln.Alias, ln.Ports.From, ln.Ports.To)...)

	return mcfg, nil
}

func fromSeed(seed config.SeedConfig) memory.Config {
	var allocs []panel.Allocation
	for _, a := range seed.Allocations {
		allocs = append(allocs, memory.Allocations(a.NodeID, a.IP, a.Alias, a.Ports.From, a.Ports.To)...)
	}

	return memory.Config{
		Locations: lo.Map(seed.Locations, func(l config.LocationSeed, _ int) panel.Location {
			return panel.Location{ID: l.ID, Short: l.Short, Long: l.Long}
		}),
		Nodes: lo.Map(seed.Nodes, func(n config.NodeSeed, _ int) panel.Node {
			return panel.Node{
				ID:              n.ID,
				Name:            n.Name,
				LocationID:      n.LocationID,
				Memory:          n.MemoryMB,
				AllocatedMemory: "0",
				Maintenance:     n.Maintenance,
			}
		}),
		Allocations: allocs,
		Eggs: lo.Map(seed.Eggs, func(e config.EggSeed, _ int) panel.Egg {
			return panel.Egg{ID: e.ID, NestID: e.NestID, Name: e.Name, DockerImage: e.DockerImage, Startup: e.Startup}
		}),
		Users: lo.Map(seed.Users, func(u config.UserSeed, _ int) panel.User {
			return panel.User{ID: u.ID, Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
		}),
	}
}
