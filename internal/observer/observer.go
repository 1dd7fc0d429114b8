// Package observer polls the panel for node capacity and publishes it as metrics.
package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/metrics"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/pkg/utils"
	"github.com/r-heap47/gamehost/internal/placement"
)

// ErrPanelUnreachable is returned by Run once the error threshold is reached.
var ErrPanelUnreachable = errors.New("panel unreachable")

// NodeLister is the part of the panel the observer needs.
type NodeLister interface {
	ListNodes(ctx context.Context) ([]panel.Node, error)
}

// Config - observer config
type Config struct {
	Nodes   NodeLister
	Policy  placement.Policy
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	Delay          utils.Provider[time.Duration] // between polls
	Timeout        utils.Provider[time.Duration] // of one poll
	ErrorThreshold utils.Provider[int]           // consecutive failures before giving up
}

// Observer - node capacity monitorer
type Observer struct {
	nodes   NodeLister
	policy  placement.Policy
	metrics *metrics.Metrics
	logger  *zap.Logger

	delay          utils.Provider[time.Duration]
	timeout        utils.Provider[time.Duration]
	errorThreshold utils.Provider[int]

	mu      sync.RWMutex
	last    []placement.Candidate
	healthy bool
	known   map[string]struct{}
}

// New creates an Observer.
func New(cfg Config) *Observer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Observer{
		nodes:          cfg.Nodes,
		policy:         cfg.Policy,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.Named("observer"),
		delay:          cfg.Delay,
		timeout:        cfg.Timeout,
		errorThreshold: cfg.ErrorThreshold,
		known:          make(map[string]struct{}),
	}
}

// Run polls until ctx is done or the panel fails errorThreshold times in a row.
func (obs *Observer) Run(ctx context.Context) error {
	streak := 0

	for {
		if err := obs.poll(ctx); err != nil {
			if utils.CtxDone(ctx) != nil {
				return nil
			}

			streak++
			obs.logger.Warn("capacity poll failed", zap.Int("streak", streak), zap.Error(err))

			if threshold := obs.errorThreshold(ctx); threshold > 0 && streak >= threshold {
				return fmt.Errorf("%w: %d consecutive failures: %w", ErrPanelUnreachable, streak, err)
			}
		} else {
			streak = 0
		}

		timer := time.NewTimer(obs.delay(ctx))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// poll fetches one node listing and publishes it.
func (obs *Observer) poll(ctx context.Context) error {
	ctx, cancel := utils.WithTimeout(ctx, obs.timeout)
	defer cancel()

	nodes, err := obs.nodes.ListNodes(ctx)
	if err != nil {
		obs.setHealthy(false)
		return fmt.Errorf("ListNodes: %w", err)
	}

	ranked := obs.policy.Preview(nodes)
	names := lo.Map(ranked, func(c placement.Candidate, _ int) string { return c.Node.Name })

	obs.mu.Lock()
	for name := range obs.known {
		if !lo.Contains(names, name) {
			obs.metrics.ForgetNode(name)
			delete(obs.known, name)
		}
	}
	for _, c := range ranked {
		obs.metrics.SetNode(c.Node.Name, c.UnusedMB, c.Node.Maintenance)
		obs.known[c.Node.Name] = struct{}{}
	}
	obs.last = ranked
	obs.mu.Unlock()

	obs.setHealthy(true)
	obs.logger.Debug("capacity polled", zap.Int("nodes", len(ranked)))

	return nil
}

func (obs *Observer) setHealthy(up bool) {
	obs.mu.Lock()
	obs.healthy = up
	obs.mu.Unlock()

	obs.metrics.SetPanelUp(up)
}

// Healthy reports whether the last poll succeeded.
func (obs *Observer) Healthy() bool {
	obs.mu.RLock()
	defer obs.mu.RUnlock()

	return obs.healthy
}

// Snapshot returns the ranking of the last successful poll.
func (obs *Observer) Snapshot() []placement.Candidate {
	obs.mu.RLock()
	defer obs.mu.RUnlock()

	return append([]placement.Candidate(nil), obs.last...)
}
