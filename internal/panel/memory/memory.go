// Package memory is an in-process panel. It backs the daemon when no real panel
// transport is configured and doubles as the fake used by tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/installsignal"
	"github.com/r-heap47/gamehost/internal/panel"
)

var _ panel.Client = (*Panel)(nil)

const snapshotKey = "panel:snapshot"

// Store persists the panel state between restarts.
type Store interface {
	Get(ctx context.Context, key string, v any) error
	Put(ctx context.Context, key string, v any) error
}

// Config seeds and wires the simulated panel.
type Config struct {
	Nodes       []panel.Node
	Locations   []panel.Location
	Allocations []panel.Allocation
	Eggs        []panel.Egg
	Users       []panel.User

	// InstallDelay is how long a new server stays in the installing phase.
	InstallDelay time.Duration
	// Signals receives install-completed events. Optional.
	Signals installsignal.Bus
	// Store persists state after every mutation. Optional; a stored snapshot
	// takes precedence over the seed.
	Store Store
	// IsNotFound tells whether a Store.Get error means "no snapshot yet".
	IsNotFound func(error) bool

	Logger *zap.Logger
}

// Panel is a concurrency-safe in-memory panel.
type Panel struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	st     state
	timers map[string]*time.Timer

	faultsMu sync.Mutex
	faults   map[string]fault
	calls    map[string]int
	latency  time.Duration
}

type fault struct {
	err  error
	once bool
}

// state is the persisted part of the panel.
type state struct {
	Seq         int64                       `json:"seq"`
	Nodes       map[int64]*panel.Node       `json:"nodes"`
	Locations   map[int64]*panel.Location   `json:"locations"`
	Allocations map[int64]*panel.Allocation `json:"allocations"`
	Eggs        map[int64]*panel.Egg        `json:"eggs"`
	Users       map[int64]*panel.User       `json:"users"`
	Passwords   map[int64]string            `json:"passwords"`
	Servers     map[int64]*panel.Server     `json:"servers"`
	Power       map[string]panel.PowerState `json:"power"`
	Subusers    map[string][]*panel.Subuser `json:"subusers"`
}

// New creates a panel from the stored snapshot, or from the seed when there is none.
func New(ctx context.Context, cfg Config) (*Panel, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	p := &Panel{
		cfg:    cfg,
		logger: cfg.Logger.Named("panel"),
		timers: make(map[string]*time.Timer),
		faults: make(map[string]fault),
		calls:  make(map[string]int),
	}

	loaded, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	if !loaded {
		p.seed()
	}

	// servers that were installing when the snapshot was taken finish now
	for _, s := range p.st.Servers {
		if !s.Installed {
			p.scheduleInstall(s.Identifier, s.UUID, false)
		}
	}

	return p, nil
}

func (p *Panel) load(ctx context.Context) (bool, error) {
	if p.cfg.Store == nil {
		return false, nil
	}

	var st state
	err := p.cfg.Store.Get(ctx, snapshotKey, &st)
	if err != nil {
		if p.cfg.IsNotFound != nil && p.cfg.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	st.ensureMaps()
	p.st = st
	p.logger.Info("restored panel snapshot", zap.Int("servers", len(st.Servers)), zap.Int("users", len(st.Users)))

	return true, nil
}

func (p *Panel) seed() {
	p.st = state{}
	p.st.ensureMaps()

	for _, n := range p.cfg.Nodes {
		n.ID = p.id(n.ID)
		p.st.Nodes[n.ID] = &n
	}
	for _, l := range p.cfg.Locations {
		l.ID = p.id(l.ID)
		p.st.Locations[l.ID] = &l
	}
	for _, a := range p.cfg.Allocations {
		a.ID = p.id(a.ID)
		p.st.Allocations[a.ID] = &a
	}
	for _, e := range p.cfg.Eggs {
		e.ID = p.id(e.ID)
		p.st.Eggs[e.ID] = &e
	}
	for _, u := range p.cfg.Users {
		u.ID = p.id(u.ID)
		if u.UUID == "" {
			u.UUID = newUUID()
		}
		p.st.Users[u.ID] = &u
	}
}

// id keeps explicit seed ids and hands out fresh ones otherwise.
func (p *Panel) id(explicit int64) int64 {
	if explicit > 0 {
		if explicit > p.st.Seq {
			p.st.Seq = explicit
		}
		return explicit
	}
	p.st.Seq++
	return p.st.Seq
}

func (st *state) ensureMaps() {
	if st.Nodes == nil {
		st.Nodes = make(map[int64]*panel.Node)
	}
	if st.Locations == nil {
		st.Locations = make(map[int64]*panel.Location)
	}
	if st.Allocations == nil {
		st.Allocations = make(map[int64]*panel.Allocation)
	}
	if st.Eggs == nil {
		st.Eggs = make(map[int64]*panel.Egg)
	}
	if st.Users == nil {
		st.Users = make(map[int64]*panel.User)
	}
	if st.Passwords == nil {
		st.Passwords = make(map[int64]string)
	}
	if st.Servers == nil {
		st.Servers = make(map[int64]*panel.Server)
	}
	if st.Power == nil {
		st.Power = make(map[string]panel.PowerState)
	}
	if st.Subusers == nil {
		st.Subusers = make(map[string][]*panel.Subuser)
	}
}

// persist saves the state. Caller must hold p.mu.
func (p *Panel) persist(ctx context.Context) {
	if p.cfg.Store == nil {
		return
	}

	// the write must not be lost because the caller's deadline is about to fire
	if err := p.cfg.Store.Put(context.WithoutCancel(ctx), snapshotKey, &p.st); err != nil {
		p.logger.Error("persist panel snapshot", zap.Error(err))
	}
}

// Close stops pending install timers.
func (p *Panel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}

	return nil
}

// === TEST HOOKS ===

// Fail makes every call to op fail with err until Heal.
func (p *Panel) Fail(op string, err error) {
	p.faultsMu.Lock()
	defer p.faultsMu.Unlock()

	p.faults[op] = fault{err: err}
}

// FailOnce makes the next call to op fail with err.
func (p *Panel) FailOnce(op string, err error) {
	p.faultsMu.Lock()
	defer p.faultsMu.Unlock()

	p.faults[op] = fault{err: err, once: true}
}

// Heal removes the fault on op.
func (p *Panel) Heal(op string) {
	p.faultsMu.Lock()
	defer p.faultsMu.Unlock()

	delete(p.faults, op)
}

// SetLatency delays every call by d, honoring the call's ctx.
func (p *Panel) SetLatency(d time.Duration) {
	p.faultsMu.Lock()
	defer p.faultsMu.Unlock()

	p.latency = d
}

// Calls returns how many times op was invoked.
func (p *Panel) Calls(op string) int {
	p.faultsMu.Lock()
	defer p.faultsMu.Unlock()

	return p.calls[op]
}

// enter records the call and applies latency and injected faults.
func (p *Panel) enter(ctx context.Context, op string) error {
	p.faultsMu.Lock()
	p.calls[op]++
	latency := p.latency
	f, faulty := p.faults[op]
	if faulty && f.once {
		delete(p.faults, op)
	}
	p.faultsMu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()

		select {
		case <-t.C:
		case <-ctx.Done():
			return panel.NewError(op, "", ctx.Err())
		}
	}

	if err := ctx.Err(); err != nil {
		return panel.NewError(op, "", err)
	}

	if faulty {
		var pe *panel.Error
		if errors.As(f.err, &pe) {
			return f.err
		}
		return panel.NewError(op, "", f.err)
	}

	return nil
}

func notFound(op, ref string) error {
	return panel.NewError(op, ref, panel.ErrNotFound)
}

func paginate[T any](items []T, page panel.Page) []T {
	size := page.Size
	if size <= 0 {
		size = 50
	}
	number := max(page.Number, 1)

	start := (number - 1) * size
	if start >= len(items) {
		return []T{}
	}

	return items[start:min(start+size, len(items))]
}

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
