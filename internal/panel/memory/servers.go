package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/installsignal"
	"github.com/r-heap47/gamehost/internal/panel"
)

const mib = 1024 * 1024

// ListServers filters by case-insensitive name substring and exact uuid.
func (p *Panel) ListServers(ctx context.Context, filter panel.ServerFilter, page panel.Page) ([]panel.Server, error) {
	if err := p.enter(ctx, "ListServers"); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var matched []panel.Server
	for _, id := range sortedIDs(p.st.Servers) {
		s := p.st.Servers[id]
		if !contains(s.Name, filter.Name) {
			continue
		}
		if filter.UUID != "" && s.UUID != filter.UUID {
			continue
		}
		matched = append(matched, cloneServer(s))
	}

	return paginate(matched, page), nil
}

func (p *Panel) GetServer(ctx context.Context, id int64) (panel.Server, error) {
	if err := p.enter(ctx, "GetServer"); err != nil {
		return panel.Server{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.st.Servers[id]
	if !ok {
		return panel.Server{}, notFound("GetServer", strconv.FormatInt(id, 10))
	}

	return cloneServer(s), nil
}

func (p *Panel) GetServerByIdentifier(ctx context.Context, identifier string) (panel.Server, error) {
	if err := p.enter(ctx, "GetServerByIdentifier"); err != nil {
		return panel.Server{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.serverByIdentifier(identifier)
	if s == nil {
		return panel.Server{}, notFound("GetServerByIdentifier", identifier)
	}

	return cloneServer(s), nil
}

// CreateServer validates the request, reserves an allocation and starts the install phase.
func (p *Panel) CreateServer(ctx context.Context, req panel.CreateServerRequest) (panel.Server, error) {
	if err := p.enter(ctx, "CreateServer"); err != nil {
		return panel.Server{}, err
	}

	invalid := func(format string, args ...any) error {
		return panel.NewError("CreateServer", req.Name, fmt.Errorf("%w: "+format, append([]any{panel.ErrValidation}, args...)...))
	}

	if req.Name == "" {
		return panel.Server{}, invalid("name is required")
	}
	if req.Limits.Memory <= 0 || req.Limits.Disk <= 0 {
		return panel.Server{}, invalid("memory and disk limits must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.st.Users[req.OwnerID]; !ok {
		return panel.Server{}, invalid("user %d does not exist", req.OwnerID)
	}
	if _, ok := p.st.Eggs[req.EggID]; !ok {
		return panel.Server{}, invalid("egg %d does not exist", req.EggID)
	}

	alloc, err := p.reserveAllocation(req)
	if err != nil {
		return panel.Server{}, panel.NewError("CreateServer", req.Name, err)
	}

	id := newUUID()
	s := &panel.Server{
		ID:           p.id(0),
		Identifier:   id[:8],
		UUID:         id,
		Name:         req.Name,
		Description:  req.Description,
		OwnerID:      req.OwnerID,
		NodeID:       alloc.NodeID,
		AllocationID: alloc.ID,
		EggID:        req.EggID,
		Limits:       req.Limits,
		Features:     req.Features,
		Environment:  maps.Clone(req.Environment),
	}

	alloc.Assigned = true
	p.st.Servers[s.ID] = s
	p.st.Power[s.Identifier] = panel.StateOffline
	p.addAllocatedMemory(s.NodeID, s.Limits.Memory)
	p.scheduleInstall(s.Identifier, s.UUID, req.StartOnCompletion)
	p.persist(ctx)

	p.logger.Debug("server created", zap.String("identifier", s.Identifier), zap.Int64("node", s.NodeID))

	return cloneServer(s), nil
}

// reserveAllocation picks the requested allocation, or the first free one on a
// non-maintenance node in the deploy locations (and deploy nodes, if any). Caller must hold p.mu.
func (p *Panel) reserveAllocation(req panel.CreateServerRequest) (*panel.Allocation, error) {
	if req.AllocationID > 0 {
		a, ok := p.st.Allocations[req.AllocationID]
		if !ok {
			return nil, fmt.Errorf("%w: allocation %d does not exist", panel.ErrValidation, req.AllocationID)
		}
		if a.Assigned {
			return nil, fmt.Errorf("%w: allocation %d is already assigned", panel.ErrConflict, req.AllocationID)
		}
		return a, nil
	}

	for _, id := range sortedIDs(p.st.Allocations) {
		a := p.st.Allocations[id]
		if a.Assigned {
			continue
		}
		n, ok := p.st.Nodes[a.NodeID]
		if !ok || n.Maintenance || !slices.Contains(req.DeployLocations, n.LocationID) {
			continue
		}
		if len(req.DeployNodes) > 0 && !slices.Contains(req.DeployNodes, n.ID) {
			continue
		}
		return a, nil
	}

	return nil, fmt.Errorf("%w: no viable allocation in locations %v on nodes %v", panel.ErrValidation, req.DeployLocations, req.DeployNodes)
}

// scheduleInstall finishes the install phase after InstallDelay and publishes the event.
func (p *Panel) scheduleInstall(identifier, serverUUID string, start bool) {
	p.timers[identifier] = time.AfterFunc(p.cfg.InstallDelay, func() {
		p.mu.Lock()
		delete(p.timers, identifier)

		s := p.serverByIdentifier(identifier)
		if s == nil {
			p.mu.Unlock()
			return
		}
		s.Installed = true
		if start {
			p.st.Power[identifier] = panel.StateRunning
		}
		p.persist(context.Background())
		p.mu.Unlock()

		if p.cfg.Signals == nil {
			return
		}

		ev := installsignal.Event{Identifier: identifier, UUID: serverUUID, CompletedAt: time.Now()}
		if err := p.cfg.Signals.Publish(context.Background(), ev); err != nil {
			p.logger.Warn("publish install event", zap.String("identifier", identifier), zap.Error(err))
		}
	})
}

// UpdateBuild replaces the resource limits and keeps node accounting in sync.
func (p *Panel) UpdateBuild(ctx context.Context, id int64, limits panel.Limits) (panel.Server, error) {
	if err := p.enter(ctx, "UpdateBuild"); err != nil {
		return panel.Server{}, err
	}

	if limits.Memory <= 0 || limits.Disk <= 0 || limits.CPU < 0 {
		return panel.Server{}, panel.NewError("UpdateBuild", strconv.FormatInt(id, 10), panel.ErrValidation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.st.Servers[id]
	if !ok {
		return panel.Server{}, notFound("UpdateBuild", strconv.FormatInt(id, 10))
	}

	p.addAllocatedMemory(s.NodeID, limits.Memory-s.Limits.Memory)
	s.Limits = limits
	p.persist(ctx)

	return cloneServer(s), nil
}

func (p *Panel) RenameServer(ctx context.Context, identifier, name string) error {
	if err := p.enter(ctx, "RenameServer"); err != nil {
		return err
	}

	if name == "" {
		return panel.NewError("RenameServer", identifier, panel.ErrValidation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.serverByIdentifier(identifier)
	if s == nil {
		return notFound("RenameServer", identifier)
	}

	s.Name = name
	p.persist(ctx)

	return nil
}

// DeleteServer releases the allocation and memory of the server.
func (p *Panel) DeleteServer(ctx context.Context, id int64, force bool) error {
	if err := p.enter(ctx, "DeleteServer"); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.st.Servers[id]
	if !ok {
		return notFound("DeleteServer", strconv.FormatInt(id, 10))
	}

	if !force && p.st.Power[s.Identifier] != panel.StateOffline {
		return panel.NewError("DeleteServer", s.Identifier, fmt.Errorf("%w: server is %s", panel.ErrConflict, p.st.Power[s.Identifier]))
	}

	if a, ok := p.st.Allocations[s.AllocationID]; ok {
		a.Assigned = false
		a.Notes = ""
	}
	if t, ok := p.timers[s.Identifier]; ok {
		t.Stop()
		delete(p.timers, s.Identifier)
	}

	p.addAllocatedMemory(s.NodeID, -s.Limits.Memory)
	delete(p.st.Servers, id)
	delete(p.st.Power, s.Identifier)
	delete(p.st.Subusers, s.Identifier)
	p.persist(ctx)

	return nil
}

// Utilization reports a deterministic usage figure derived from the limits.
func (p *Panel) Utilization(ctx context.Context, identifier string) (panel.Utilization, error) {
	if err := p.enter(ctx, "Utilization"); err != nil {
		return panel.Utilization{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.serverByIdentifier(identifier)
	if s == nil {
		return panel.Utilization{}, notFound("Utilization", identifier)
	}

	power := p.st.Power[identifier]
	u := panel.Utilization{
		State:     power,
		DiskBytes: int64(s.Limits.Disk) * mib / 4,
	}
	if power == panel.StateRunning {
		u.MemoryBytes = int64(s.Limits.Memory) * mib / 2
		u.CPUAbsolute = float64(s.Limits.CPU) / 4
	}

	return u, nil
}

// SendPower applies a power signal. Servers still installing reject it.
func (p *Panel) SendPower(ctx context.Context, identifier string, signal panel.PowerSignal) error {
	if err := p.enter(ctx, "SendPower"); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.serverByIdentifier(identifier)
	if s == nil {
		return notFound("SendPower", identifier)
	}
	if !s.Installed {
		return panel.NewError("SendPower", identifier, fmt.Errorf("%w: server is installing", panel.ErrConflict))
	}

	switch signal {
	case panel.SignalStart, panel.SignalRestart:
		p.st.Power[identifier] = panel.StateRunning
	case panel.SignalStop, panel.SignalKill:
		p.st.Power[identifier] = panel.StateOffline
	default:
		return panel.NewError("SendPower", identifier, fmt.Errorf("%w: unknown signal %q", panel.ErrValidation, signal))
	}
	p.persist(ctx)

	return nil
}

// SetPowerState forces a server into state, bypassing the install check.
func (p *Panel) SetPowerState(identifier string, power panel.PowerState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.st.Power[identifier]; ok {
		p.st.Power[identifier] = power
	}
}

// serverByIdentifier returns the live record. Caller must hold p.mu.
func (p *Panel) serverByIdentifier(identifier string) *panel.Server {
	for _, s := range p.st.Servers {
		if s.Identifier == identifier {
			return s
		}
	}
	return nil
}

func cloneServer(s *panel.Server) panel.Server {
	out := *s
	out.Environment = maps.Clone(s.Environment)
	return out
}
