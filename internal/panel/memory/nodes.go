package memory

import (
	"context"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/r-heap47/gamehost/internal/panel"
)

// ListNodes returns all nodes with their current memory accounting.
func (p *Panel) ListNodes(ctx context.Context) ([]panel.Node, error) {
	if err := p.enter(ctx, "ListNodes"); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]panel.Node, 0, len(p.st.Nodes))
	for _, id := range sortedIDs(p.st.Nodes) {
		out = append(out, *p.st.Nodes[id])
	}

	return out, nil
}

func (p *Panel) GetNode(ctx context.Context, id int64) (panel.Node, error) {
	if err := p.enter(ctx, "GetNode"); err != nil {
		return panel.Node{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	n, ok := p.st.Nodes[id]
	if !ok {
		return panel.Node{}, notFound("GetNode", strconv.FormatInt(id, 10))
	}

	return *n, nil
}

func (p *Panel) GetLocation(ctx context.Context, id int64) (panel.Location, error) {
	if err := p.enter(ctx, "GetLocation"); err != nil {
		return panel.Location{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	l, ok := p.st.Locations[id]
	if !ok {
		return panel.Location{}, notFound("GetLocation", strconv.FormatInt(id, 10))
	}

	return *l, nil
}

// SetMaintenance toggles a node's maintenance flag.
func (p *Panel) SetMaintenance(nodeID int64, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n, ok := p.st.Nodes[nodeID]; ok {
		n.Maintenance = on
	}
}

// ListAllocations returns the allocations of a node ordered by id.
func (p *Panel) ListAllocations(ctx context.Context, nodeID int64) ([]panel.Allocation, error) {
	if err := p.enter(ctx, "ListAllocations"); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.st.Nodes[nodeID]; !ok {
		return nil, notFound("ListAllocations", strconv.FormatInt(nodeID, 10))
	}

	out := []panel.Allocation{}
	for _, id := range sortedIDs(p.st.Allocations) {
		if a := p.st.Allocations[id]; a.NodeID == nodeID {
			out = append(out, *a)
		}
	}

	return out, nil
}

func (p *Panel) GetAllocation(ctx context.Context, id int64) (panel.Allocation, error) {
	if err := p.enter(ctx, "GetAllocation"); err != nil {
		return panel.Allocation{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	a, ok := p.st.Allocations[id]
	if !ok {
		return panel.Allocation{}, notFound("GetAllocation", strconv.FormatInt(id, 10))
	}

	return *a, nil
}

// SetAllocationNotes labels an allocation that belongs to the server.
func (p *Panel) SetAllocationNotes(ctx context.Context, identifier string, allocationID int64, notes string) error {
	if err := p.enter(ctx, "SetAllocationNotes"); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.serverByIdentifier(identifier)
	if s == nil {
		return notFound("SetAllocationNotes", identifier)
	}

	a, ok := p.st.Allocations[allocationID]
	if !ok || s.AllocationID != allocationID {
		return notFound("SetAllocationNotes", strconv.FormatInt(allocationID, 10))
	}

	a.Notes = notes
	p.persist(ctx)

	return nil
}

func (p *Panel) ListEggs(ctx context.Context) ([]panel.Egg, error) {
	if err := p.enter(ctx, "ListEggs"); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]panel.Egg, 0, len(p.st.Eggs))
	for _, id := range sortedIDs(p.st.Eggs) {
		out = append(out, *p.st.Eggs[id])
	}

	return out, nil
}

// Allocations builds one allocation per port in [from, to] for a seed.
func Allocations(nodeID int64, ip, alias string, from, to int) []panel.Allocation {
	out := make([]panel.Allocation, 0, max(to-from+1, 0))
	for port := from; port <= to; port++ {
		out = append(out, panel.Allocation{NodeID: nodeID, IP: ip, Alias: alias, Port: port})
	}
	return out
}

// HostNode describes the machine the daemon runs on as a node, sized by its physical memory.
func HostNode(ctx context.Context, id int64, name string, locationID int64) (panel.Node, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return panel.Node{}, err
	}

	return panel.Node{
		ID:              id,
		Name:            name,
		LocationID:      locationID,
		Memory:          strconv.FormatUint(vm.Total/(1024*1024), 10),
		AllocatedMemory: "0",
	}, nil
}

// addAllocatedMemory adjusts a node's allocated memory by delta MB.
// Nodes reporting non-numeric memory are left alone. Caller must hold p.mu.
func (p *Panel) addAllocatedMemory(nodeID int64, delta int) {
	n, ok := p.st.Nodes[nodeID]
	if !ok {
		return
	}

	cur, err := strconv.ParseInt(strings.TrimSpace(n.AllocatedMemory), 10, 64)
	if err != nil {
		return
	}

	n.AllocatedMemory = strconv.FormatInt(max(cur+int64(delta), 0), 10)
}
