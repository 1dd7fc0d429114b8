package placement

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/panel"
)

// DefaultLowHeadroomMB is the unused-memory threshold below which a node is
// deprioritized regardless of how much it has left.
const DefaultLowHeadroomMB int64 = 2048

// Unknown is the headroom of a node whose memory fields cannot be parsed.
const Unknown int64 = math.MinInt64

// Policy ranks nodes for a new server.
type Policy struct {
	LowHeadroomMB int64
}

// New creates a Policy. A non-positive threshold falls back to DefaultLowHeadroomMB.
func New(lowHeadroomMB int64) Policy {
	if lowHeadroomMB <= 0 {
		lowHeadroomMB = DefaultLowHeadroomMB
	}
	return Policy{LowHeadroomMB: lowHeadroomMB}
}

// Candidate is a node together with its computed headroom.
type Candidate struct {
	Node     panel.Node
	UnusedMB int64
	Low      bool
}

// Unused returns the node's unused memory in MB, or Unknown when either field
// is not a number.
func Unused(n panel.Node) int64 {
	total, err := strconv.ParseInt(strings.TrimSpace(n.Memory), 10, 64)
	if err != nil {
		return Unknown
	}

	allocated, err := strconv.ParseInt(strings.TrimSpace(n.AllocatedMemory), 10, 64)
	if err != nil {
		return Unknown
	}

	return total - allocated
}

// Compare orders a before b (negative) when a is the better placement target.
func (p Policy) Compare(a, b panel.Node) int {
	if a.Maintenance != b.Maintenance {
		if a.Maintenance {
			return 1
		}
		return -1
	}

	ua, ub := Unused(a), Unused(b)

	lowA, lowB := p.low(ua), p.low(ub)
	if lowA != lowB {
		if lowA {
			return 1
		}
		return -1
	}

	switch {
	case ua > ub:
		return -1
	case ua < ub:
		return 1
	default:
		return 0
	}
}

// Rank returns nodes from best to worst. Ties keep their input order.
func (p Policy) Rank(nodes []panel.Node) []panel.Node {
	ranked := slices.Clone(nodes)
	slices.SortStableFunc(ranked, p.Compare)
	return ranked
}

// Select returns the best node. Fails with InsufficientResources when there is
// no node or the best one is in maintenance.
func (p Policy) Select(nodes []panel.Node) (panel.Node, error) {
	ranked := p.Rank(nodes)
	if len(ranked) == 0 {
		return panel.Node{}, errs.InsufficientResources(nil)
	}

	best := ranked[0]
	if best.Maintenance {
		return panel.Node{}, errs.InsufficientResources(nil)
	}

	return best, nil
}

// Preview ranks nodes and reports the headroom the decision was based on.
func (p Policy) Preview(nodes []panel.Node) []Candidate {
	return lo.Map(p.Rank(nodes), func(n panel.Node, _ int) Candidate {
		unused := Unused(n)
		return Candidate{Node: n, UnusedMB: unused, Low: p.low(unused)}
	})
}

func (p Policy) low(unused int64) bool {
	return unused < p.LowHeadroomMB
}
