package v1

import (
	"context"

	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/panel"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
	"github.com/r-heap47/gamehost/internal/placement"
)

// PreviewPlacement ranks the current nodes the way a new server would be placed
func (i *Implementation) PreviewPlacement(ctx context.Context, _ *emptypb.Empty) (*pbgamehost.PlacementResponse, error) {
	nodes, err := handle.Call(ctx, i.binder, i.binder.Timeouts().Read, "ListNodes", func(ctx context.Context) ([]panel.Node, error) {
		return i.binder.Panel().ListNodes(ctx)
	})
	if err != nil {
		return nil, toStatus("panel.ListNodes", err)
	}

	return &pbgamehost.PlacementResponse{
		Candidates: CandidatesToPb(i.policy.Preview(nodes)),
	}, nil
}

// CandidatesToPb converts a ranking. Unparseable headroom is reported as unknown with zero MB.
func CandidatesToPb(ranked []placement.Candidate) []*pbgamehost.Candidate {
	return lo.Map(ranked, func(c placement.Candidate, _ int) *pbgamehost.Candidate {
		unknown := c.UnusedMB == placement.Unknown

		return &pbgamehost.Candidate{
			Node:        c.Node.Name,
			NodeID:      c.Node.ID,
			UnusedMB:    lo.Ternary(unknown, 0, c.UnusedMB),
			Low:         c.Low,
			Maintenance: c.Node.Maintenance,
			Unknown:     unknown,
		}
	})
}
