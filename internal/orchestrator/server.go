package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/pkg/async"
	"github.com/r-heap47/gamehost/internal/pkg/try"
)

// CreateServerRequest describes a server to provision.
type CreateServerRequest struct {
	Name string
	// OwnerEmail identifies the requesting user.
	OwnerEmail string
	// Egg is matched case-insensitively against the template catalog.
	Egg string
	// DockerImage and Startup default to the egg's values when empty.
	DockerImage string
	Startup     string
	Memory      int // MB
	Disk        int // MB
	CPU         int // percent of one core
}

// CreateServer runs the create-server pipeline on the pool. It fails fast and never retries.
func (o *Orchestrator) CreateServer(ctx context.Context, req CreateServerRequest) *async.Future[*handle.Server] {
	return async.Submit(ctx, o.b.Pool(), func(ctx context.Context) (srv *handle.Server, err error) {
		start := time.Now()
		ctx, span := o.tracer.Start(ctx, "orchestrator.CreateServer", trace.WithAttributes(
			attribute.String("server.name", req.Name),
			attribute.String("server.egg", req.Egg),
		))
		defer func() { o.finish(span, "create_server", start, err) }()

		log := o.logger.With(zap.String("server", req.Name))

		if err = o.checkServerAbsent(ctx, req.Name); err != nil {
			return nil, err
		}

		node, err := o.selectNode(ctx)
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.String("node.name", node.Name))
		log.Debug("node selected", zap.String("node", node.Name))

		create := panel.CreateServerRequest{
			Name:              req.Name,
			EggID:             0,
			Limits:            panel.Limits{Memory: req.Memory, Disk: req.Disk, CPU: req.CPU},
			Features:          o.cfg.Features,
			StartOnCompletion: o.cfg.StartOnCompletion,
			Environment:       maps.Clone(o.cfg.Environment),
		}
		if create.Environment == nil {
			create.Environment = make(map[string]string)
		}
		create.Environment["SERVER_NAME"] = req.Name
		create.Environment["SERVER_JARFILE"] = o.cfg.JarFile

		if err = o.reserveAllocation(ctx, node, &create); err != nil {
			return nil, err
		}

		egg, err := o.resolveEgg(ctx, req.Egg)
		if err != nil {
			return nil, err
		}
		create.EggID = egg.ID
		create.DockerImage = lo.CoalesceOrEmpty(req.DockerImage, egg.DockerImage)
		create.Startup = lo.CoalesceOrEmpty(req.Startup, egg.Startup)

		requester, err := o.resolveOwner(ctx, req.OwnerEmail)
		if err != nil {
			return nil, err
		}
		create.Description = "Dedicated server for " + requester.Username
		create.OwnerID = requester.ID
		if o.cfg.OwnerMode == OwnerServiceAccount {
			create.OwnerID = o.cfg.ServiceAccountID
		}

		created, err := o.createServer(ctx, create)
		if err != nil {
			return nil, err
		}
		if created.NodeID != node.ID {
			return nil, errs.Transport("CreateServer", fmt.Errorf("server %s landed on node %d instead of %s", created.Identifier, created.NodeID, node.Name))
		}
		log = log.With(zap.String("identifier", created.Identifier))
		span.SetAttributes(attribute.String("server.identifier", created.Identifier))

		if created.OwnerID != requester.ID {
			o.grant(ctx, created.Identifier, requester.Email)
		}

		srv, err = o.bind(ctx, created)
		if err != nil {
			return nil, err
		}

		log.Info("server created", zap.String("node", srv.Node), zap.String("address", srv.Address))

		return srv, nil
	})
}

// checkServerAbsent refuses names that resolve. An ambiguous lookup counts as taken.
func (o *Orchestrator) checkServerAbsent(ctx context.Context, name string) (err error) {
	ctx, span := o.step(ctx, "existence_check")
	defer func() { endStep(span, err) }()

	_, taken, err := handle.ScanWithin(ctx, o.b, o.b.Timeouts().Read, "ListServers", func(ctx context.Context, page panel.Page) ([]panel.Server, error) {
		return o.b.Panel().ListServers(ctx, panel.ServerFilter{Name: name}, page)
	}, func(s panel.Server) bool {
		return s.Name == name
	})
	if err != nil {
		o.logger.Warn("existence check failed, refusing create", zap.String("server", name), zap.Error(err))
		return errs.New(errs.KindAlreadyExists, errs.EntityServer, name, err)
	}

	if taken {
		return errs.ServerAlreadyExists(name)
	}

	return nil
}

// selectNode ranks a fresh node list and picks the best eligible node.
func (o *Orchestrator) selectNode(ctx context.Context) (_ panel.Node, err error) {
	ctx, span := o.step(ctx, "node_selection")
	defer func() { endStep(span, err) }()

	nodes, err := handle.Call(ctx, o.b, o.b.Timeouts().Read, "ListNodes", o.b.Panel().ListNodes,
		try.When(panel.IsNotFound, func(err error) error { return errs.InsufficientResources(err) }),
	)
	if err != nil {
		return panel.Node{}, err
	}

	eligible := lo.Reject(nodes, func(n panel.Node, _ int) bool { return n.Maintenance })
	span.SetAttributes(attribute.Int("nodes.total", len(nodes)), attribute.Int("nodes.eligible", len(eligible)))

	return o.cfg.Policy.Select(eligible)
}

// reserveAllocation fills the allocation part of req according to the allocation mode.
func (o *Orchestrator) reserveAllocation(ctx context.Context, node panel.Node, req *panel.CreateServerRequest) (err error) {
	ctx, span := o.step(ctx, "allocation")
	defer func() { endStep(span, err) }()

	if o.cfg.AllocationMode == AllocationAuto {
		loc, err := handle.Call(ctx, o.b, o.b.Timeouts().Read, "GetLocation", func(ctx context.Context) (panel.Location, error) {
			return o.b.Panel().GetLocation(ctx, node.LocationID)
		}, handle.NotFoundAs(errs.InsufficientAllocations(node.Name)))
		if err != nil {
			return err
		}

		req.DeployLocations = []int64{loc.ID}
		req.DeployNodes = []int64{node.ID}
		return nil
	}

	allocs, err := handle.Call(ctx, o.b, o.b.Timeouts().Read, "ListAllocations", func(ctx context.Context) ([]panel.Allocation, error) {
		return o.b.Panel().ListAllocations(ctx, node.ID)
	}, handle.NotFoundAs(errs.InsufficientAllocations(node.Name)))
	if err != nil {
		return err
	}

	free, ok := lo.Find(allocs, func(a panel.Allocation) bool { return !a.Assigned })
	if !ok {
		return errs.InsufficientAllocations(node.Name)
	}

	req.AllocationID = free.ID
	req.Environment["SERVER_IP"] = free.IP
	req.Environment["SERVER_PORT"] = strconv.Itoa(free.Port)
	span.SetAttributes(attribute.Int64("allocation.id", free.ID))

	return nil
}

func (o *Orchestrator) resolveEgg(ctx context.Context, name string) (_ panel.Egg, err error) {
	ctx, span := o.step(ctx, "egg_resolution")
	defer func() { endStep(span, err) }()

	eggs, err := handle.Call(ctx, o.b, o.b.Timeouts().Read, "ListEggs", o.b.Panel().ListEggs)
	if err != nil {
		return panel.Egg{}, err
	}

	egg, ok := lo.Find(eggs, func(e panel.Egg) bool { return strings.EqualFold(e.Name, name) })
	if !ok {
		return panel.Egg{}, errs.EggDoesNotExist(name)
	}

	return egg, nil
}

func (o *Orchestrator) resolveOwner(ctx context.Context, email string) (_ panel.User, err error) {
	ctx, span := o.step(ctx, "owner_resolution")
	defer func() { endStep(span, err) }()

	return handle.LookupUserByEmail(ctx, o.b, email)
}

func (o *Orchestrator) createServer(ctx context.Context, req panel.CreateServerRequest) (_ panel.Server, err error) {
	ctx, span := o.step(ctx, "create")
	defer func() { endStep(span, err) }()

	return handle.Call(ctx, o.b, o.b.Timeouts().Write, "CreateServer", func(ctx context.Context) (panel.Server, error) {
		return o.b.Panel().CreateServer(ctx, req)
	}, handle.ConflictAs(errs.ServerAlreadyExists(req.Name)))
}

// bind resolves the allocation and node of a created server. Success is never
// reported without an allocation.
func (o *Orchestrator) bind(ctx context.Context, s panel.Server) (*handle.Server, error) {
	if s.AllocationID == 0 {
		return nil, errs.Transport("CreateServer", errors.New("created server has no allocation"))
	}

	srv, err := o.b.Server(ctx, s)
	if err != nil {
		if errs.KindOf(err) != errs.KindTransport {
			err = errs.Transport("GetAllocation", err)
		}
		return nil, err
	}

	return srv, nil
}
