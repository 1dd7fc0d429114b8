package v1

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/r-heap47/gamehost/internal/handle"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
	"github.com/r-heap47/gamehost/internal/pkg/async"
)

// FindServer resolves a server by one of its keys
func (i *Implementation) FindServer(ctx context.Context, req *pbgamehost.FindServerRequest) (*pbgamehost.Server, error) {
	if err := validateFindServerRequest(req); err != nil {
		return nil, invalidArgument(err)
	}

	var f *async.Future[*handle.Server]
	switch req.By {
	case pbgamehost.ServerByName:
		f = i.servers.FindByName(ctx, req.Value)
	case pbgamehost.ServerByUUID:
		f = i.servers.FindByUUID(ctx, req.Value)
	case pbgamehost.ServerByIdentifier:
		f = i.servers.FindByIdentifier(ctx, req.Value)
	case pbgamehost.ServerByDomain:
		f = i.servers.FindByDomain(ctx, req.Value)
	case pbgamehost.ServerByID:
		id, err := strconv.ParseInt(req.Value, 10, 64)
		if err != nil {
			return nil, invalidArgument(fmt.Errorf("malformed id: %w", err))
		}
		f = i.servers.FindByInternalID(ctx, id)
	}

	s, err := f.Await(ctx)
	if err != nil {
		return nil, toStatus("servers.Find", err)
	}

	return serverToPb(s), nil
}

func validateFindServerRequest(req *pbgamehost.FindServerRequest) error {
	if req == nil {
		return errors.New("UNEXPECTED: FindServerRequest is nil")
	}
	if req.Value == "" {
		return errors.New("value cannot be empty")
	}

	switch req.By {
	case pbgamehost.ServerByName, pbgamehost.ServerByUUID, pbgamehost.ServerByIdentifier,
		pbgamehost.ServerByID, pbgamehost.ServerByDomain:
		return nil
	default:
		return fmt.Errorf("unknown lookup key %q", req.By)
	}
}

// ListServers returns one page of servers
func (i *Implementation) ListServers(ctx context.Context, req *pbgamehost.ListRequest) (*pbgamehost.ListServersResponse, error) {
	if req == nil {
		return nil, invalidArgument(errors.New("UNEXPECTED: ListRequest is nil"))
	}

	servers, err := i.servers.List(ctx, req.Page, req.Size).Await(ctx)
	if err != nil {
		return nil, toStatus("servers.List", err)
	}

	return &pbgamehost.ListServersResponse{
		Servers: lo.Map(servers, func(s *handle.Server, _ int) *pbgamehost.Server { return serverToPb(s) }),
	}, nil
}

// DeleteServer removes a server
func (i *Implementation) DeleteServer(ctx context.Context, req *pbgamehost.ServerRef) (*emptypb.Empty, error) {
	s, err := i.server(ctx, req)
	if err != nil {
		return nil, err
	}

	if _, err = i.servers.Delete(ctx, s).Await(ctx); err != nil {
		return nil, toStatus("servers.Delete", err)
	}

	return &emptypb.Empty{}, nil
}

// ServerStatus reports the power state of a server
func (i *Implementation) ServerStatus(ctx context.Context, req *pbgamehost.ServerRef) (*pbgamehost.StatusResponse, error) {
	s, err := i.server(ctx, req)
	if err != nil {
		return nil, err
	}

	st, err := s.Status(ctx).Await(ctx)
	if err != nil {
		return nil, toStatus("server.Status", err)
	}

	return &pbgamehost.StatusResponse{Status: string(st)}, nil
}

// ServerUsage reports the resource consumption of a server
func (i *Implementation) ServerUsage(ctx context.Context, req *pbgamehost.ServerRef) (*pbgamehost.UsageResponse, error) {
	s, err := i.server(ctx, req)
	if err != nil {
		return nil, err
	}

	u, err := s.Usage(ctx).Await(ctx)
	if err != nil {
		return nil, toStatus("server.Usage", err)
	}

	return &pbgamehost.UsageResponse{
		MemoryMB:   u.MemoryMB,
		DiskMB:     u.DiskMB,
		CPUPercent: u.CPUPercent,
	}, nil
}

// PowerServer sends a power signal to a server
func (i *Implementation) PowerServer(ctx context.Context, req *pbgamehost.PowerRequest) (*emptypb.Empty, error) {
	if err := validatePowerRequest(req); err != nil {
		return nil, invalidArgument(err)
	}

	s, err := i.server(ctx, &pbgamehost.ServerRef{Identifier: req.Identifier})
	if err != nil {
		return nil, err
	}

	var f *async.Future[struct{}]
	switch req.Signal {
	case pbgamehost.PowerStart:
		f = s.Start(ctx)
	case pbgamehost.PowerStop:
		f = s.Stop(ctx)
	case pbgamehost.PowerRestart:
		f = s.Restart(ctx)
	case pbgamehost.PowerKill:
		f = s.Kill(ctx)
	}

	if _, err = f.Await(ctx); err != nil {
		return nil, toStatus("server.Power", err)
	}

	return &emptypb.Empty{}, nil
}

func validatePowerRequest(req *pbgamehost.PowerRequest) error {
	if req == nil {
		return errors.New("UNEXPECTED: PowerRequest is nil")
	}
	if req.Identifier == "" {
		return errors.New("identifier cannot be empty")
	}

	switch req.Signal {
	case pbgamehost.PowerStart, pbgamehost.PowerStop, pbgamehost.PowerRestart, pbgamehost.PowerKill:
		return nil
	default:
		return fmt.Errorf("unknown signal %q", req.Signal)
	}
}

// RenameServer changes the display name of a server
func (i *Implementation) RenameServer(ctx context.Context, req *pbgamehost.RenameRequest) (*emptypb.Empty, error) {
	if req == nil {
		return nil, invalidArgument(errors.New("UNEXPECTED: RenameRequest is nil"))
	}
	if req.Name == "" {
		return nil, invalidArgument(errors.New("name cannot be empty"))
	}

	s, err := i.server(ctx, &pbgamehost.ServerRef{Identifier: req.Identifier})
	if err != nil {
		return nil, err
	}

	if _, err = s.Rename(ctx, req.Name).Await(ctx); err != nil {
		return nil, toStatus("server.Rename", err)
	}

	return &emptypb.Empty{}, nil
}

// SetResources changes the build limits of a server
func (i *Implementation) SetResources(ctx context.Context, req *pbgamehost.SetResourcesRequest) (*pbgamehost.Limits, error) {
	if err := validateSetResourcesRequest(req); err != nil {
		return nil, invalidArgument(err)
	}

	s, err := i.server(ctx, &pbgamehost.ServerRef{Identifier: req.Identifier})
	if err != nil {
		return nil, err
	}

	limits, err := s.SetResources(ctx, handle.ResourceUpdate{
		CPU:    req.CPU,
		Memory: req.Memory,
		Disk:   req.Disk,
	}).Await(ctx)
	if err != nil {
		return nil, toStatus("server.SetResources", err)
	}

	return &pbgamehost.Limits{
		Memory: limits.Memory,
		Disk:   limits.Disk,
		CPU:    limits.CPU,
	}, nil
}

func validateSetResourcesRequest(req *pbgamehost.SetResourcesRequest) error {
	if req == nil {
		return errors.New("UNEXPECTED: SetResourcesRequest is nil")
	}
	if req.Identifier == "" {
		return errors.New("identifier cannot be empty")
	}
	if req.Memory != nil && *req.Memory <= 0 {
		return errors.New("memory should be positive")
	}
	if req.Disk != nil && *req.Disk <= 0 {
		return errors.New("disk should be positive")
	}
	if req.CPU != nil && *req.CPU < 0 {
		return errors.New("cpu cannot be negative")
	}

	return nil
}

// SetDomain labels the primary allocation of a server
func (i *Implementation) SetDomain(ctx context.Context, req *pbgamehost.SetDomainRequest) (*pbgamehost.SetDomainResponse, error) {
	if req == nil {
		return nil, invalidArgument(errors.New("UNEXPECTED: SetDomainRequest is nil"))
	}

	s, err := i.server(ctx, &pbgamehost.ServerRef{Identifier: req.Identifier})
	if err != nil {
		return nil, err
	}

	updated, err := s.SetDomain(ctx, req.Domain).Await(ctx)
	if err != nil {
		return nil, toStatus("server.SetDomain", err)
	}

	return &pbgamehost.SetDomainResponse{Updated: updated}, nil
}

// server resolves the handle named by ref; failures are already status errors.
func (i *Implementation) server(ctx context.Context, ref *pbgamehost.ServerRef) (*handle.Server, error) {
	if ref == nil || ref.Identifier == "" {
		return nil, invalidArgument(errors.New("identifier cannot be empty"))
	}

	s, err := i.servers.FindByIdentifier(ctx, ref.Identifier).Await(ctx)
	if err != nil {
		return nil, toStatus("servers.FindByIdentifier", err)
	}

	return s, nil
}
