package v1

import (
	"context"
	"errors"

	"github.com/r-heap47/gamehost/internal/handle"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
)

// Allow grants the control bundle of a server to an account
func (i *Implementation) Allow(ctx context.Context, req *pbgamehost.AccessRequest) (*pbgamehost.AccessResponse, error) {
	s, u, err := i.access(ctx, req)
	if err != nil {
		return nil, err
	}

	changed, err := s.Allow(ctx, u).Await(ctx)
	if err != nil {
		return nil, toStatus("server.Allow", err)
	}

	return &pbgamehost.AccessResponse{Changed: changed}, nil
}

// Disallow revokes the control bundle of a server from an account
func (i *Implementation) Disallow(ctx context.Context, req *pbgamehost.AccessRequest) (*pbgamehost.AccessResponse, error) {
	s, u, err := i.access(ctx, req)
	if err != nil {
		return nil, err
	}

	changed, err := s.Disallow(ctx, u).Await(ctx)
	if err != nil {
		return nil, toStatus("server.Disallow", err)
	}

	return &pbgamehost.AccessResponse{Changed: changed}, nil
}

// HasPermission reports whether an account can access a server
func (i *Implementation) HasPermission(ctx context.Context, req *pbgamehost.AccessRequest) (*pbgamehost.PermissionResponse, error) {
	s, u, err := i.access(ctx, req)
	if err != nil {
		return nil, err
	}

	granted, err := s.HasPermission(ctx, u).Await(ctx)
	if err != nil {
		return nil, toStatus("server.HasPermission", err)
	}

	return &pbgamehost.PermissionResponse{Granted: granted}, nil
}

func (i *Implementation) access(ctx context.Context, req *pbgamehost.AccessRequest) (*handle.Server, *handle.User, error) {
	if req == nil {
		return nil, nil, invalidArgument(errors.New("UNEXPECTED: AccessRequest is nil"))
	}

	s, err := i.server(ctx, &pbgamehost.ServerRef{Identifier: req.Identifier})
	if err != nil {
		return nil, nil, err
	}

	u, err := i.user(ctx, &pbgamehost.UserRef{Email: req.Email})
	if err != nil {
		return nil, nil, err
	}

	return s, u, nil
}
