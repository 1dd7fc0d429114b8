package v1

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/r-heap47/gamehost/internal/handle"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
	"github.com/r-heap47/gamehost/internal/pkg/async"
)

// FindUser resolves an account by one of its keys
func (i *Implementation) FindUser(ctx context.Context, req *pbgamehost.FindUserRequest) (*pbgamehost.User, error) {
	if err := validateFindUserRequest(req); err != nil {
		return nil, invalidArgument(err)
	}

	var f *async.Future[*handle.User]
	switch req.By {
	case pbgamehost.UserByUsername:
		f = i.users.FindByUsername(ctx, req.Value)
	case pbgamehost.UserByEmail:
		f = i.users.FindByEmail(ctx, req.Value)
	case pbgamehost.UserByCorrelation:
		id, err := uuid.Parse(req.Value)
		if err != nil {
			return nil, invalidArgument(fmt.Errorf("malformed correlation_id: %w", err))
		}
		f = i.users.FindByCorrelationID(ctx, id)
	case pbgamehost.UserByID:
		id, err := strconv.ParseInt(req.Value, 10, 64)
		if err != nil {
			return nil, invalidArgument(fmt.Errorf("malformed id: %w", err))
		}
		f = i.users.FindByInternalID(ctx, id)
	}

	u, err := f.Await(ctx)
	if err != nil {
		return nil, toStatus("users.Find", err)
	}

	return userToPb(u), nil
}

func validateFindUserRequest(req *pbgamehost.FindUserRequest) error {
	if req == nil {
		return errors.New("UNEXPECTED: FindUserRequest is nil")
	}
	if req.Value == "" {
		return errors.New("value cannot be empty")
	}

	switch req.By {
	case pbgamehost.UserByUsername, pbgamehost.UserByEmail, pbgamehost.UserByCorrelation, pbgamehost.UserByID:
		return nil
	default:
		return fmt.Errorf("unknown lookup key %q", req.By)
	}
}

// ListUsers returns one page of accounts
func (i *Implementation) ListUsers(ctx context.Context, req *pbgamehost.ListRequest) (*pbgamehost.ListUsersResponse, error) {
	if req == nil {
		return nil, invalidArgument(errors.New("UNEXPECTED: ListRequest is nil"))
	}

	users, err := i.users.List(ctx, req.Page, req.Size).Await(ctx)
	if err != nil {
		return nil, toStatus("users.List", err)
	}

	return &pbgamehost.ListUsersResponse{
		Users: lo.Map(users, func(u *handle.User, _ int) *pbgamehost.User { return userToPb(u) }),
	}, nil
}

// DeleteUser removes an account
func (i *Implementation) DeleteUser(ctx context.Context, req *pbgamehost.UserRef) (*emptypb.Empty, error) {
	u, err := i.user(ctx, req)
	if err != nil {
		return nil, err
	}

	if _, err = i.users.Delete(ctx, u).Await(ctx); err != nil {
		return nil, toStatus("users.Delete", err)
	}

	return &emptypb.Empty{}, nil
}

// UpdateUser changes the username, email and/or password of an account
func (i *Implementation) UpdateUser(ctx context.Context, req *pbgamehost.UpdateUserRequest) (*pbgamehost.User, error) {
	if err := validateUpdateUserRequest(req); err != nil {
		return nil, invalidArgument(err)
	}

	u, err := i.user(ctx, &pbgamehost.UserRef{Email: req.Email})
	if err != nil {
		return nil, err
	}

	// each edit re-resolves by the handle's email, so the email change goes last
	if req.NewUsername != nil {
		if u, err = u.SetUsername(ctx, *req.NewUsername).Await(ctx); err != nil {
			return nil, toStatus("user.SetUsername", err)
		}
	}
	if req.NewPassword != nil {
		if u, err = u.SetPassword(ctx, *req.NewPassword).Await(ctx); err != nil {
			return nil, toStatus("user.SetPassword", err)
		}
	}
	if req.NewEmail != nil {
		if u, err = u.SetEmail(ctx, *req.NewEmail).Await(ctx); err != nil {
			return nil, toStatus("user.SetEmail", err)
		}
	}

	return userToPb(u), nil
}

func validateUpdateUserRequest(req *pbgamehost.UpdateUserRequest) error {
	if req == nil {
		return errors.New("UNEXPECTED: UpdateUserRequest is nil")
	}
	if req.Email == "" {
		return errors.New("email cannot be empty")
	}
	if req.NewUsername == nil && req.NewEmail == nil && req.NewPassword == nil {
		return errors.New("nothing to update")
	}
	if req.NewUsername != nil && *req.NewUsername == "" {
		return errors.New("new_username cannot be empty")
	}
	if req.NewEmail != nil && *req.NewEmail == "" {
		return errors.New("new_email cannot be empty")
	}
	if req.NewPassword != nil && *req.NewPassword == "" {
		return errors.New("new_password cannot be empty")
	}

	return nil
}

// UserServers lists the servers an account owns or can access
func (i *Implementation) UserServers(ctx context.Context, req *pbgamehost.UserRef) (*pbgamehost.ListServersResponse, error) {
	u, err := i.user(ctx, req)
	if err != nil {
		return nil, err
	}

	servers, err := u.Servers(ctx).Await(ctx)
	if err != nil {
		return nil, toStatus("user.Servers", err)
	}

	return &pbgamehost.ListServersResponse{
		Servers: lo.Map(servers, func(s *handle.Server, _ int) *pbgamehost.Server { return serverToPb(s) }),
	}, nil
}

// user resolves the handle named by ref; failures are already status errors.
func (i *Implementation) user(ctx context.Context, ref *pbgamehost.UserRef) (*handle.User, error) {
	if ref == nil || ref.Email == "" {
		return nil, invalidArgument(errors.New("email cannot be empty"))
	}

	u, err := i.users.FindByEmail(ctx, ref.Email).Await(ctx)
	if err != nil {
		return nil, toStatus("users.FindByEmail", err)
	}

	return u, nil
}
