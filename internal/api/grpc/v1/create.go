package v1

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/r-heap47/gamehost/internal/orchestrator"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
)

// CreateUser provisions a panel account
func (i *Implementation) CreateUser(ctx context.Context, req *pbgamehost.CreateUserRequest) (*pbgamehost.User, error) {
	correlation, err := validateCreateUserRequest(req)
	if err != nil {
		return nil, invalidArgument(err)
	}

	u, err := i.orc.CreateUser(ctx, orchestrator.CreateUserRequest{
		CorrelationID: correlation,
		Username:      req.Username,
		Password:      req.Password,
		Email:         req.Email,
	}).Await(ctx)
	if err != nil {
		return nil, toStatus("orchestrator.CreateUser", err)
	}

	return userToPb(u), nil
}

func validateCreateUserRequest(req *pbgamehost.CreateUserRequest) (uuid.UUID, error) {
	if req == nil {
		return uuid.Nil, errors.New("UNEXPECTED: CreateUserRequest is nil")
	}
	if req.Username == "" {
		return uuid.Nil, errors.New("username cannot be empty")
	}
	if req.CorrelationID == "" {
		return uuid.Nil, nil
	}

	id, err := uuid.Parse(req.CorrelationID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed correlation_id: %w", err)
	}

	return id, nil
}

// CreateServer provisions a server for the requesting user
func (i *Implementation) CreateServer(ctx context.Context, req *pbgamehost.CreateServerRequest) (*pbgamehost.Server, error) {
	if err := validateCreateServerRequest(req); err != nil {
		return nil, invalidArgument(err)
	}

	s, err := i.orc.CreateServer(ctx, orchestrator.CreateServerRequest{
		Name:        req.Name,
		OwnerEmail:  req.OwnerEmail,
		Egg:         req.Egg,
		DockerImage: req.DockerImage,
		Startup:     req.Startup,
		Memory:      req.Memory,
		Disk:        req.Disk,
		CPU:         req.CPU,
	}).Await(ctx)
	if err != nil {
		return nil, toStatus("orchestrator.CreateServer", err)
	}

	return serverToPb(s), nil
}

func validateCreateServerRequest(req *pbgamehost.CreateServerRequest) error {
	if req == nil {
		return errors.New("UNEXPECTED: CreateServerRequest is nil")
	}
	if req.Name == "" {
		return errors.New("name cannot be empty")
	}
	if req.OwnerEmail == "" {
		return errors.New("owner_email cannot be empty")
	}
	if req.Egg == "" {
		return errors.New("egg cannot be empty")
	}
	if req.Memory <= 0 {
		return errors.New("memory should be positive")
	}
	if req.Disk <= 0 {
		return errors.New("disk should be positive")
	}
	if req.CPU < 0 {
		return errors.New("cpu cannot be negative")
	}

	return nil
}
