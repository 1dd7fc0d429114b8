package v1

import (
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/orchestrator"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
	"github.com/r-heap47/gamehost/internal/placement"
	"github.com/r-heap47/gamehost/internal/repository"
)

// Implementation - grpc service implementation
type Implementation struct {
	pbgamehost.UnimplementedProvisionerServer

	orc     *orchestrator.Orchestrator
	servers *repository.Servers
	users   *repository.Users
	binder  *handle.Binder
	policy  placement.Policy
	logger  *zap.Logger
}

// Config - implementation config
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Servers      *repository.Servers
	Users        *repository.Users
	Binder       *handle.Binder
	Logger       *zap.Logger
}

// New creates a new Implementation
func New(cfg *Config) *Implementation {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Implementation{
		orc:     cfg.Orchestrator,
		servers: cfg.Servers,
		users:   cfg.Users,
		binder:  cfg.Binder,
		policy:  cfg.Orchestrator.Policy(),
		logger:  logger.Named("api"),
	}
}

func serverToPb(s *handle.Server) *pbgamehost.Server {
	return &pbgamehost.Server{
		ID:           s.ID,
		Identifier:   s.Identifier,
		UUID:         s.UUID,
		Name:         s.Name,
		OwnerID:      s.OwnerID,
		NodeID:       s.NodeID,
		Node:         s.Node,
		AllocationID: s.AllocationID,
		Address:      s.Address,
	}
}

func userToPb(u *handle.User) *pbgamehost.User {
	return &pbgamehost.User{
		ID:       u.ID,
		UUID:     u.UUID,
		Username: u.Username,
		Email:    u.Email,
		Tag:      u.Tag,
	}
}
