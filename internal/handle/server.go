package handle

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/pkg/async"
)

// Server is a live reference to a server instance.
type Server struct {
	ID           int64  `json:"id"`
	Identifier   string `json:"identifier"`
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	OwnerID      int64  `json:"owner_id"`
	NodeID       int64  `json:"node_id"`
	Node         string `json:"node"`
	AllocationID int64  `json:"allocation_id"`
	Address      string `json:"address"`

	b *Binder
}

// ResourceUpdate changes any subset of the build limits. Nil fields are kept.
type ResourceUpdate struct {
	CPU    *int `json:"cpu,omitempty"`
	Memory *int `json:"memory,omitempty"`
	Disk   *int `json:"disk,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ResourceUpdate) Empty() bool {
	return u.CPU == nil && u.Memory == nil && u.Disk == nil
}

func (u ResourceUpdate) apply(l panel.Limits) panel.Limits {
	if u.CPU != nil {
		l.CPU = *u.CPU
	}
	if u.Memory != nil {
		l.Memory = *u.Memory
	}
	if u.Disk != nil {
		l.Disk = *u.Disk
	}
	return l
}

func (s *Server) resolve(ctx context.Context) (panel.Server, error) {
	return Call(ctx, s.b, s.b.timeouts.Read, "GetServerByIdentifier", func(ctx context.Context) (panel.Server, error) {
		return s.b.panel.GetServerByIdentifier(ctx, s.Identifier)
	}, NotFoundAs(errs.ServerDoesNotExist(s.Identifier)))
}

func (s *Server) notFound() error {
	return errs.ServerDoesNotExist(s.Identifier)
}

// Status reports the current power state.
func (s *Server) Status(ctx context.Context) *async.Future[Status] {
	return async.Submit(ctx, s.b.pool, func(ctx context.Context) (Status, error) {
		if _, err := s.resolve(ctx); err != nil {
			return "", err
		}

		u, err := Call(ctx, s.b, s.b.timeouts.Read, "Utilization", func(ctx context.Context) (panel.Utilization, error) {
			return s.b.panel.Utilization(ctx, s.Identifier)
		}, NotFoundAs(s.notFound()))
		if err != nil {
			return "", err
		}

		return StatusOf(u.State), nil
	})
}

// Usage reports current resource consumption.
func (s *Server) Usage(ctx context.Context) *async.Future[Usage] {
	return async.Submit(ctx, s.b.pool, func(ctx context.Context) (Usage, error) {
		if _, err := s.resolve(ctx); err != nil {
			return Usage{}, err
		}

		u, err := Call(ctx, s.b, s.b.timeouts.Read, "Utilization", func(ctx context.Context) (panel.Utilization, error) {
			return s.b.panel.Utilization(ctx, s.Identifier)
		}, NotFoundAs(s.notFound()))
		if err != nil {
			return Usage{}, err
		}

		return UsageOf(u), nil
	})
}

func (s *Server) Start(ctx context.Context) *async.Future[struct{}] {
	return s.power(ctx, panel.SignalStart)
}

func (s *Server) Stop(ctx context.Context) *async.Future[struct{}] {
	return s.power(ctx, panel.SignalStop)
}

func (s *Server) Restart(ctx context.Context) *async.Future[struct{}] {
	return s.power(ctx, panel.SignalRestart)
}

// Kill stops the server without a graceful shutdown.
func (s *Server) Kill(ctx context.Context) *async.Future[struct{}] {
	return s.power(ctx, panel.SignalKill)
}

func (s *Server) power(ctx context.Context, signal panel.PowerSignal) *async.Future[struct{}] {
	return async.Submit(ctx, s.b.pool, func(ctx context.Context) (struct{}, error) {
		if _, err := s.resolve(ctx); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, Exec(ctx, s.b, s.b.timeouts.Write, "SendPower", func(ctx context.Context) error {
			return s.b.panel.SendPower(ctx, s.Identifier, signal)
		}, NotFoundAs(s.notFound()))
	})
}

// Rename changes the display name.
func (s *Server) Rename(ctx context.Context, name string) *async.Future[struct{}] {
	return async.Submit(ctx, s.b.pool, func(ctx context.Context) (struct{}, error) {
		if _, err := s.resolve(ctx); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, Exec(ctx, s.b, s.b.timeouts.Write, "RenameServer", func(ctx context.Context) error {
			return s.b.panel.RenameServer(ctx, s.Identifier, name)
		}, NotFoundAs(s.notFound()))
	})
}

// SetResources applies upd on top of the current build limits and returns the resulting limits.
func (s *Server) SetResources(ctx context.Context, upd ResourceUpdate) *async.Future[panel.Limits] {
	return async.Submit(ctx, s.b.pool, func(ctx context.Context) (panel.Limits, error) {
		cur, err := s.resolve(ctx)
		if err != nil {
			return panel.Limits{}, err
		}
		if upd.Empty() {
			return cur.Limits, nil
		}

		updated, err := Call(ctx, s.b, s.b.timeouts.Write, "UpdateBuild", func(ctx context.Context) (panel.Server, error) {
			return s.b.panel.UpdateBuild(ctx, cur.ID, upd.apply(cur.Limits))
		}, NotFoundAs(s.notFound()))
		if err != nil {
			return panel.Limits{}, err
		}

		return updated.Limits, nil
	})
}

// SetDomain labels the primary allocation with domain. It reports false when
// the server has no allocation to label.
func (s *Server) SetDomain(ctx context.Context, domain string) *async.Future[bool] {
	return async.Submit(ctx, s.b.pool, func(ctx context.Context) (bool, error) {
		cur, err := s.resolve(ctx)
		if err != nil {
			return false, err
		}
		if cur.AllocationID == 0 {
			return false, nil
		}

		err = Exec(ctx, s.b, s.b.timeouts.Write, "SetAllocationNotes", func(ctx context.Context) error {
			return s.b.panel.SetAllocationNotes(ctx, s.Identifier, cur.AllocationID, domain)
		}, NotFoundAs(s.notFound()))

		return err == nil, err
	})
}

// Allow grants the control bundle to u. It reports whether anything changed.
func (s *Server) Allow(ctx context.Context, u *User) *async.Future[bool] {
	return async.Submit(ctx, s.b.pool, func(ctx context.Context) (bool, error) {
		sub, ok, err := s.subuser(ctx, u.Email)
		if err != nil {
			return false, err
		}

		if !ok {
			_, err = Call(ctx, s.b, s.b.timeouts.Write, "CreateSubuser", func(ctx context.Context) (panel.Subuser, error) {
				return s.b.panel.CreateSubuser(ctx, s.Identifier, u.Email, s.b.control)
			}, NotFoundAs(s.notFound()))
			return err == nil, err
		}

		if len(lo.Without(s.b.control, sub.Permissions...)) == 0 {
			return false, nil
		}

		return s.updateSubuser(ctx, sub.UUID, lo.Union(sub.Permissions, s.b.control))
	})
}

// Disallow revokes the control bundle from u. A user without access is left alone.
func (s *Server) Disallow(ctx context.Context, u *User) *async.Future[bool] {
	return async.Submit(ctx, s.b.pool, func(ctx context.Context) (bool, error) {
		sub, ok, err := s.subuser(ctx, u.Email)
		if err != nil || !ok {
			return false, err
		}

		if !lo.Some(sub.Permissions, s.b.control) {
			return false, nil
		}

		return s.updateSubuser(ctx, sub.UUID, lo.Without(sub.Permissions, s.b.control...))
	})
}

// HasPermission reports whether u owns the server or is one of its subusers.
func (s *Server) HasPermission(ctx context.Context, u *User) *async.Future[bool] {
	return async.Submit(ctx, s.b.pool, func(ctx context.Context) (bool, error) {
		cur, err := s.resolve(ctx)
		if err != nil {
			return false, err
		}
		if cur.OwnerID == u.ID {
			return true, nil
		}

		_, ok, err := s.listedSubuser(ctx, u.Email)
		return ok, err
	})
}

// subuser re-resolves the server and looks up the entry of email.
func (s *Server) subuser(ctx context.Context, email string) (panel.Subuser, bool, error) {
	if _, err := s.resolve(ctx); err != nil {
		return panel.Subuser{}, false, err
	}
	return s.listedSubuser(ctx, email)
}

func (s *Server) listedSubuser(ctx context.Context, email string) (panel.Subuser, bool, error) {
	subs, err := Call(ctx, s.b, s.b.timeouts.Read, "ListSubusers", func(ctx context.Context) ([]panel.Subuser, error) {
		return s.b.panel.ListSubusers(ctx, s.Identifier)
	}, NotFoundAs(s.notFound()))
	if err != nil {
		return panel.Subuser{}, false, err
	}

	sub, ok := lo.Find(subs, func(sub panel.Subuser) bool { return sub.Email == email })
	return sub, ok, nil
}

func (s *Server) updateSubuser(ctx context.Context, uuid string, perms []panel.Permission) (bool, error) {
	_, err := Call(ctx, s.b, s.b.timeouts.Write, "UpdateSubuser", func(ctx context.Context) (panel.Subuser, error) {
		return s.b.panel.UpdateSubuser(ctx, s.Identifier, uuid, perms)
	}, NotFoundAs(s.notFound()))
	if err != nil {
		return false, err
	}

	s.b.logger.Debug("subuser permissions updated",
		zap.String("identifier", s.Identifier),
		zap.String("subuser", uuid),
		zap.Int("permissions", len(perms)),
	)

	return true, nil
}

// isSubuser reports whether email has an entry on the server. A server that
// disappeared in the meantime grants nothing.
func isSubuser(ctx context.Context, b *Binder, identifier, email string) (bool, error) {
	subs, err := Call(ctx, b, b.timeouts.Read, "ListSubusers", func(ctx context.Context) ([]panel.Subuser, error) {
		return b.panel.ListSubusers(ctx, identifier)
	}, NotFoundAs(errs.ServerDoesNotExist(identifier)))
	if errs.KindOf(err) == errs.KindDoesNotExist {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return lo.ContainsBy(subs, func(sub panel.Subuser) bool { return sub.Email == email }), nil
}

const bindConcurrency = 8

// BindAll binds servers concurrently, resolving the allocation and node of each.
func (b *Binder) BindAll(ctx context.Context, servers []panel.Server) ([]*Server, error) {
	out := make([]*Server, len(servers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bindConcurrency)
	for i, srv := range servers {
		g.Go(func() error {
			h, err := b.Server(gctx, srv)
			if err != nil {
				return err
			}
			out[i] = h
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
