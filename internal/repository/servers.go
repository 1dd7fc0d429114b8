// Package repository looks up and deletes servers and accounts. Every operation
// runs on the worker pool and resolves to a handle bound to live panel state.
package repository

import (
	"context"
	"strconv"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/pkg/async"
)

// DefaultPageSize is used by List when size is not positive.
const DefaultPageSize = 50

// Config - repository config
type Config struct {
	Binder *handle.Binder
}

// Servers is the server repository.
type Servers struct {
	b *handle.Binder
}

// NewServers creates a server repository.
func NewServers(cfg *Config) *Servers {
	return &Servers{b: cfg.Binder}
}

// FindByUUID resolves a server by its uuid.
func (r *Servers) FindByUUID(ctx context.Context, uuid string) *async.Future[*handle.Server] {
	return r.bind(ctx, func(ctx context.Context) (panel.Server, error) {
		return r.first(ctx, panel.ServerFilter{UUID: uuid}, uuid, func(s panel.Server) bool { return s.UUID == uuid })
	})
}

// FindByName resolves a server by its exact name.
func (r *Servers) FindByName(ctx context.Context, name string) *async.Future[*handle.Server] {
	return r.bind(ctx, func(ctx context.Context) (panel.Server, error) {
		return r.byName(ctx, name)
	})
}

// FindByIdentifier resolves a server by its public identifier.
func (r *Servers) FindByIdentifier(ctx context.Context, identifier string) *async.Future[*handle.Server] {
	return r.bind(ctx, func(ctx context.Context) (panel.Server, error) {
		return handle.Call(ctx, r.b, r.b.Timeouts().Read, "GetServerByIdentifier", func(ctx context.Context) (panel.Server, error) {
			return r.b.Panel().GetServerByIdentifier(ctx, identifier)
		}, handle.NotFoundAs(errs.ServerDoesNotExist(identifier)))
	})
}

// FindByInternalID resolves a server by the panel's numeric id.
func (r *Servers) FindByInternalID(ctx context.Context, id int64) *async.Future[*handle.Server] {
	ref := strconv.FormatInt(id, 10)

	return r.bind(ctx, func(ctx context.Context) (panel.Server, error) {
		return handle.Call(ctx, r.b, r.b.Timeouts().Read, "GetServer", func(ctx context.Context) (panel.Server, error) {
			return r.b.Panel().GetServer(ctx, id)
		}, handle.NotFoundAs(errs.ServerDoesNotExist(ref)))
	})
}

// FindByDomain resolves the server whose primary allocation is labelled with domain.
func (r *Servers) FindByDomain(ctx context.Context, domain string) *async.Future[*handle.Server] {
	return r.bind(ctx, func(ctx context.Context) (panel.Server, error) {
		if domain == "" {
			return panel.Server{}, errs.ServerDoesNotExist(domain)
		}

		allocID, err := handle.Call(ctx, r.b, r.b.Timeouts().Scan, "ListAllocations", func(ctx context.Context) (int64, error) {
			nodes, err := r.b.Panel().ListNodes(ctx)
			if err != nil {
				return 0, err
			}
			for _, n := range nodes {
				allocs, err := r.b.Panel().ListAllocations(ctx, n.ID)
				if err != nil {
					return 0, err
				}
				if a, ok := lo.Find(allocs, func(a panel.Allocation) bool { return a.Assigned && a.Notes == domain }); ok {
					return a.ID, nil
				}
			}
			return 0, nil
		})
		if err != nil {
			return panel.Server{}, err
		}
		if allocID == 0 {
			return panel.Server{}, errs.ServerDoesNotExist(domain)
		}

		s, ok, err := handle.Scan(ctx, r.b, "ListServers", r.page(panel.ServerFilter{}), func(s panel.Server) bool {
			return s.AllocationID == allocID
		})
		if err != nil {
			return panel.Server{}, err
		}
		if !ok {
			return panel.Server{}, errs.ServerDoesNotExist(domain)
		}

		return s, nil
	})
}

// Delete removes the server after re-resolving it by name. A server that
// cannot be resolved is reported as missing and nothing is deleted.
func (r *Servers) Delete(ctx context.Context, s *handle.Server) *async.Future[*handle.Server] {
	return async.Submit(ctx, r.b.Pool(), func(ctx context.Context) (*handle.Server, error) {
		cur, err := r.byName(ctx, s.Name)
		if err != nil {
			return nil, missing(errs.EntityServer, s.Name, err)
		}

		err = handle.Exec(ctx, r.b, r.b.Timeouts().Write, "DeleteServer", func(ctx context.Context) error {
			return r.b.Panel().DeleteServer(ctx, cur.ID, true)
		}, handle.NotFoundAs(errs.ServerDoesNotExist(s.Name)))
		if err != nil {
			return nil, err
		}

		r.b.Logger().Info("server deleted", zap.String("identifier", cur.Identifier), zap.String("name", cur.Name))

		return s, nil
	})
}

// List returns one page of servers. Pages start at 1; lower numbers are clamped.
func (r *Servers) List(ctx context.Context, page, size int) *async.Future[[]*handle.Server] {
	p := clampPage(page, size)

	return async.Submit(ctx, r.b.Pool(), func(ctx context.Context) ([]*handle.Server, error) {
		servers, err := handle.Call(ctx, r.b, r.b.Timeouts().Scan, "ListServers", func(ctx context.Context) ([]panel.Server, error) {
			return r.b.Panel().ListServers(ctx, panel.ServerFilter{}, p)
		})
		if err != nil {
			return nil, err
		}

		return r.b.BindAll(ctx, servers)
	})
}

func (r *Servers) bind(ctx context.Context, resolve func(ctx context.Context) (panel.Server, error)) *async.Future[*handle.Server] {
	return async.Submit(ctx, r.b.Pool(), func(ctx context.Context) (*handle.Server, error) {
		s, err := resolve(ctx)
		if err != nil {
			return nil, err
		}
		return r.b.Server(ctx, s)
	})
}

func (r *Servers) byName(ctx context.Context, name string) (panel.Server, error) {
	return r.first(ctx, panel.ServerFilter{Name: name}, name, func(s panel.Server) bool { return s.Name == name })
}

// first walks the filtered listing and returns the first server accepted by match.
func (r *Servers) first(ctx context.Context, filter panel.ServerFilter, ref string, match func(panel.Server) bool) (panel.Server, error) {
	s, ok, err := handle.ScanWithin(ctx, r.b, r.b.Timeouts().Read, "ListServers", r.page(filter), match,
		handle.NotFoundAs(errs.ServerDoesNotExist(ref)),
	)
	if err != nil {
		return panel.Server{}, err
	}
	if !ok {
		return panel.Server{}, errs.ServerDoesNotExist(ref)
	}

	return s, nil
}

func (r *Servers) page(filter panel.ServerFilter) func(ctx context.Context, page panel.Page) ([]panel.Server, error) {
	return func(ctx context.Context, page panel.Page) ([]panel.Server, error) {
		return r.b.Panel().ListServers(ctx, filter, page)
	}
}

func clampPage(page, size int) panel.Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	return panel.Page{Number: max(page, 1), Size: size}
}

// missing reports a failed re-resolution as does-not-exist, keeping the cause.
func missing(entity errs.Entity, ref string, err error) error {
	if errs.KindOf(err) == errs.KindDoesNotExist {
		return err
	}
	return errs.New(errs.KindDoesNotExist, entity, ref, err)
}
