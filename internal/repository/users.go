package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/pkg/async"
)

// Users is the account repository.
type Users struct {
	b *handle.Binder
}

// NewUsers creates an account repository.
func NewUsers(cfg *Config) *Users {
	return &Users{b: cfg.Binder}
}

// FindByUsername resolves an account by exact username.
func (r *Users) FindByUsername(ctx context.Context, username string) *async.Future[*handle.User] {
	return r.bind(ctx, func(ctx context.Context) (panel.User, error) {
		return r.byUsername(ctx, username)
	})
}

// FindByEmail resolves an account by exact email.
func (r *Users) FindByEmail(ctx context.Context, email string) *async.Future[*handle.User] {
	return r.bind(ctx, func(ctx context.Context) (panel.User, error) {
		return handle.LookupUserByEmail(ctx, r.b, email)
	})
}

// FindByCorrelationID scans every account for the correlation tag of id.
func (r *Users) FindByCorrelationID(ctx context.Context, id uuid.UUID) *async.Future[*handle.User] {
	tag := handle.CorrelationTag(id)

	return r.bind(ctx, func(ctx context.Context) (panel.User, error) {
		u, ok, err := handle.Scan(ctx, r.b, "ListUsers", func(ctx context.Context, page panel.Page) ([]panel.User, error) {
			return r.b.Panel().ListUsers(ctx, panel.UserFilter{}, page)
		}, func(u panel.User) bool {
			return strings.HasPrefix(u.FirstName, tag)
		})
		if err != nil {
			return panel.User{}, err
		}
		if !ok {
			return panel.User{}, errs.UserDoesNotExist(id.String())
		}

		return u, nil
	})
}

// FindByInternalID resolves an account by the panel's numeric id.
func (r *Users) FindByInternalID(ctx context.Context, id int64) *async.Future[*handle.User] {
	ref := strconv.FormatInt(id, 10)

	return r.bind(ctx, func(ctx context.Context) (panel.User, error) {
		return handle.Call(ctx, r.b, r.b.Timeouts().Read, "GetUser", func(ctx context.Context) (panel.User, error) {
			return r.b.Panel().GetUser(ctx, id)
		}, handle.NotFoundAs(errs.UserDoesNotExist(ref)))
	})
}

// Delete removes the account after re-resolving it by username. An account that
// cannot be resolved is reported as missing and nothing is deleted.
func (r *Users) Delete(ctx context.Context, u *handle.User) *async.Future[*handle.User] {
	return async.Submit(ctx, r.b.Pool(), func(ctx context.Context) (*handle.User, error) {
		cur, err := r.byUsername(ctx, u.Username)
		if err != nil {
			return nil, missing(errs.EntityUser, u.Username, err)
		}

		err = handle.Exec(ctx, r.b, r.b.Timeouts().Write, "DeleteUser", func(ctx context.Context) error {
			return r.b.Panel().DeleteUser(ctx, cur.ID)
		}, handle.NotFoundAs(errs.UserDoesNotExist(u.Username)))
		if err != nil {
			return nil, err
		}

		r.b.Logger().Info("user deleted", zap.String("username", cur.Username), zap.Int64("id", cur.ID))

		return u, nil
	})
}

// List returns one page of accounts. Pages start at 1; lower numbers are clamped.
func (r *Users) List(ctx context.Context, page, size int) *async.Future[[]*handle.User] {
	p := clampPage(page, size)

	return async.Submit(ctx, r.b.Pool(), func(ctx context.Context) ([]*handle.User, error) {
		users, err := handle.Call(ctx, r.b, r.b.Timeouts().Scan, "ListUsers", func(ctx context.Context) ([]panel.User, error) {
			return r.b.Panel().ListUsers(ctx, panel.UserFilter{}, p)
		})
		if err != nil {
			return nil, err
		}

		return lo.Map(users, func(u panel.User, _ int) *handle.User { return r.b.User(u) }), nil
	})
}

func (r *Users) bind(ctx context.Context, resolve func(ctx context.Context) (panel.User, error)) *async.Future[*handle.User] {
	return async.Submit(ctx, r.b.Pool(), func(ctx context.Context) (*handle.User, error) {
		u, err := resolve(ctx)
		if err != nil {
			return nil, err
		}
		return r.b.User(u), nil
	})
}

func (r *Users) byUsername(ctx context.Context, username string) (panel.User, error) {
	u, ok, err := handle.ScanWithin(ctx, r.b, r.b.Timeouts().Read, "ListUsers", func(ctx context.Context, page panel.Page) ([]panel.User, error) {
		return r.b.Panel().ListUsers(ctx, panel.UserFilter{Username: username}, page)
	}, func(u panel.User) bool {
		return strings.EqualFold(u.Username, username)
	}, handle.NotFoundAs(errs.UserDoesNotExist(username)))
	if err != nil {
		return panel.User{}, err
	}
	if !ok {
		return panel.User{}, errs.UserDoesNotExist(username)
	}

	return u, nil
}
