package handle

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/pkg/async"
)

// User is a live reference to a panel account. Tag is the correlation tag
// stored in the account's first name.
type User struct {
	ID       int64  `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Tag      string `json:"tag"`

	b *Binder
}

func (u *User) resolve(ctx context.Context) (panel.User, error) {
	return LookupUserByEmail(ctx, u.b, u.Email)
}

// Servers lists every server the user owns or is a subuser of.
func (u *User) Servers(ctx context.Context) *async.Future[[]*Server] {
	return async.Submit(ctx, u.b.pool, func(ctx context.Context) ([]*Server, error) {
		acc, err := u.resolve(ctx)
		if err != nil {
			return nil, err
		}

		all, err := Collect(ctx, u.b, "ListServers", func(ctx context.Context, page panel.Page) ([]panel.Server, error) {
			return u.b.panel.ListServers(ctx, panel.ServerFilter{}, page)
		}, func(panel.Server) bool { return true })
		if err != nil {
			return nil, err
		}

		access := make([]bool, len(all))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(bindConcurrency)
		for i, srv := range all {
			if srv.OwnerID == acc.ID {
				access[i] = true
				continue
			}
			g.Go(func() error {
				ok, err := isSubuser(gctx, u.b, srv.Identifier, acc.Email)
				access[i] = ok
				return err
			})
		}
		if err = g.Wait(); err != nil {
			return nil, err
		}

		var mine []panel.Server
		for i, srv := range all {
			if access[i] {
				mine = append(mine, srv)
			}
		}

		return u.b.BindAll(ctx, mine)
	})
}

// SetUsername renames the account and returns the refreshed handle.
func (u *User) SetUsername(ctx context.Context, username string) *async.Future[*User] {
	return u.edit(ctx, panel.UserEdit{Username: &username}, username)
}

// SetEmail changes the account email and returns the refreshed handle.
func (u *User) SetEmail(ctx context.Context, email string) *async.Future[*User] {
	return u.edit(ctx, panel.UserEdit{Email: &email}, email)
}

// SetPassword replaces the account password.
func (u *User) SetPassword(ctx context.Context, password string) *async.Future[*User] {
	return u.edit(ctx, panel.UserEdit{Password: &password}, u.Username)
}

// edit applies e to the re-resolved account; a conflict is reported against conflictRef.
func (u *User) edit(ctx context.Context, e panel.UserEdit, conflictRef string) *async.Future[*User] {
	return async.Submit(ctx, u.b.pool, func(ctx context.Context) (*User, error) {
		acc, err := u.resolve(ctx)
		if err != nil {
			return nil, err
		}

		updated, err := Call(ctx, u.b, u.b.timeouts.Write, "EditUser", func(ctx context.Context) (panel.User, error) {
			return u.b.panel.EditUser(ctx, acc.ID, e)
		},
			NotFoundAs(errs.UserDoesNotExist(u.Email)),
			ConflictAs(errs.UserAlreadyExists(conflictRef)),
		)
		if err != nil {
			return nil, err
		}

		return u.b.User(updated), nil
	})
}

// CorrelationTag is the prefix of a correlation id stored in an account's first name.
func CorrelationTag(id uuid.UUID) string {
	return id.String()[:8]
}
