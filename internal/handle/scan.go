package handle

import (
	"context"
	"time"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/pkg/try"
	"github.com/r-heap47/gamehost/internal/pkg/utils"
)

// ScanPageSize is the page size used when walking a full listing.
const ScanPageSize = 50

// Scan walks fetch page by page until match accepts an item or a short page ends the listing.
// The whole walk is one call bounded by the scan timeout.
func Scan[T any](
	ctx context.Context,
	b *Binder,
	op string,
	fetch func(ctx context.Context, page panel.Page) ([]T, error),
	match func(T) bool,
	rules ...try.Rule,
) (T, bool, error) {
	return ScanWithin(ctx, b, b.timeouts.Scan, op, fetch, match, rules...)
}

// ScanWithin is Scan bounded by timeout instead of the scan timeout.
func ScanWithin[T any](
	ctx context.Context,
	b *Binder,
	timeout utils.Provider[time.Duration],
	op string,
	fetch func(ctx context.Context, page panel.Page) ([]T, error),
	match func(T) bool,
	rules ...try.Rule,
) (T, bool, error) {
	type found struct {
		v  T
		ok bool
	}

	res, err := Call(ctx, b, timeout, op, func(ctx context.Context) (found, error) {
		for n := 1; ; n++ {
			items, err := fetch(ctx, panel.Page{Number: n, Size: ScanPageSize})
			if err != nil {
				return found{}, err
			}
			for _, it := range items {
				if match(it) {
					return found{v: it, ok: true}, nil
				}
			}
			if len(items) < ScanPageSize {
				return found{}, nil
			}
		}
	}, rules...)

	return res.v, res.ok, err
}

// Collect walks fetch like Scan and returns every accepted item.
func Collect[T any](
	ctx context.Context,
	b *Binder,
	op string,
	fetch func(ctx context.Context, page panel.Page) ([]T, error),
	keep func(T) bool,
) ([]T, error) {
	return Call(ctx, b, b.timeouts.Scan, op, func(ctx context.Context) ([]T, error) {
		var out []T
		for n := 1; ; n++ {
			items, err := fetch(ctx, panel.Page{Number: n, Size: ScanPageSize})
			if err != nil {
				return nil, err
			}
			for _, it := range items {
				if keep(it) {
					out = append(out, it)
				}
			}
			if len(items) < ScanPageSize {
				return out, nil
			}
		}
	})
}

// LookupUserByEmail resolves an account by exact email. The panel's email filter
// may match loosely, so every page of it is checked.
func LookupUserByEmail(ctx context.Context, b *Binder, email string) (panel.User, error) {
	u, ok, err := ScanWithin(ctx, b, b.timeouts.Read, "ListUsers", func(ctx context.Context, page panel.Page) ([]panel.User, error) {
		return b.panel.ListUsers(ctx, panel.UserFilter{Email: email}, page)
	}, func(u panel.User) bool {
		return u.Email == email
	}, NotFoundAs(errs.UserDoesNotExist(email)))
	if err != nil {
		return panel.User{}, err
	}
	if !ok {
		return panel.User{}, errs.UserDoesNotExist(email)
	}

	return u, nil
}
