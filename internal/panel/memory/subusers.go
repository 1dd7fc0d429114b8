package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/r-heap47/gamehost/internal/panel"
)

func (p *Panel) ListSubusers(ctx context.Context, identifier string) ([]panel.Subuser, error) {
	if err := p.enter(ctx, "ListSubusers"); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.serverByIdentifier(identifier) == nil {
		return nil, notFound("ListSubusers", identifier)
	}

	return lo.Map(p.st.Subusers[identifier], func(s *panel.Subuser, _ int) panel.Subuser {
		return cloneSubuser(s)
	}), nil
}

// CreateSubuser grants an existing account access to a server. The owner cannot be a subuser.
func (p *Panel) CreateSubuser(ctx context.Context, identifier, email string, perms []panel.Permission) (panel.Subuser, error) {
	if err := p.enter(ctx, "CreateSubuser"); err != nil {
		return panel.Subuser{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.serverByIdentifier(identifier)
	if s == nil {
		return panel.Subuser{}, notFound("CreateSubuser", identifier)
	}

	u := p.userByEmail(email)
	if u == nil {
		return panel.Subuser{}, panel.NewError("CreateSubuser", email, fmt.Errorf("%w: no account with this email", panel.ErrValidation))
	}
	if u.ID == s.OwnerID {
		return panel.Subuser{}, panel.NewError("CreateSubuser", email, fmt.Errorf("%w: owner cannot be a subuser", panel.ErrValidation))
	}

	if lo.ContainsBy(p.st.Subusers[identifier], func(sub *panel.Subuser) bool { return sub.UUID == u.UUID }) {
		return panel.Subuser{}, panel.NewError("CreateSubuser", email, fmt.Errorf("%w: already a subuser", panel.ErrConflict))
	}

	sub := &panel.Subuser{UUID: u.UUID, Email: u.Email, Permissions: lo.Uniq(perms)}
	p.st.Subusers[identifier] = append(p.st.Subusers[identifier], sub)
	p.persist(ctx)

	return cloneSubuser(sub), nil
}

// UpdateSubuser replaces the permission set of a subuser.
func (p *Panel) UpdateSubuser(ctx context.Context, identifier, uuid string, perms []panel.Permission) (panel.Subuser, error) {
	if err := p.enter(ctx, "UpdateSubuser"); err != nil {
		return panel.Subuser{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.serverByIdentifier(identifier) == nil {
		return panel.Subuser{}, notFound("UpdateSubuser", identifier)
	}

	sub, ok := lo.Find(p.st.Subusers[identifier], func(s *panel.Subuser) bool { return s.UUID == uuid })
	if !ok {
		return panel.Subuser{}, notFound("UpdateSubuser", uuid)
	}

	sub.Permissions = lo.Uniq(perms)
	p.persist(ctx)

	return cloneSubuser(sub), nil
}

func removeSubuser(subs []*panel.Subuser, uuid string) []*panel.Subuser {
	return lo.Reject(subs, func(s *panel.Subuser, _ int) bool { return s.UUID == uuid })
}

func cloneSubuser(s *panel.Subuser) panel.Subuser {
	out := *s
	out.Permissions = slices.Clone(s.Permissions)
	return out
}
