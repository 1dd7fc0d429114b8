package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/r-heap47/gamehost/internal/panel"
)

func newUUID() string { return uuid.NewString() }

// ListUsers filters like the panel's search: case-insensitive substring matches.
func (p *Panel) ListUsers(ctx context.Context, filter panel.UserFilter, page panel.Page) ([]panel.User, error) {
	if err := p.enter(ctx, "ListUsers"); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var matched []panel.User
	for _, id := range sortedIDs(p.st.Users) {
		u := p.st.Users[id]
		if !contains(u.Username, filter.Username) || !contains(u.Email, filter.Email) {
			continue
		}
		matched = append(matched, *u)
	}

	return paginate(matched, page), nil
}

func (p *Panel) GetUser(ctx context.Context, id int64) (panel.User, error) {
	if err := p.enter(ctx, "GetUser"); err != nil {
		return panel.User{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.st.Users[id]
	if !ok {
		return panel.User{}, notFound("GetUser", strconv.FormatInt(id, 10))
	}

	return *u, nil
}

func (p *Panel) CreateUser(ctx context.Context, req panel.CreateUserRequest) (panel.User, error) {
	if err := p.enter(ctx, "CreateUser"); err != nil {
		return panel.User{}, err
	}

	if req.Username == "" || req.Email == "" || req.FirstName == "" || req.LastName == "" {
		return panel.User{}, panel.NewError("CreateUser", req.Username, panel.ErrValidation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkUnique(0, req.Username, req.Email); err != nil {
		return panel.User{}, panel.NewError("CreateUser", req.Username, err)
	}

	u := &panel.User{
		ID:        p.id(0),
		UUID:      newUUID(),
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	p.st.Users[u.ID] = u
	if req.Password != "" {
		p.st.Passwords[u.ID] = req.Password
	}
	p.persist(ctx)

	return *u, nil
}

func (p *Panel) EditUser(ctx context.Context, id int64, edit panel.UserEdit) (panel.User, error) {
	if err := p.enter(ctx, "EditUser"); err != nil {
		return panel.User{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.st.Users[id]
	if !ok {
		return panel.User{}, notFound("EditUser", strconv.FormatInt(id, 10))
	}

	username, email := u.Username, u.Email
	if edit.Username != nil {
		username = *edit.Username
	}
	if edit.Email != nil {
		email = *edit.Email
	}
	if username == "" || email == "" {
		return panel.User{}, panel.NewError("EditUser", u.Username, panel.ErrValidation)
	}
	if err := p.checkUnique(id, username, email); err != nil {
		return panel.User{}, panel.NewError("EditUser", u.Username, err)
	}

	u.Username, u.Email = username, email
	if edit.Password != nil {
		p.st.Passwords[id] = *edit.Password
	}
	p.persist(ctx)

	return *u, nil
}

// DeleteUser refuses to delete accounts that still own servers.
func (p *Panel) DeleteUser(ctx context.Context, id int64) error {
	if err := p.enter(ctx, "DeleteUser"); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.st.Users[id]
	if !ok {
		return notFound("DeleteUser", strconv.FormatInt(id, 10))
	}

	for _, s := range p.st.Servers {
		if s.OwnerID == id {
			return panel.NewError("DeleteUser", u.Username, fmt.Errorf("%w: user owns server %s", panel.ErrConflict, s.Identifier))
		}
	}

	for identifier, subs := range p.st.Subusers {
		p.st.Subusers[identifier] = removeSubuser(subs, u.UUID)
	}
	delete(p.st.Users, id)
	delete(p.st.Passwords, id)
	p.persist(ctx)

	return nil
}

// Password returns the stored password of a user.
func (p *Panel) Password(id int64) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.st.Passwords[id]
}

// checkUnique fails when another user already has username or email. Caller must hold p.mu.
func (p *Panel) checkUnique(self int64, username, email string) error {
	for id, u := range p.st.Users {
		if id == self {
			continue
		}
		if strings.EqualFold(u.Username, username) {
			return fmt.Errorf("%w: username %q is taken", panel.ErrConflict, username)
		}
		if strings.EqualFold(u.Email, email) {
			return fmt.Errorf("%w: email %q is taken", panel.ErrConflict, email)
		}
	}
	return nil
}

// userByEmail finds a user by exact, case-insensitive email. Caller must hold p.mu.
func (p *Panel) userByEmail(email string) *panel.User {
	for _, u := range p.st.Users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func contains(s, sub string) bool {
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
