package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/pkg/async"
)

// AccountLastName is the last name of every account created here.
const AccountLastName = "'s Account"

// CreateUserRequest describes an account to create.
type CreateUserRequest struct {
	// CorrelationID links the account to the caller's identity. Optional.
	CorrelationID uuid.UUID
	Username      string
	Password      string
	// Email defaults to username@<default email domain>.
	Email string
}

// CreateUser runs the create-user pipeline on the pool. The password is passed
// to the panel and never kept.
func (o *Orchestrator) CreateUser(ctx context.Context, req CreateUserRequest) *async.Future[*handle.User] {
	return async.Submit(ctx, o.b.Pool(), func(ctx context.Context) (u *handle.User, err error) {
		start := time.Now()
		ctx, span := o.tracer.Start(ctx, "orchestrator.CreateUser", trace.WithAttributes(
			attribute.String("user.username", req.Username),
		))
		defer func() { o.finish(span, "create_user", start, err) }()

		if err = o.checkUserAbsent(ctx, req.Username); err != nil {
			return nil, err
		}

		create := panel.CreateUserRequest{
			Username:  req.Username,
			Email:     lo.CoalesceOrEmpty(req.Email, req.Username+"@"+o.cfg.DefaultEmailDomain),
			FirstName: req.Username,
			LastName:  AccountLastName,
			Password:  req.Password,
		}
		if req.CorrelationID != uuid.Nil {
			create.FirstName = handle.CorrelationTag(req.CorrelationID)
		}

		created, err := o.createUser(ctx, create)
		if err != nil {
			return nil, err
		}

		o.logger.Info("user created", zap.String("username", created.Username), zap.Int64("id", created.ID))

		return o.b.User(created), nil
	})
}

// checkUserAbsent refuses usernames that resolve. A failed lookup counts as taken.
func (o *Orchestrator) checkUserAbsent(ctx context.Context, username string) (err error) {
	ctx, span := o.step(ctx, "existence_check")
	defer func() { endStep(span, err) }()

	_, taken, err := handle.ScanWithin(ctx, o.b, o.b.Timeouts().Read, "ListUsers", func(ctx context.Context, page panel.Page) ([]panel.User, error) {
		return o.b.Panel().ListUsers(ctx, panel.UserFilter{Username: username}, page)
	}, func(u panel.User) bool {
		return strings.EqualFold(u.Username, username)
	})
	if err != nil {
		o.logger.Warn("existence check failed, refusing create", zap.String("username", username), zap.Error(err))
		return errs.New(errs.KindAlreadyExists, errs.EntityUser, username, err)
	}

	if taken {
		return errs.UserAlreadyExists(username)
	}

	return nil
}

func (o *Orchestrator) createUser(ctx context.Context, req panel.CreateUserRequest) (_ panel.User, err error) {
	ctx, span := o.step(ctx, "create")
	defer func() { endStep(span, err) }()

	return handle.Call(ctx, o.b, o.b.Timeouts().Write, "CreateUser", func(ctx context.Context) (panel.User, error) {
		return o.b.Panel().CreateUser(ctx, req)
	}, handle.ConflictAs(errs.UserAlreadyExists(req.Username)))
}
