package orchestrator

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/installsignal"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/pkg/async"
)

// grant gives email the owner bundle on the server according to the grant mode.
// Failures are logged and counted, never returned.
func (o *Orchestrator) grant(ctx context.Context, identifier, email string) {
	log := o.logger.With(zap.String("identifier", identifier), zap.String("email", email))

	switch o.cfg.GrantMode {
	case GrantNone:
		return
	case GrantInline:
		ctx, span := o.step(ctx, "grant")
		err := o.grantNow(ctx, identifier, email)
		endStep(span, err)
		o.recordGrant(log, err)
	case GrantOnInstall:
		if err := o.grantOnInstall(identifier, email, log); err != nil {
			o.recordGrant(log, err)
		}
	}
}

// grantNow creates the subuser entry unless email already has one.
func (o *Orchestrator) grantNow(ctx context.Context, identifier, email string) error {
	subs, err := handle.Call(ctx, o.b, o.b.Timeouts().Read, "ListSubusers", func(ctx context.Context) ([]panel.Subuser, error) {
		return o.b.Panel().ListSubusers(ctx, identifier)
	}, handle.NotFoundAs(errs.ServerDoesNotExist(identifier)))
	if err != nil {
		return err
	}

	if lo.ContainsBy(subs, func(s panel.Subuser) bool { return s.Email == email }) {
		return nil
	}

	return handle.Exec(ctx, o.b, o.b.Timeouts().Write, "CreateSubuser", func(ctx context.Context) error {
		_, err := o.b.Panel().CreateSubuser(ctx, identifier, email, o.cfg.OwnerPermissions)
		return err
	}, handle.NotFoundAs(errs.ServerDoesNotExist(identifier)))
}

// grantOnInstall defers the grant until the server reports a finished install.
// The subscription fires once; if the install already finished before the
// subscription was in place the grant runs right away.
func (o *Orchestrator) grantOnInstall(identifier, email string, log *zap.Logger) error {
	var (
		once sync.Once
		sub  installsignal.Subscription
		mu   sync.Mutex
	)

	fire := func() {
		once.Do(func() {
			mu.Lock()
			if sub != nil {
				_ = sub.Unsubscribe()
			}
			mu.Unlock()

			// the request context is gone by now
			async.Submit(context.Background(), o.b.Pool(), func(ctx context.Context) (struct{}, error) {
				err := o.grantNow(ctx, identifier, email)
				o.recordGrant(log, err)
				return struct{}{}, err
			})
		})
	}

	mu.Lock()
	s, err := o.cfg.Signals.Subscribe(identifier, func(installsignal.Event) { fire() })
	sub = s
	mu.Unlock()
	if err != nil {
		return errs.Transport("Subscribe", err)
	}

	log.Debug("grant deferred until install completes")

	installed, err := handle.Call(context.Background(), o.b, o.b.Timeouts().Read, "GetServerByIdentifier", func(ctx context.Context) (bool, error) {
		srv, err := o.b.Panel().GetServerByIdentifier(ctx, identifier)
		return srv.Installed, err
	})
	if err != nil {
		// the subscription stays in place; the event will still arrive
		log.Debug("install state check failed", zap.Error(err))
		return nil
	}
	if installed {
		fire()
	}

	return nil
}

func (o *Orchestrator) recordGrant(log *zap.Logger, err error) {
	o.cfg.Metrics.ObserveGrant(string(o.cfg.GrantMode), err)

	if err != nil {
		log.Warn("subuser grant failed", zap.Error(err))
		return
	}
	log.Info("subuser granted")
}
