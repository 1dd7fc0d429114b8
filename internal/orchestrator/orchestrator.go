// Package orchestrator sequences the create-server and create-user workflows.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/installsignal"
	"github.com/r-heap47/gamehost/internal/metrics"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/placement"
)

const tracerName = "github.com/r-heap47/gamehost/internal/orchestrator"

// AllocationMode decides who picks the allocation of a new server.
type AllocationMode string

const (
	// AllocationPreselect reserves a free allocation on the chosen node before creation.
	AllocationPreselect AllocationMode = "preselect"
	// AllocationAuto lets the panel assign one allocation in the chosen node's location.
	AllocationAuto AllocationMode = "auto"
)

// OwnerMode decides which account owns a new server.
type OwnerMode string

const (
	// OwnerRequester makes the requesting user the owner.
	OwnerRequester OwnerMode = "requester"
	// OwnerServiceAccount makes the configured service account the owner; the requester becomes a subuser.
	OwnerServiceAccount OwnerMode = "service_account"
)

// GrantMode decides when the requester is granted access to a server owned by someone else.
type GrantMode string

const (
	GrantNone      GrantMode = "none"
	GrantInline    GrantMode = "inline"
	GrantOnInstall GrantMode = "on_install"
)

// DefaultJarFile is the SERVER_JARFILE hint of new servers.
const DefaultJarFile = "server.jar"

// Config - orchestrator config
type Config struct {
	Binder  *handle.Binder
	Policy  placement.Policy
	Signals installsignal.Bus // required by GrantOnInstall
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Logger  *zap.Logger

	DefaultEmailDomain string
	AllocationMode     AllocationMode
	OwnerMode          OwnerMode
	ServiceAccountID   int64
	GrantMode          GrantMode
	JarFile            string
	StartOnCompletion  bool
	Features           panel.FeatureLimits
	// Environment is merged into every new server's environment.
	Environment map[string]string
	// OwnerPermissions is the bundle granted to the requester.
	OwnerPermissions []panel.Permission
}

// Orchestrator runs the provisioning workflows.
type Orchestrator struct {
	cfg    Config
	b      *handle.Binder
	tracer trace.Tracer
	logger *zap.Logger
}

// New validates cfg and creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Binder == nil {
		return nil, errs.InvalidConfiguration("binder", errors.New("binder is required"))
	}
	if cfg.Binder.Pool() == nil {
		return nil, errs.InvalidConfiguration("pool", errors.New("worker pool is required"))
	}

	if cfg.AllocationMode == "" {
		cfg.AllocationMode = AllocationPreselect
	}
	if cfg.OwnerMode == "" {
		cfg.OwnerMode = OwnerRequester
	}
	if cfg.GrantMode == "" {
		cfg.GrantMode = GrantInline
	}
	if cfg.JarFile == "" {
		cfg.JarFile = DefaultJarFile
	}
	if cfg.DefaultEmailDomain == "" {
		cfg.DefaultEmailDomain = "example.net"
	}
	if len(cfg.OwnerPermissions) == 0 {
		cfg.OwnerPermissions = panel.OwnerPermissions
	}
	if cfg.Policy.LowHeadroomMB <= 0 {
		cfg.Policy = placement.New(0)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	switch cfg.AllocationMode {
	case AllocationPreselect, AllocationAuto:
	default:
		return nil, errs.InvalidConfiguration("allocation_mode", fmt.Errorf("unknown mode %q", cfg.AllocationMode))
	}

	switch cfg.OwnerMode {
	case OwnerRequester:
	case OwnerServiceAccount:
		if cfg.ServiceAccountID <= 0 {
			return nil, errs.InvalidConfiguration("service_account_id", errors.New("required by owner mode service_account"))
		}
	default:
		return nil, errs.InvalidConfiguration("owner_mode", fmt.Errorf("unknown mode %q", cfg.OwnerMode))
	}

	switch cfg.GrantMode {
	case GrantNone, GrantInline:
	case GrantOnInstall:
		if cfg.Signals == nil {
			return nil, errs.InvalidConfiguration("signals", errors.New("required by grant mode on_install"))
		}
	default:
		return nil, errs.InvalidConfiguration("grant_mode", fmt.Errorf("unknown mode %q", cfg.GrantMode))
	}

	return &Orchestrator{
		cfg:    cfg,
		b:      cfg.Binder,
		tracer: cfg.Tracer,
		logger: cfg.Logger.Named("orchestrator"),
	}, nil
}

// Policy returns the node selection policy in use.
func (o *Orchestrator) Policy() placement.Policy { return o.cfg.Policy }

// finish closes a workflow span and records its outcome.
func (o *Orchestrator) finish(span trace.Span, workflow string, start time.Time, err error) {
	o.cfg.Metrics.ObserveWorkflow(workflow, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, metrics.WorkflowResult(err))
	}
	span.End()
}

// step opens a child span for one pipeline stage.
func (o *Orchestrator) step(ctx context.Context, name string) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name)
}

func endStep(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
