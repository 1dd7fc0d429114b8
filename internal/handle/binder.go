// Package handle implements the server and user handles returned to callers.
// Handles hold only identifying data; every operation re-resolves the entity
// on the panel so callers never act on stale remote state.
package handle

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/metrics"
	"github.com/r-heap47/gamehost/internal/panel"
	"github.com/r-heap47/gamehost/internal/pkg/async"
	"github.com/r-heap47/gamehost/internal/pkg/try"
	"github.com/r-heap47/gamehost/internal/pkg/utils"
)

// Default per-call timeouts.
const (
	DefaultReadTimeout  = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultScanTimeout  = 10 * time.Second
)

// Timeouts bound individual panel calls.
type Timeouts struct {
	Read  utils.Provider[time.Duration] // lookups
	Write utils.Provider[time.Duration] // create / edit / delete
	Scan  utils.Provider[time.Duration] // full listings
}

// Config - binder config
type Config struct {
	Panel    panel.Client
	Pool     *async.Pool
	Timeouts Timeouts
	// FallbackAddress replaces an unspecified or loopback allocation IP that has no alias.
	FallbackAddress string
	// ControlPermissions is the bundle Allow grants and Disallow revokes.
	ControlPermissions []panel.Permission
	Metrics            *metrics.Metrics
	Logger             *zap.Logger
}

// Binder carries what every handle needs to talk to the panel.
type Binder struct {
	panel    panel.Client
	pool     *async.Pool
	timeouts Timeouts
	fallback string
	control  []panel.Permission
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewBinder creates a Binder, filling unset timeouts and bundles with defaults.
func NewBinder(cfg Config) *Binder {
	if cfg.Timeouts.Read == nil {
		cfg.Timeouts.Read = utils.Const(DefaultReadTimeout)
	}
	if cfg.Timeouts.Write == nil {
		cfg.Timeouts.Write = utils.Const(DefaultWriteTimeout)
	}
	if cfg.Timeouts.Scan == nil {
		cfg.Timeouts.Scan = utils.Const(DefaultScanTimeout)
	}
	if len(cfg.ControlPermissions) == 0 {
		cfg.ControlPermissions = panel.ControlPermissions
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Binder{
		panel:    cfg.Panel,
		pool:     cfg.Pool,
		timeouts: cfg.Timeouts,
		fallback: cfg.FallbackAddress,
		control:  cfg.ControlPermissions,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Panel returns the panel client.
func (b *Binder) Panel() panel.Client { return b.panel }

// Pool returns the worker pool.
func (b *Binder) Pool() *async.Pool { return b.pool }

// Timeouts returns the call timeouts.
func (b *Binder) Timeouts() Timeouts { return b.timeouts }

// Logger returns the binder's logger.
func (b *Binder) Logger() *zap.Logger { return b.logger }

// Call runs fn under timeout, maps its failure through rules and classifies
// whatever is left as a transport failure of op.
func Call[T any](
	ctx context.Context,
	b *Binder,
	timeout utils.Provider[time.Duration],
	op string,
	fn func(ctx context.Context) (T, error),
	rules ...try.Rule,
) (T, error) {
	cctx, cancel := utils.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res := try.Of(func() (T, error) { return fn(cctx) })
	b.metrics.ObservePanelCall(op, time.Since(start), res.Err())

	v, err := res.Catch(rules...).Unwrap()
	if err != nil {
		var zero T
		return zero, errs.Wrap(op, err)
	}

	return v, nil
}

// Exec is Call for operations without a result.
func Exec(
	ctx context.Context,
	b *Binder,
	timeout utils.Provider[time.Duration],
	op string,
	fn func(ctx context.Context) error,
	rules ...try.Rule,
) error {
	_, err := Call(ctx, b, timeout, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, rules...)
	return err
}

// NotFoundAs maps a panel not-found failure to err.
func NotFoundAs(err error) try.Rule {
	return try.When(panel.IsNotFound, try.Const(err))
}

// ConflictAs maps a panel conflict failure to err.
func ConflictAs(err error) try.Rule {
	return try.When(panel.IsConflict, try.Const(err))
}

// Address renders an allocation as host:port. The alias wins over the IP; an
// unspecified or loopback IP is replaced by fallback when one is set.
func Address(a panel.Allocation, fallback string) string {
	host := a.Alias
	if host == "" {
		host = a.IP
		if ip, err := netip.ParseAddr(host); err == nil && (ip.IsUnspecified() || ip.IsLoopback()) && fallback != "" {
			host = fallback
		}
	}

	return net.JoinHostPort(host, strconv.Itoa(a.Port))
}

// NewServer binds a server whose allocation and node are already known.
func (b *Binder) NewServer(s panel.Server, alloc panel.Allocation, node panel.Node) *Server {
	return &Server{
		ID:           s.ID,
		Identifier:   s.Identifier,
		UUID:         s.UUID,
		Name:         s.Name,
		OwnerID:      s.OwnerID,
		NodeID:       s.NodeID,
		Node:         node.Name,
		AllocationID: alloc.ID,
		Address:      Address(alloc, b.fallback),
		b:            b,
	}
}

// Server binds s after resolving its primary allocation and node.
func (b *Binder) Server(ctx context.Context, s panel.Server) (*Server, error) {
	alloc, err := Call(ctx, b, b.timeouts.Read, "GetAllocation", func(ctx context.Context) (panel.Allocation, error) {
		return b.panel.GetAllocation(ctx, s.AllocationID)
	})
	if err != nil {
		return nil, err
	}

	node, err := Call(ctx, b, b.timeouts.Read, "GetNode", func(ctx context.Context) (panel.Node, error) {
		return b.panel.GetNode(ctx, s.NodeID)
	})
	if err != nil {
		return nil, err
	}

	return b.NewServer(s, alloc, node), nil
}

// User binds an account.
func (b *Binder) User(u panel.User) *User {
	return &User{
		ID:       u.ID,
		UUID:     u.UUID,
		Username: u.Username,
		Email:    u.Email,
		Tag:      u.FirstName,
		b:        b,
	}
}
