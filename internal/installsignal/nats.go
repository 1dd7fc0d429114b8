package installsignal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/r-heap47/gamehost/internal/pkg/utils"
)

// DefaultSubjectPrefix is prepended to the server identifier to form the event subject.
const DefaultSubjectPrefix = "gamehost.install.completed"

// NATSConfig configures the NATS bus.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Logger        *zap.Logger
}

// NATS is a Bus backed by a NATS connection, so install events can come from
// outside the process (for example a panel webhook relay).
type NATS struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATS connects to the NATS server at cfg.URL.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	opts := []nats.Option{
		nats.Name("gamehost"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats.Connect: %w", err)
	}

	return &NATS{nc: nc, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject events for identifier are published on.
func (n *NATS) Subject(identifier string) string {
	return n.prefix + "." + identifier
}

// Publish sends ev on its identifier's subject.
func (n *NATS) Publish(ctx context.Context, ev Event) error {
	if err := utils.CtxDone(ctx); err != nil {
		return err
	}
	if n.nc.IsClosed() {
		return ErrClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err = n.nc.Publish(n.Subject(ev.Identifier), payload); err != nil {
		return fmt.Errorf("nc.Publish: %w", err)
	}

	return nil
}

// Subscribe registers a one-shot handler. The subscription auto-unsubscribes
// on the server after the first message.
func (n *NATS) Subscribe(identifier string, h Handler) (Subscription, error) {
	if n.nc.IsClosed() {
		return nil, ErrClosed
	}

	var once sync.Once

	sub, err := n.nc.Subscribe(n.Subject(identifier), func(m *nats.Msg) {
		once.Do(func() {
			var ev Event
			if err := json.Unmarshal(m.Data, &ev); err != nil {
				n.logger.Warn("malformed install event", zap.String("subject", m.Subject), zap.Error(err))
				ev = Event{Identifier: identifier, CompletedAt: time.Now()}
			}

			h(ev)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("nc.Subscribe: %w", err)
	}

	if err = sub.AutoUnsubscribe(1); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("sub.AutoUnsubscribe: %w", err)
	}

	return &natsSub{sub: sub}, nil
}

// Close drains pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.nc.Drain()
}

type natsSub struct {
	sub *nats.Subscription
}

func (s *natsSub) Unsubscribe() error {
	err := s.sub.Unsubscribe()
	if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}
