// Package installsignal delivers "server finished installing" notifications to
// one-shot subscribers keyed by server identifier.
package installsignal

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("signal bus is closed")

// Event reports that the server with Identifier completed its install.
type Event struct {
	Identifier  string    `json:"identifier"`
	UUID        string    `json:"uuid"`
	CompletedAt time.Time `json:"completed_at"`
}

// Handler receives an event. It must not block for long.
type Handler func(Event)

// Subscription cancels interest in an identifier. Unsubscribing twice is a no-op.
type Subscription interface {
	Unsubscribe() error
}

// Bus publishes install events. Every subscription fires at most once and
// removes itself after firing.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(identifier string, h Handler) (Subscription, error)
	Close() error
}
