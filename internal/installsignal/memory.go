package installsignal

import (
	"context"
	"sync"

	"github.com/r-heap47/gamehost/internal/pkg/utils"
)

// Memory is an in-process Bus.
type Memory struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]Handler
	nextID uint64
	closed bool
}

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[uint64]Handler)}
}

// Publish detaches every subscriber of ev.Identifier and runs them on their own goroutines.
func (m *Memory) Publish(ctx context.Context, ev Event) error {
	if err := utils.CtxDone(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	handlers := m.subs[ev.Identifier]
	delete(m.subs, ev.Identifier)
	m.mu.Unlock()

	for _, h := range handlers {
		go h(ev)
	}

	return nil
}

// Subscribe registers a one-shot handler for identifier.
func (m *Memory) Subscribe(identifier string, h Handler) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	m.nextID++
	id := m.nextID

	if m.subs[identifier] == nil {
		m.subs[identifier] = make(map[uint64]Handler)
	}
	m.subs[identifier][id] = h

	return &memorySub{bus: m, identifier: identifier, id: id}, nil
}

// Pending returns the number of subscriptions still waiting for identifier.
func (m *Memory) Pending(identifier string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.subs[identifier])
}

// Close drops all subscriptions.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.subs = make(map[string]map[uint64]Handler)

	return nil
}

type memorySub struct {
	bus        *Memory
	identifier string
	id         uint64
}

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	handlers := s.bus.subs[s.identifier]
	delete(handlers, s.id)
	if len(handlers) == 0 {
		delete(s.bus.subs, s.identifier)
	}

	return nil
}
