// Package async runs panel workflows on a fixed-size worker pool and hands
// results back through futures.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/pkg/try"
)

// ErrClosed is returned by futures submitted after Close.
var ErrClosed = errors.New("pool is closed")

// Pool bounds the number of concurrently running tasks. Its size is fixed at construction.
type Pool struct {
	workers int
	sem     *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	running atomic.Int64
	queued  atomic.Int64
}

// NewPool creates a pool of the given size. workers must be positive.
func NewPool(workers int) (*Pool, error) {
	if workers < 1 {
		return nil, errs.InvalidConfiguration("pool.workers", fmt.Errorf("must be positive, got %d", workers))
	}

	return &Pool{
		workers: workers,
		sem:     semaphore.NewWeighted(int64(workers)),
	}, nil
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Running returns the number of tasks currently holding a worker.
func (p *Pool) Running() int64 { return p.running.Load() }

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int64 { return p.queued.Load() }

// Close stops accepting tasks and waits for submitted ones to finish or ctx to expire.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit schedules fn on the pool and returns immediately. fn never runs on the
// caller's goroutine. A task whose ctx ends before it gets a worker fails with ctx.Err().
func Submit[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		f.complete(*new(T), ErrClosed)
		return f
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	p.queued.Add(1)

	go func() {
		defer p.wg.Done()

		err := p.sem.Acquire(ctx, 1)
		p.queued.Add(-1)
		if err != nil {
			f.complete(*new(T), err)
			return
		}
		defer p.sem.Release(1)

		// Acquire may succeed on an already cancelled ctx
		if err = ctx.Err(); err != nil {
			f.complete(*new(T), err)
			return
		}

		p.running.Add(1)
		defer p.running.Add(-1)

		f.complete(try.Of(func() (T, error) { return fn(ctx) }).Unwrap())
	}()

	return f
}
