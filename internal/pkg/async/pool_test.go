package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-heap47/gamehost/internal/errs"
	"github.com/r-heap47/gamehost/internal/pkg/try"
)

// TestNewPool_InvalidSize verifies that a non-positive worker count is rejected.
func TestNewPool_InvalidSize(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -1} {
		_, err := NewPool(n)
		assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
	}
}

// TestSubmit_Result verifies that values and errors reach the future.
func TestSubmit_Result(t *testing.T) {
	t.Parallel()

	p, err := NewPool(2)
	require.NoError(t, err)

	ctx := context.Background()
	boom := errors.New("boom")

	ok := Submit(ctx, p, func(context.Context) (int, error) { return 42, nil })
	bad := Submit(ctx, p, func(context.Context) (int, error) { return 0, boom })

	v, err := ok.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = bad.Await(ctx)
	assert.ErrorIs(t, err, boom)
}

// TestSubmit_NotOnCallerGoroutine verifies that Submit returns before a blocking task runs.
func TestSubmit_NotOnCallerGoroutine(t *testing.T) {
	t.Parallel()

	p, err := NewPool(1)
	require.NoError(t, err)

	release := make(chan struct{})
	f := Submit(context.Background(), p, func(context.Context) (struct{}, error) {
		<-release
		return struct{}{}, nil
	})

	select {
	case <-f.Done():
		t.Fatal("task completed before release")
	default:
	}

	close(release)
	_, err = f.Await(context.Background())
	assert.NoError(t, err)
}

// TestSubmit_Bounded verifies that no more than Workers tasks run at once.
func TestSubmit_Bounded(t *testing.T) {
	t.Parallel()

	const workers = 3

	p, err := NewPool(workers)
	require.NoError(t, err)

	var (
		current atomic.Int64
		peak    atomic.Int64
	)

	futures := make([]*Future[struct{}], 0, 20)
	for range 20 {
		futures = append(futures, Submit(context.Background(), p, func(context.Context) (struct{}, error) {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return struct{}{}, nil
		}))
	}

	for _, f := range futures {
		_, err := f.Await(context.Background())
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, peak.Load(), int64(workers))
	assert.Equal(t, int64(0), p.Running())
}

// TestSubmit_PanicBecomesError verifies that a panicking task fails its future instead of the process.
func TestSubmit_PanicBecomesError(t *testing.T) {
	t.Parallel()

	p, err := NewPool(1)
	require.NoError(t, err)

	_, err = Submit(context.Background(), p, func(context.Context) (int, error) { panic("bad task") }).
		Await(context.Background())
	assert.ErrorIs(t, err, try.ErrPanic)
}

// TestSubmit_CancelledWhileQueued verifies that a queued task gives up when its ctx ends.
func TestSubmit_CancelledWhileQueued(t *testing.T) {
	t.Parallel()

	p, err := NewPool(1)
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)

	Submit(context.Background(), p, func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	require.Eventually(t, func() bool { return p.Running() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	queued := Submit(ctx, p, func(context.Context) (int, error) {
		ran.Store(true)
		return 1, nil
	})
	cancel()

	_, err = queued.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

// TestClose verifies that Close waits for in-flight work and rejects new submissions.
func TestClose(t *testing.T) {
	t.Parallel()

	p, err := NewPool(2)
	require.NoError(t, err)

	var done atomic.Bool
	Submit(context.Background(), p, func(context.Context) (int, error) {
		time.Sleep(10 * time.Millisecond)
		done.Store(true)
		return 0, nil
	})

	require.NoError(t, p.Close(context.Background()))
	assert.True(t, done.Load())

	_, err = Submit(context.Background(), p, func(context.Context) (int, error) { return 0, nil }).
		Await(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

// TestAwait_CtxExpires verifies that Await stops waiting when its own ctx ends.
func TestAwait_CtxExpires(t *testing.T) {
	t.Parallel()

	p, err := NewPool(1)
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)

	f := Submit(context.Background(), p, func(context.Context) (int, error) {
		<-release
		return 0, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
