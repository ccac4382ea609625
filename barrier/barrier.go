// Package barrier implements the hand-off between a producer signalling completed work and a
// consumer waiting for it.
package barrier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout is returned when nothing arrives within the timeout.
	ErrTimeout = errors.New("barrier wait timed out")

	// ErrClosed is returned once the barrier is closed.
	ErrClosed = errors.New("barrier closed")
)

// Barrier passes values from the signalling side to the waiting side through a bounded channel.
// Available counts values signalled and not yet consumed.
type Barrier[T any] struct {
	ch        chan T
	closed    chan struct{}
	closeOnce sync.Once
	available atomic.Int64
}

// New creates a barrier holding up to capacity values not yet consumed.
func New[T any](capacity int) *Barrier[T] {
	return &Barrier[T]{
		ch:     make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

// Signal hands the value over to the waiter. It blocks while the barrier is full.
func (b *Barrier[T]) Signal(ctx context.Context, v T) error {
	b.available.Add(1)
	select {
	case <-ctx.Done():
		b.available.Add(-1)
		return errors.WithStack(ctx.Err())
	case <-b.closed:
		b.available.Add(-1)
		return errors.WithStack(ErrClosed)
	case b.ch <- v:
		return nil
	}
}

// Wait blocks until a value is available. Zero timeout waits without limit.
func (b *Barrier[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	return b.WaitUntil(ctx, deadline)
}

// WaitUntil blocks until a value is available or the deadline passes. Zero deadline waits
// without limit. A value already available is returned even if the deadline has passed.
func (b *Barrier[T]) WaitUntil(ctx context.Context, deadline time.Time) (T, error) {
	select {
	case v := <-b.ch:
		b.available.Add(-1)
		return v, nil
	default:
	}

	var timeoutCh <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var zero T
	select {
	case v := <-b.ch:
		b.available.Add(-1)
		return v, nil
	case <-ctx.Done():
		return zero, errors.WithStack(ctx.Err())
	case <-b.closed:
		return zero, errors.WithStack(ErrClosed)
	case <-timeoutCh:
		return zero, errors.Wrapf(ErrTimeout, "nothing arrived by %s", deadline.Format(time.RFC3339Nano))
	}
}

// Available returns the number of values signalled and not consumed yet.
func (b *Barrier[T]) Available() int64 {
	return b.available.Load()
}

// Close wakes up all the waiters and rejects further signals.
func (b *Barrier[T]) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
	})
}
