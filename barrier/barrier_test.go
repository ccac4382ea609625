package barrier_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/qa"
	"github.com/outofforest/tandem/barrier"
)

func TestSignalThenWait(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := barrier.New[int](1)
	requireT.NoError(b.Signal(ctx, 5))
	requireT.EqualValues(1, b.Available())

	v, err := b.Wait(ctx, time.Second)
	requireT.NoError(err)
	requireT.Equal(5, v)
	requireT.EqualValues(0, b.Available())
}

func TestWaitTimeout(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := barrier.New[int](1)
	_, err := b.Wait(ctx, 10*time.Millisecond)
	requireT.True(errors.Is(err, barrier.ErrTimeout))
	requireT.EqualValues(0, b.Available())
}

func TestWaitUntilPassedDeadline(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := barrier.New[int](1)
	past := time.Now().Add(-time.Second)

	requireT.NoError(b.Signal(ctx, 7))
	v, err := b.WaitUntil(ctx, past)
	requireT.NoError(err)
	requireT.Equal(7, v)

	_, err = b.WaitUntil(ctx, past)
	requireT.True(errors.Is(err, barrier.ErrTimeout))
	requireT.EqualValues(0, b.Available())
}

func TestCloseWakesWaiter(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := barrier.New[int](1)
	errCh := make(chan error, 1)
	go func() {
		_, err := b.Wait(ctx, 0)
		errCh <- err
	}()

	b.Close()
	b.Close()
	requireT.True(errors.Is(<-errCh, barrier.ErrClosed))

	requireT.True(errors.Is(b.Signal(ctx, 1), barrier.ErrClosed))
	requireT.EqualValues(0, b.Available())
}

func TestValueSignalledBeforeCloseIsDelivered(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := barrier.New[int](1)
	requireT.NoError(b.Signal(ctx, 7))
	b.Close()

	v, err := b.Wait(ctx, 0)
	requireT.NoError(err)
	requireT.Equal(7, v)
}

func TestSignalRespectsContext(t *testing.T) {
	requireT := require.New(t)

	b := barrier.New[int](1)
	requireT.NoError(b.Signal(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	requireT.Error(b.Signal(ctx, 2))
	requireT.EqualValues(1, b.Available())
}

func TestPairingUnderLoad(t *testing.T) {
	const (
		signallers   = 8
		perSignaller = 500
	)

	requireT := require.New(t)
	ctx := qa.NewContext(t)

	for _, capacity := range []int{1, 4, signallers * perSignaller} {
		b := barrier.New[int](capacity)
		var negative atomic.Bool
		var wg sync.WaitGroup

		for i := range signallers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range perSignaller {
					if err := b.Signal(ctx, i*perSignaller+j); err != nil {
						panic(err)
					}
					if b.Available() < 0 {
						negative.Store(true)
					}
				}
			}()
		}

		seen := make(map[int]struct{}, signallers*perSignaller)
		for range signallers * perSignaller {
			v, err := b.Wait(ctx, 5*time.Second)
			requireT.NoError(err)
			requireT.GreaterOrEqual(b.Available(), int64(0))
			seen[v] = struct{}{}
		}
		wg.Wait()

		requireT.False(negative.Load())
		requireT.Len(seen, signallers*perSignaller)
		requireT.EqualValues(0, b.Available())
	}
}

func TestWaitsBeforeSignals(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	const n = 100
	b := barrier.New[int](1)
	results := make(chan error, n)
	for range n {
		go func() {
			_, err := b.Wait(ctx, 5*time.Second)
			results <- err
		}()
	}
	for i := range n {
		requireT.NoError(b.Signal(ctx, i))
	}
	for range n {
		requireT.NoError(<-results)
	}
	requireT.EqualValues(0, b.Available())
}
