package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_AcquireDrainsCapacity(t *testing.T) {
	b := NewBucket(3, 1000)
	defer b.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Acquire(ctx))
	}
}

func TestBucket_AcquireBlocksUntilRefill(t *testing.T) {
	b := NewBucket(1, 200) // one token every 5ms
	defer b.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, b.Acquire(ctx))

	start := time.Now()
	require.NoError(t, b.Acquire(ctx))
	assert.Greater(t, time.Since(start), time.Duration(0))
}

func TestBucket_AcquireRespectsContextCancellation(t *testing.T) {
	b := NewBucket(1, 1) // very slow refill
	defer b.Stop()

	require.NoError(t, b.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBucket_AcquireFailsAfterStop(t *testing.T) {
	b := NewBucket(2, 100)
	b.Stop()

	err := b.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestBucket_RefillNeverExceedsCapacity(t *testing.T) {
	b := NewBucket(2, 500) // fast refill
	defer b.Stop()

	time.Sleep(30 * time.Millisecond) // bucket should stay capped at 2, never block a 3rd waiter forever

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, b.Acquire(ctx))
	require.NoError(t, b.Acquire(ctx))
}

func TestController_PauseResumeIdempotent(t *testing.T) {
	c := NewController()
	assert.False(t, c.IsPaused())

	c.Pause()
	c.Pause()
	assert.True(t, c.IsPaused())

	c.Resume()
	c.Resume()
	assert.False(t, c.IsPaused())
}

func TestController_RefreshCoalescesSignals(t *testing.T) {
	c := NewController()

	c.Refresh()
	c.Refresh()
	c.Refresh()

	select {
	case <-c.RefreshSignal():
	default:
		t.Fatal("expected a pending refresh signal")
	}

	select {
	case <-c.RefreshSignal():
		t.Fatal("expected signals to have coalesced into one")
	default:
	}
}
