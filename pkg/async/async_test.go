package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accessgate/pkg/async"
)

func TestAsync_Await(t *testing.T) {
	t.Parallel()

	fut := async.Async(context.Background(), 21, func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	})
	v, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, fut.IsComplete())
}

func TestAsync_PropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fut := async.Async(context.Background(), "x", func(context.Context, string) (bool, error) {
		return false, boom
	})
	_, err := fut.Await()
	assert.ErrorIs(t, err, boom)
}

func TestAsync_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	fut := async.Async(ctx, 0, func(context.Context, int) (int, error) {
		called = true
		return 1, nil
	})
	_, err := fut.Await()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestFuture_AwaitWithTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	fut := async.Async(context.Background(), 0, func(context.Context, int) (int, error) {
		<-release
		return 1, nil
	})

	_, err := fut.AwaitWithTimeout(20 * time.Millisecond)
	assert.ErrorIs(t, err, async.ErrTimeout)
	assert.False(t, fut.IsComplete())
}

func TestFuture_AwaitContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	fut := async.Async(context.Background(), 0, func(context.Context, int) (int, error) {
		<-release
		return 7, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := fut.AwaitContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	select {
	case <-fut.Done():
	case <-time.After(time.Second):
		t.Fatal("future did not complete")
	}
	v, err := fut.AwaitContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
