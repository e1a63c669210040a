package broadcast_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accessgate/pkg/broadcast"
)

func receive[T any](t *testing.T, sub broadcast.Subscriber[T]) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-sub.Receive():
		return v, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	var zero T
	return zero, false
}

func TestMemoryBroadcaster_FanOut(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[string](4)
	defer b.Close()

	ctx := context.Background()
	s1 := b.Subscribe(ctx, nil)
	s2 := b.Subscribe(ctx, nil)
	assert.Equal(t, 2, b.Len())

	dropped, err := b.Broadcast(ctx, "hello")
	require.NoError(t, err)
	assert.Zero(t, dropped)

	v, ok := receive(t, s1)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
	v, _ = receive(t, s2)
	assert.Equal(t, "hello", v)
}

func TestMemoryBroadcaster_Filter(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](4)
	defer b.Close()

	ctx := context.Background()
	even := b.Subscribe(ctx, func(n int) bool { return n%2 == 0 })
	for n := range 4 {
		_, err := b.Broadcast(ctx, n)
		require.NoError(t, err)
	}

	v, _ := receive(t, even)
	assert.Equal(t, 0, v)
	v, _ = receive(t, even)
	assert.Equal(t, 2, v)
	assert.Empty(t, even.Receive())
}

func TestMemoryBroadcaster_SlowConsumer(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	ctx := context.Background()
	sub := b.Subscribe(ctx, nil)

	dropped, err := b.Broadcast(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, dropped)

	dropped, err = b.Broadcast(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, b.Len(), "slow consumers stay subscribed")

	v, _ := receive(t, sub)
	assert.Equal(t, 1, v)
}

func TestMemoryBroadcaster_ContextCancel(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx, nil)
	cancel()

	_, ok := receive(t, sub)
	assert.False(t, ok, "channel closes with the context")
	assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryBroadcaster_Close(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	ctx := context.Background()
	sub := b.Subscribe(ctx, nil)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := receive(t, sub)
	assert.False(t, ok)
	require.NoError(t, sub.Close())

	_, err := b.Broadcast(ctx, 1)
	assert.ErrorIs(t, err, broadcast.ErrClosed)

	late := b.Subscribe(ctx, nil)
	_, ok = receive(t, late)
	assert.False(t, ok)
}

func TestMemoryBroadcaster_Concurrent(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](64)
	defer b.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := b.Subscribe(ctx, nil)
			_, _ = b.Broadcast(ctx, 1)
			_ = sub.Close()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Len())
}
