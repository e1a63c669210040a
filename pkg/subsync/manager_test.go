package subsync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accessgate/pkg/subsync"
)

func newManager(t *testing.T, p *fakeProvider, opts ...subsync.Option) *subsync.Manager {
	t.Helper()
	m := subsync.NewManager(p, append([]subsync.Option{subsync.WithInterval(time.Hour)}, opts...)...)
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(m.Shutdown)
	return m
}

func TestManager_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("attach requires initialize", func(t *testing.T) {
		t.Parallel()
		m := subsync.NewManager(newProvider("free"))
		_, err := m.Attach(context.Background(), "sess_1", "user_1")
		assert.ErrorIs(t, err, subsync.ErrNotInitialized)
	})

	t.Run("initialize twice fails", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, newProvider("free"))
		assert.ErrorIs(t, m.Initialize(context.Background()), subsync.ErrAlreadyInitialized)
	})

	t.Run("attach validates ids", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, newProvider("free"))
		_, err := m.Attach(context.Background(), "", "user_1")
		assert.ErrorIs(t, err, subsync.ErrMissingSession)
		_, err = m.Attach(context.Background(), "sess_1", "")
		assert.ErrorIs(t, err, subsync.ErrMissingUser)
	})

	t.Run("attach is idempotent and detach stops the syncer", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, newProvider("active"))
		ctx := context.Background()

		s1, err := m.Attach(ctx, "sess_1", "user_1")
		require.NoError(t, err)
		s2, err := m.Attach(ctx, "sess_1", "user_1")
		require.NoError(t, err)
		assert.Same(t, s1, s2)
		assert.True(t, s1.Running())
		assert.Equal(t, 1, m.Len())

		assert.True(t, m.Detach("sess_1"))
		assert.False(t, s1.Running())
		assert.False(t, m.Detach("sess_1"))
		_, ok := m.Syncer("sess_1")
		assert.False(t, ok)
	})

	t.Run("new user on same session replaces the syncer", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, newProvider("free"))
		ctx := context.Background()

		s1, err := m.Attach(ctx, "sess_1", "user_1")
		require.NoError(t, err)
		s2, err := m.Attach(ctx, "sess_1", "user_2")
		require.NoError(t, err)
		assert.NotSame(t, s1, s2)
		assert.False(t, s1.Running())
		assert.NotSame(t, s1.Cache(), s2.Cache())
	})

	t.Run("shutdown stops every syncer", func(t *testing.T) {
		t.Parallel()
		m := subsync.NewManager(newProvider("free"))
		require.NoError(t, m.Initialize(context.Background()))

		s, err := m.Attach(context.Background(), "sess_1", "user_1")
		require.NoError(t, err)
		m.Shutdown()
		assert.False(t, s.Running())
		assert.Zero(t, m.Len())
	})
}

func TestManager_DispatchesChanges(t *testing.T) {
	t.Parallel()

	p := newProvider("free")
	rec := &changeRecorder{}
	m := newManager(t, p, subsync.WithHook(rec.hook))
	ctx := context.Background()

	sub := m.Subscribe(ctx, "user_1")
	defer sub.Close()
	other := m.Subscribe(ctx, "user_2")
	defer other.Close()

	s, err := m.Attach(ctx, "sess_1", "user_1")
	require.NoError(t, err)

	p.set("subscriptionStatus", "active")
	changed, err := s.CheckNow(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	select {
	case c := <-sub.Receive():
		assert.Equal(t, subsync.CategoryUpgradeSuccess, c.Category)
		assert.True(t, c.ReloadRequired)
	case <-time.After(time.Second):
		t.Fatal("change was not broadcast")
	}
	select {
	case c := <-other.Receive():
		t.Fatalf("unexpected change for another user: %+v", c)
	default:
	}
	assert.Len(t, rec.all(), 1)
}

func TestManager_CheckUser(t *testing.T) {
	t.Parallel()

	p := newProvider("free")
	rec := &changeRecorder{}
	polls := &pollRecorder{}
	m := newManager(t, p, subsync.WithHook(rec.hook), subsync.WithPollObserver(polls))
	ctx := context.Background()

	_, err := m.Attach(ctx, "sess_1", "user_1")
	require.NoError(t, err)
	_, err = m.Attach(ctx, "sess_2", "user_1")
	require.NoError(t, err)
	_, err = m.Attach(ctx, "sess_3", "user_2")
	require.NoError(t, err)

	p.set("subscriptionStatus", "trialing")
	changed, err := m.CheckUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	for _, c := range rec.all() {
		assert.Equal(t, subsync.SourcePush, c.Source)
		assert.Equal(t, "user_1", c.UserID)
	}

	polls.mu.Lock()
	defer polls.mu.Unlock()
	assert.Contains(t, polls.sources, subsync.SourcePush)
}

func TestManager_SessionLifetime(t *testing.T) {
	t.Parallel()

	t.Run("expired session is detached", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		m := newManager(t, newProvider("free"), subsync.WithManagerClock(c.Now))
		ctx := context.Background()

		s, err := m.Attach(ctx, "sess_1", "user_1", subsync.WithExpiry(c.Now().Add(time.Minute)))
		require.NoError(t, err)
		_, err = m.Attach(ctx, "sess_2", "user_2", subsync.WithExpiry(c.Now().Add(time.Hour)))
		require.NoError(t, err)

		c.Advance(30 * time.Second)
		assert.Zero(t, m.Sweep(ctx))

		c.Advance(30 * time.Second)
		assert.Equal(t, 1, m.Sweep(ctx))
		assert.False(t, s.Running())
		_, ok := m.Syncer("sess_1")
		assert.False(t, ok)
		assert.Equal(t, 1, m.Len())
	})

	t.Run("renewed token extends the session", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		m := newManager(t, newProvider("free"), subsync.WithManagerClock(c.Now))
		ctx := context.Background()

		_, err := m.Attach(ctx, "sess_1", "user_1", subsync.WithExpiry(c.Now().Add(time.Minute)))
		require.NoError(t, err)
		c.Advance(50 * time.Second)
		_, err = m.Attach(ctx, "sess_1", "user_1", subsync.WithExpiry(c.Now().Add(time.Minute)))
		require.NoError(t, err)

		c.Advance(50 * time.Second)
		assert.Zero(t, m.Sweep(ctx))
		assert.Equal(t, 1, m.Len())
	})

	t.Run("attach with an expired token is rejected", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		m := newManager(t, newProvider("free"), subsync.WithManagerClock(c.Now))

		_, err := m.Attach(context.Background(), "sess_1", "user_1", subsync.WithExpiry(c.Now().Add(-time.Second)))
		assert.ErrorIs(t, err, subsync.ErrSessionExpired)
		assert.Zero(t, m.Len())
	})

	t.Run("idle session is detached unless held", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		m := newManager(t, newProvider("free"),
			subsync.WithManagerClock(c.Now),
			subsync.WithIdleTimeout(10*time.Minute),
		)
		ctx := context.Background()

		_, err := m.Attach(ctx, "sess_idle", "user_1")
		require.NoError(t, err)
		_, err = m.Attach(ctx, "sess_streaming", "user_2")
		require.NoError(t, err)
		release := m.Hold("sess_streaming")

		c.Advance(11 * time.Minute)
		assert.Equal(t, 1, m.Sweep(ctx))
		_, ok := m.Syncer("sess_idle")
		assert.False(t, ok)
		_, ok = m.Syncer("sess_streaming")
		assert.True(t, ok, "an open stream keeps the session alive")

		release()
		release()
		c.Advance(5 * time.Minute)
		assert.Zero(t, m.Sweep(ctx), "release counts as activity")
		c.Advance(6 * time.Minute)
		assert.Equal(t, 1, m.Sweep(ctx))
		assert.Zero(t, m.Len())
	})

	t.Run("expiry detaches in the background and polling stops", func(t *testing.T) {
		t.Parallel()
		p := newProvider("free")
		m := newManager(t, p, subsync.WithInterval(10*time.Millisecond))

		_, err := m.Attach(context.Background(), "sess_1", "user_1", subsync.WithExpiry(time.Now().Add(50*time.Millisecond)))
		require.NoError(t, err)

		require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
		calls := p.Calls()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, calls, p.Calls(), "no polls after the session expired")
	})

	t.Run("detach racing attach leaves no running loop", func(t *testing.T) {
		t.Parallel()
		p := newProvider("free")
		m := newManager(t, p, subsync.WithInterval(5*time.Millisecond))
		ctx := context.Background()

		for range 50 {
			done := make(chan *subsync.Syncer)
			go func() {
				s, _ := m.Attach(ctx, "sess_1", "user_1")
				done <- s
			}()
			m.Detach("sess_1")
			s := <-done
			if _, ok := m.Syncer("sess_1"); !ok && s != nil {
				assert.False(t, s.Running(), "detached syncer must not poll")
			}
			m.Detach("sess_1")
			if s != nil {
				assert.False(t, s.Running())
			}
		}
		assert.Zero(t, m.Len())
	})
}
