package ratelimiter_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accessgate/pkg/ratelimiter"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var cfg = ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: 10 * time.Second}

func TestNewBucket_Validates(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithSweepInterval(0))
	_, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 0, RefillRate: 1, RefillInterval: time.Second})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)

	_, err = ratelimiter.NewBucket(nil, cfg)
	assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
}

// storeContract runs the same bucket behaviour against every store.
func storeContract(t *testing.T, newStore func(t *testing.T, c *clock) ratelimiter.Store) {
	t.Run("burst up to capacity then reject", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		b, err := ratelimiter.NewBucket(newStore(t, c), cfg)
		require.NoError(t, err)

		ctx := context.Background()
		for i := range 3 {
			res, err := b.Allow(ctx, "user_1")
			require.NoError(t, err)
			assert.True(t, res.Allowed(), i)
			assert.Equal(t, 2-i, res.Remaining)
		}
		res, err := b.Allow(ctx, "user_1")
		require.NoError(t, err)
		assert.False(t, res.Allowed())
		assert.Equal(t, c.Now().Add(10*time.Second).Unix(), res.ResetAt.Unix())

		other, err := b.Allow(ctx, "user_2")
		require.NoError(t, err)
		assert.True(t, other.Allowed())
	})

	t.Run("refills over time without exceeding capacity", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		b, err := ratelimiter.NewBucket(newStore(t, c), cfg)
		require.NoError(t, err)

		ctx := context.Background()
		for range 4 {
			_, err := b.Allow(ctx, "user_1")
			require.NoError(t, err)
		}

		c.Advance(10 * time.Second)
		res, err := b.Allow(ctx, "user_1")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, 0, res.Remaining)

		c.Advance(time.Hour)
		res, err = b.Allow(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)
	})

	t.Run("reset refills the bucket", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		b, err := ratelimiter.NewBucket(newStore(t, c), cfg)
		require.NoError(t, err)

		ctx := context.Background()
		for range 3 {
			_, _ = b.Allow(ctx, "user_1")
		}
		require.NoError(t, b.Reset(ctx, "user_1"))

		res, err := b.Allow(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	storeContract(t, func(t *testing.T, c *clock) ratelimiter.Store {
		s := ratelimiter.NewMemoryStore(ratelimiter.WithSweepInterval(0), ratelimiter.WithMemoryClock(c.Now))
		t.Cleanup(s.Close)
		return s
	})
}

func TestRedisStore(t *testing.T) {
	t.Parallel()
	storeContract(t, func(t *testing.T, c *clock) ratelimiter.Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return ratelimiter.NewRedisStore(client, ratelimiter.WithRedisClock(c.Now), ratelimiter.WithKeyPrefix("test:"))
	})

	t.Run("unreachable redis is reported", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { _ = client.Close() })
		mr.Close()

		_, _, err := ratelimiter.NewRedisStore(client).ConsumeTokens(context.Background(), "k", 1, cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
	})
}

type brokenStore struct{}

func (brokenStore) ConsumeTokens(context.Context, string, int, ratelimiter.Config) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("store down")
}

func (brokenStore) Reset(context.Context, string) error { return nil }

func TestMiddleware(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	byHeader := func(r *http.Request) string { return r.Header.Get("X-User") }

	t.Run("rejects with json once the bucket is empty", func(t *testing.T) {
		t.Parallel()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithSweepInterval(0))
		t.Cleanup(store.Close)
		b, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Minute})
		require.NoError(t, err)
		h := ratelimiter.Middleware(b, ratelimiter.Composite(byHeader, ratelimiter.Route()), nil)(ok)

		send := func() *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/subscription/sync", nil)
			req.Header.Set("X-User", "user_1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec
		}

		first := send()
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

		second := send()
		require.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.NotEmpty(t, second.Header().Get("Retry-After"))
		var body map[string]string
		require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
		assert.Equal(t, "rate_limited", body["code"])
	})

	t.Run("empty key is not limited", func(t *testing.T) {
		t.Parallel()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithSweepInterval(0))
		t.Cleanup(store.Close)
		b, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Minute})
		require.NoError(t, err)
		h := ratelimiter.Middleware(b, byHeader, nil)(ok)

		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("store failure lets the request through", func(t *testing.T) {
		t.Parallel()
		b, err := ratelimiter.NewBucket(brokenStore{}, cfg)
		require.NoError(t, err)
		h := ratelimiter.Middleware(b, ratelimiter.Route(), nil)(ok)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestComposite_HashesLongKeys(t *testing.T) {
	t.Parallel()

	long := func(*http.Request) string { return string(make([]byte, 80)) }
	key := ratelimiter.Composite(long, ratelimiter.Route())(httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.LessOrEqual(t, len(key), 64)
	assert.NotEmpty(t, key)
}
