package access

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/accessgate/pkg/cache"
	"github.com/dmitrymomot/accessgate/pkg/feature"
)

// Key identifies a shareable access check. An empty Feature is the coarse premium check.
type Key struct {
	UserID  string
	Feature feature.ID
}

type call struct {
	done    chan struct{}
	res     Result
	err     error
	waiters int
	stale   bool
	cancel  context.CancelFunc
}

// Coalescer merges concurrent checks for the same Key into one request and
// keeps successful results for a short TTL.
//
// The shared request runs detached from any single caller. It is cancelled
// once every caller waiting on it has gone away.
type Coalescer struct {
	mu      sync.Mutex
	calls   map[Key]*call
	results *cache.TTLCache[Key, Result]
}

// NewCoalescer creates a coalescer caching up to size results for ttl.
func NewCoalescer(size int, ttl time.Duration, opts ...cache.Option) *Coalescer {
	return &Coalescer{
		calls:   make(map[Key]*call),
		results: cache.NewTTLCache[Key, Result](size, ttl, opts...),
	}
}

// Do returns a cached result for key, joins an in-flight check or starts fn.
// fn's error means the result must not be cached. When ctx ends first Do
// returns ctx.Err() and the caller stops counting as a waiter.
func (c *Coalescer) Do(ctx context.Context, key Key, fn func(context.Context) (Result, error)) (Result, error) {
	if res, ok := c.results.Get(key); ok {
		return res, nil
	}

	c.mu.Lock()
	cl, ok := c.calls[key]
	if ok {
		cl.waiters++
	} else {
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		cl = &call{done: make(chan struct{}), waiters: 1, cancel: cancel}
		c.calls[key] = cl
		go c.run(shared, key, cl, fn)
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.res, cl.err
	case <-ctx.Done():
		c.leave(key, cl)
		return Result{}, ctx.Err()
	}
}

// Invalidate drops cached results of userID and keeps in-flight checks for
// that user from populating the cache.
func (c *Coalescer) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, cl := range c.calls {
		if k.UserID == userID {
			cl.stale = true
		}
	}
	c.results.RemoveFunc(func(k Key) bool { return k.UserID == userID })
}

// InFlight returns the number of shared checks currently running.
func (c *Coalescer) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *Coalescer) run(ctx context.Context, key Key, cl *call, fn func(context.Context) (Result, error)) {
	res, err := fn(ctx)

	// Publishing under c.mu orders the Put against Invalidate: either the
	// call is still marked stale, or its cached result is removed.
	c.mu.Lock()
	cl.res, cl.err = res, err
	if c.calls[key] == cl {
		delete(c.calls, key)
	}
	if err == nil && !cl.stale {
		c.results.Put(key, res)
	}
	c.mu.Unlock()

	cl.cancel()
	close(cl.done)
}

func (c *Coalescer) leave(key Key, cl *call) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl.waiters--
	if cl.waiters > 0 {
		return
	}
	cl.stale = true
	cl.cancel()
	if c.calls[key] == cl {
		delete(c.calls, key)
	}
}
