package subsync_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrymomot/accessgate/pkg/identity"
	"github.com/dmitrymomot/accessgate/pkg/subsync"
)

var errProviderDown = errors.New("provider down")

// periodEnd keeps premium fixtures valid.
const periodEnd = "2099-01-01T00:00:00Z"

// fakeProvider serves whatever metadata was set last, or fails when err is set.
type fakeProvider struct {
	mu    sync.Mutex
	meta  map[string]any
	err   error
	calls int
}

func newProvider(status string) *fakeProvider {
	return &fakeProvider{meta: map[string]any{
		"subscriptionStatus":    status,
		"subscriptionPeriodEnd": periodEnd,
	}}
}

func (p *fakeProvider) Reload(_ context.Context, userID string) (*identity.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	meta := make(map[string]any, len(p.meta))
	for k, v := range p.meta {
		meta[k] = v
	}
	return &identity.User{ID: userID, Metadata: meta}, nil
}

func (p *fakeProvider) set(key string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta[key] = v
}

func (p *fakeProvider) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []subsync.Change
}

func (r *changeRecorder) hook(_ context.Context, c subsync.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) all() []subsync.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]subsync.Change(nil), r.changes...)
}

type pollRecorder struct {
	mu      sync.Mutex
	sources []subsync.Source
	errs    int
}

func (r *pollRecorder) PollCompleted(src subsync.Source, _ bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, src)
	if err != nil {
		r.errs++
	}
}

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
