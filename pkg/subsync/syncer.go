package subsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/accessgate/pkg/identity"
	"github.com/dmitrymomot/accessgate/pkg/logger"
	"github.com/dmitrymomot/accessgate/pkg/subscription"
)

// Hook is called for every detected status change, before it is broadcast.
type Hook func(ctx context.Context, c Change)

// PollObserver is told about the outcome of every check.
type PollObserver interface {
	PollCompleted(src Source, changed bool, err error)
}

// Syncer keeps one session's subscription cache in step with the identity
// provider. The cache has a single writer: the syncer.
type Syncer struct {
	userID    string
	sessionID string
	provider  identity.Provider
	cache     *subscription.Cache
	interval  time.Duration
	log       *slog.Logger
	now       func() time.Time
	notify    Hook
	observer  PollObserver

	// mu serialises fetch-compare-apply between the loop and CheckNow.
	mu        sync.Mutex
	lastKnown *subscription.Record

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	stopped   bool
}

type SyncerOption func(*Syncer)

func WithSyncerInterval(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSyncerLogger(l *slog.Logger) SyncerOption {
	return func(s *Syncer) {
		if l != nil {
			s.log = l
		}
	}
}

func WithSessionID(id string) SyncerOption {
	return func(s *Syncer) { s.sessionID = id }
}

// WithCache makes the syncer write into an existing cache.
func WithCache(c *subscription.Cache) SyncerOption {
	return func(s *Syncer) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithNotify(h Hook) SyncerOption {
	return func(s *Syncer) { s.notify = h }
}

func WithSyncerPollObserver(o PollObserver) SyncerOption {
	return func(s *Syncer) { s.observer = o }
}

func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSyncer creates an idle syncer for userID. It panics if userID is
// empty or provider is nil.
func NewSyncer(userID string, provider identity.Provider, opts ...SyncerOption) *Syncer {
	if userID == "" {
		panic("subsync: user id is required")
	}
	if provider == nil {
		panic("subsync: identity provider is required")
	}
	s := &Syncer{
		userID:   userID,
		provider: provider,
		cache:    subscription.NewCache(),
		interval: DefaultInterval,
		log:      logger.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(
		logger.Component("subsync"),
		logger.UserID(s.userID),
		logger.SessionID(s.sessionID),
	)
	return s
}

func (s *Syncer) UserID() string { return s.userID }

// Cache returns the session's subscription cache.
func (s *Syncer) Cache() *subscription.Cache { return s.cache }

// LastKnown returns the last successfully fetched record and whether one exists.
func (s *Syncer) LastKnown() (subscription.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastKnown == nil {
		return subscription.Record{}, false
	}
	return *s.lastKnown, true
}

// Start captures the current record and starts polling until ctx ends or
// Stop is called. A failed initial fetch is logged; the first successful poll
// becomes the baseline instead. Calling Start on a running syncer is a no-op,
// and a stopped syncer never starts again.
func (s *Syncer) Start(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.cancel != nil || s.stopped {
		return
	}

	if _, err := s.sync(ctx, SourcePoll); err != nil {
		s.log.WarnContext(ctx, "initial subscription fetch failed", logger.Error(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop cancels the polling loop and waits for it to exit. It is idempotent
// and final: a Start that races with or follows Stop does nothing.
func (s *Syncer) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopped = true
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

// Running reports whether the polling loop is active.
func (s *Syncer) Running() bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.cancel != nil
}

// CheckNow runs one fetch-compare-classify cycle synchronously and reports
// whether the status changed.
func (s *Syncer) CheckNow(ctx context.Context) (bool, error) {
	return s.sync(ctx, SourceManual)
}

func (s *Syncer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.sync(ctx, SourcePoll); err != nil && ctx.Err() == nil {
				s.log.WarnContext(ctx, "subscription poll failed", logger.Error(err))
			}
		}
	}
}

// sync fetches the record and applies it. A failed fetch, or a record that
// breaks the premium period invariant, leaves the cache and lastKnown untouched.
func (s *Syncer) sync(ctx context.Context, src Source) (changed bool, err error) {
	defer func() {
		if s.observer != nil {
			s.observer.PollCompleted(src, changed, err)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.provider.Reload(ctx, s.userID)
	if err != nil {
		return false, errors.Join(ErrFetchFailed, err)
	}
	rec, err := subscription.FromMetadata(user.Metadata)
	if err != nil {
		return false, errors.Join(ErrInvalidRecord, err)
	}

	now := s.now()
	if err := rec.Validate(now); err != nil {
		s.log.WarnContext(ctx, "identity provider returned an invalid subscription record",
			logger.Status(rec.Status.String()),
			logger.Error(err),
		)
		return false, errors.Join(ErrInvalidRecord, err)
	}
	if s.lastKnown == nil {
		s.lastKnown = &rec
		s.cache.Store(rec, now)
		s.log.DebugContext(ctx, "subscription baseline captured", logger.Status(rec.Status.String()))
		return false, nil
	}

	prev := *s.lastKnown
	if prev.Status == rec.Status {
		if !prev.Equal(rec) {
			s.lastKnown = &rec
			s.cache.Store(rec, now)
		}
		return false, nil
	}

	s.lastKnown = &rec
	s.cache.Store(rec, now)

	c := newChange(s.userID, s.sessionID, prev.Status, rec.Status, src, now)
	s.log.InfoContext(ctx, "subscription status changed",
		logger.Transition(prev.Status.String(), rec.Status.String()),
		logger.Category(string(c.Category)),
		slog.String("source", string(src)),
	)
	if s.notify != nil {
		s.notify(ctx, c)
	}
	return true, nil
}
