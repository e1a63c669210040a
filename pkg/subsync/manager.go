package subsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/accessgate/pkg/broadcast"
	"github.com/dmitrymomot/accessgate/pkg/identity"
	"github.com/dmitrymomot/accessgate/pkg/logger"
)

// Manager owns the syncers of all active sessions.
//
// Status changes detected by any syncer run through the registered hooks and
// are then broadcast to live subscribers. Hooks run synchronously with the
// check that found the change and must not call back into the syncer.
//
// A session lives until it is detached, its token expires, or it sees no
// request and no open stream for the idle timeout.
type Manager struct {
	provider    identity.Provider
	interval    time.Duration
	idleTimeout time.Duration
	log         *slog.Logger
	broadcaster broadcast.Broadcaster[Change]
	hooks       []Hook
	observer    PollObserver
	now         func() time.Time

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	reaped   chan struct{}
	sessions map[string]*session // by session id
}

type session struct {
	syncer    *Syncer
	expiresAt time.Time // zero when the token carries no expiry
	lastSeen  time.Time
	holds     int
}

// evictable reports why the session should be detached at now, if at all.
func (e *session) evictable(now time.Time, idle time.Duration) (string, bool) {
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		return "expired", true
	}
	if e.holds == 0 && now.Sub(e.lastSeen) >= idle {
		return "idle", true
	}
	return "", false
}

type Option func(*Manager)

func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithIdleTimeout sets how long a session may go without a request or an
// open stream before its syncer is stopped.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithBroadcaster replaces the in-memory broadcaster. The manager closes it on Shutdown.
func WithBroadcaster(b broadcast.Broadcaster[Change]) Option {
	return func(m *Manager) {
		if b != nil {
			m.broadcaster = b
		}
	}
}

// WithHook registers a hook for detected changes. Hooks run in registration order.
func WithHook(h Hook) Option {
	return func(m *Manager) {
		if h != nil {
			m.hooks = append(m.hooks, h)
		}
	}
}

func WithPollObserver(o PollObserver) Option {
	return func(m *Manager) { m.observer = o }
}

func WithManagerClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager. It panics if provider is nil.
func NewManager(provider identity.Provider, opts ...Option) *Manager {
	if provider == nil {
		panic("subsync: identity provider is required")
	}
	m := &Manager{
		provider:    provider,
		interval:    DefaultInterval,
		idleTimeout: DefaultIdleTimeout,
		log:         logger.Discard(),
		broadcaster: broadcast.NewMemoryBroadcaster[Change](16),
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerFromConfig creates a manager with interval, idle timeout and
// buffer taken from cfg.
func NewManagerFromConfig(provider identity.Provider, cfg Config, opts ...Option) *Manager {
	base := []Option{WithInterval(cfg.Interval), WithIdleTimeout(cfg.IdleTimeout)}
	if cfg.BufferSize > 0 {
		base = append(base, WithBroadcaster(broadcast.NewMemoryBroadcaster[Change](cfg.BufferSize)))
	}
	return NewManager(provider, append(base, opts...)...)
}

// Initialize makes the manager accept sessions and starts evicting expired
// and idle ones. Polling loops live until Shutdown or until ctx ends.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return ErrAlreadyInitialized
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.reaped = make(chan struct{})
	go m.reap(m.ctx, m.reaped)

	m.log.InfoContext(ctx, "subscription sync initialized",
		logger.Component("subsync"),
		logger.Duration(m.interval),
		slog.Duration("idle_timeout", m.idleTimeout),
	)
	return nil
}

// Shutdown stops every syncer and closes the broadcaster.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	cancel, reaped := m.cancel, m.reaped
	m.mu.Unlock()

	for _, e := range sessions {
		e.syncer.Stop()
	}
	if cancel != nil {
		cancel()
		<-reaped
	}
	if err := m.broadcaster.Close(); err != nil {
		m.log.Error("failed to close change broadcaster", logger.Error(err))
	}
}

// AttachOption tunes a single Attach call.
type AttachOption func(*session)

// WithExpiry bounds the session's syncer by its token expiry. Every Attach
// refreshes it, so a renewed token extends the session.
func WithExpiry(t time.Time) AttachOption {
	return func(e *session) { e.expiresAt = t }
}

// Attach starts a syncer for the session if it has none and marks the
// session as seen. A session that changes user gets a fresh syncer and cache.
func (m *Manager) Attach(ctx context.Context, sessionID, userID string, opts ...AttachOption) (*Syncer, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	if userID == "" {
		return nil, ErrMissingUser
	}

	now := m.now()
	var want session
	for _, opt := range opts {
		opt(&want)
	}
	if !want.expiresAt.IsZero() && !now.Before(want.expiresAt) {
		return nil, ErrSessionExpired
	}

	m.mu.Lock()
	if m.ctx == nil {
		m.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if e, ok := m.sessions[sessionID]; ok && e.syncer.UserID() == userID {
		e.lastSeen = now
		e.expiresAt = want.expiresAt
		s := e.syncer
		m.mu.Unlock()
		return s, nil
	}
	var stale *Syncer
	if e, ok := m.sessions[sessionID]; ok {
		stale = e.syncer
	}
	s := NewSyncer(userID, m.provider,
		WithSessionID(sessionID),
		WithSyncerInterval(m.interval),
		WithSyncerLogger(m.log),
		WithSyncerPollObserver(m.observer),
		WithClock(m.now),
		WithNotify(m.dispatch),
	)
	m.sessions[sessionID] = &session{syncer: s, expiresAt: want.expiresAt, lastSeen: now}
	base := m.ctx
	m.mu.Unlock()

	if stale != nil {
		stale.Stop()
	}

	// The loop belongs to the manager, not to the request that attached it.
	// A Detach that wins the race has already stopped s, so Start is a no-op.
	s.Start(base)
	m.log.DebugContext(ctx, "session attached to subscription sync",
		logger.Component("subsync"),
		logger.SessionID(sessionID),
		logger.UserID(userID),
	)
	return s, nil
}

// Detach stops the session's syncer and drops its cache.
func (m *Manager) Detach(sessionID string) bool {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		e.syncer.Stop()
	}
	return ok
}

// Hold keeps an attached session from going idle while a long-lived
// request, such as an event stream, is open. The returned release must be
// called once the request ends; it also counts as activity. Token expiry
// still detaches a held session.
func (m *Manager) Hold(sessionID string) (release func()) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if ok {
		e.holds++
	}
	m.mu.Unlock()
	if !ok {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			e.holds--
			e.lastSeen = m.now()
		})
	}
}

// Sweep detaches every session whose token expired or that went idle and
// returns how many were detached. It runs every poll interval once the
// manager is initialized.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()

	type eviction struct {
		id     string
		s      *Syncer
		reason string
	}
	var evicted []eviction

	m.mu.Lock()
	for id, e := range m.sessions {
		if reason, ok := e.evictable(now, m.idleTimeout); ok {
			delete(m.sessions, id)
			evicted = append(evicted, eviction{id: id, s: e.syncer, reason: reason})
		}
	}
	m.mu.Unlock()

	for _, ev := range evicted {
		ev.s.Stop()
		m.log.DebugContext(ctx, "session detached from subscription sync",
			logger.Component("subsync"),
			logger.SessionID(ev.id),
			logger.UserID(ev.s.UserID()),
			slog.String("reason", ev.reason),
		)
	}
	return len(evicted)
}

func (m *Manager) reap(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Syncer returns the session's syncer.
func (m *Manager) Syncer(sessionID string) (*Syncer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return e.syncer, true
}

// Len returns the number of attached sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CheckUser runs an immediate check on every session of userID and returns
// how many of them observed a change.
func (m *Manager) CheckUser(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	var targets []*Syncer
	for _, e := range m.sessions {
		if e.syncer.UserID() == userID {
			targets = append(targets, e.syncer)
		}
	}
	m.mu.Unlock()

	changed := 0
	var firstErr error
	for _, s := range targets {
		ok, err := s.sync(ctx, SourcePush)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if ok {
			changed++
		}
	}
	return changed, firstErr
}

// Subscribe streams the changes of userID until ctx ends.
func (m *Manager) Subscribe(ctx context.Context, userID string) broadcast.Subscriber[Change] {
	return m.broadcaster.Subscribe(ctx, func(c Change) bool {
		return c.UserID == userID
	})
}

func (m *Manager) dispatch(ctx context.Context, c Change) {
	for _, h := range m.hooks {
		h(ctx, c)
	}
	dropped, err := m.broadcaster.Broadcast(ctx, c)
	if err != nil {
		m.log.WarnContext(ctx, "failed to broadcast status change", logger.Error(err))
		return
	}
	if dropped > 0 {
		m.log.WarnContext(ctx, "slow subscribers missed a status change",
			logger.UserID(c.UserID),
			slog.Int("dropped", dropped),
		)
	}
}
