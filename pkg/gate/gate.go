package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/accessgate/pkg/access"
	"github.com/dmitrymomot/accessgate/pkg/async"
	"github.com/dmitrymomot/accessgate/pkg/feature"
	"github.com/dmitrymomot/accessgate/pkg/logger"
	"github.com/dmitrymomot/accessgate/pkg/statemachine"
)

const defaultLoadingTimeout = 10 * time.Second

// Checker answers access checks. *access.Evaluator implements it.
type Checker interface {
	Check(ctx context.Context, user access.User, featureID *feature.ID) access.Result
}

// Inputs are everything a decision depends on. An empty User.ID means nobody is signed in.
type Inputs struct {
	User    access.User
	Feature *feature.ID
}

// Gate decides what a protected view shows and renders it.
//
// Each Update starts a fresh check and cancels the previous one. Only the
// result of the most recently issued check is applied; late results of
// superseded checks are dropped.
type Gate struct {
	checker Checker
	timeout time.Duration
	log     *slog.Logger
	view    View
	observe func(Inputs, Decision)

	machine *statemachine.Machine[Decision, event]

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	inputs  Inputs
	result  access.Result
	chrome  Chrome
	changed chan struct{}
	closed  bool
}

type Option func(*Gate)

// WithLoadingTimeout bounds the Loading state. A check that does not finish
// in time resolves the gate to UpgradeRequired.
func WithLoadingTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithView sets the URLs, content and fallback used for rendering.
func WithView(v View) Option {
	return func(g *Gate) { g.view = v }
}

// WithObserver is called with every resolved decision while the gate is
// locked. fn must not call back into the gate.
func WithObserver(fn func(Inputs, Decision)) Option {
	return func(g *Gate) { g.observe = fn }
}

// New creates a gate in the Loading state. It panics if checker is nil.
func New(checker Checker, opts ...Option) *Gate {
	if checker == nil {
		panic("gate: checker is required")
	}
	g := &Gate{
		checker: checker,
		timeout: defaultLoadingTimeout,
		log:     logger.Discard(),
		chrome:  ChromeFull,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logger.Component("gate"))

	resolved := []Decision{Loading}
	g.machine = statemachine.New(Loading,
		statemachine.WithTransition[Decision, event](SignInRequired, evNoUser, resolved),
		statemachine.WithTransition[Decision, event](ProfileIncomplete, evNoProfile, resolved),
		statemachine.WithTransition[Decision, event](UpgradeRequired, evDenied, resolved),
		statemachine.WithTransition[Decision, event](Granted, evAllowed, resolved),
	)
	return g
}

// Update recomputes the decision for in. The gate returns to Loading until
// the new check resolves.
func (g *Gate) Update(ctx context.Context, in Inputs) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.gen++
	gen := g.gen
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.inputs = in
	g.result = access.Result{}
	g.machine.Reset()
	g.broadcast()

	if in.User.ID == "" {
		g.apply(ctx, evNoUser, access.Denied(access.ReasonNoSubscription))
		g.mu.Unlock()
		return
	}

	checkCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.mu.Unlock()

	fut := async.Async(checkCtx, in, func(ctx context.Context, in Inputs) (access.Result, error) {
		return g.checker.Check(ctx, in.User, in.Feature), nil
	})

	go func() {
		res, err := fut.AwaitWithTimeout(g.timeout)
		if err != nil {
			if errors.Is(err, async.ErrTimeout) {
				cancel()
				g.log.WarnContext(ctx, "access check timed out, denying",
					logger.UserID(in.User.ID),
					logger.Feature(featureName(in.Feature)),
				)
			}
			res = access.Denied(access.ReasonNoSubscription)
		}
		g.resolve(ctx, gen, res)
	}()
}

// Decision returns the current decision.
func (g *Gate) Decision() Decision {
	return g.machine.Current()
}

// Result returns the access result behind the current decision.
// It is the zero Result while loading.
func (g *Gate) Result() access.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result
}

func (g *Gate) Inputs() Inputs {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inputs
}

// Wait blocks until the gate leaves Loading or ctx ends.
func (g *Gate) Wait(ctx context.Context) (Decision, error) {
	for {
		g.mu.Lock()
		d, ch, closed := g.machine.Current(), g.changed, g.closed
		g.mu.Unlock()

		if d.Terminal() {
			return d, nil
		}
		if closed {
			return d, ErrClosed
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return d, ctx.Err()
		}
	}
}

// Resize picks the chrome for a viewport width. It never affects the decision.
func (g *Gate) Resize(width int) Chrome {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chrome = ChromeFor(width)
	return g.chrome
}

func (g *Gate) Chrome() Chrome {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chrome
}

// Close cancels the outstanding check. Later results are discarded.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.gen++
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.broadcast()
}

// Component renders the current decision.
func (g *Gate) Component() templ.Component {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view.component(g.machine.Current(), g.inputs.Feature, g.chrome)
}

func (g *Gate) resolve(ctx context.Context, gen uint64, res access.Result) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.gen {
		g.log.DebugContext(ctx, "discarding stale access result",
			logger.Feature(featureName(g.inputs.Feature)),
		)
		return
	}
	g.cancel = nil
	g.apply(ctx, decide(res), res)
}

// apply must be called with g.mu held.
func (g *Gate) apply(ctx context.Context, ev event, res access.Result) {
	if err := g.machine.Fire(ctx, ev); err != nil {
		g.log.ErrorContext(ctx, "gate transition failed", logger.Error(err))
		return
	}
	g.result = res
	d := g.machine.Current()
	g.log.DebugContext(ctx, "gate resolved",
		logger.UserID(g.inputs.User.ID),
		logger.Feature(featureName(g.inputs.Feature)),
		logger.Decision(string(d)),
	)
	if g.observe != nil {
		g.observe(g.inputs, d)
	}
	g.broadcast()
}

// broadcast wakes every Wait. It must be called with g.mu held.
func (g *Gate) broadcast() {
	close(g.changed)
	g.changed = make(chan struct{})
}

func featureName(id *feature.ID) string {
	if id == nil {
		return ""
	}
	return string(*id)
}
