package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/accessgate/pkg/billing"
	"github.com/dmitrymomot/accessgate/pkg/gate"
	"github.com/dmitrymomot/accessgate/pkg/httpserver"
	"github.com/dmitrymomot/accessgate/pkg/identity"
	"github.com/dmitrymomot/accessgate/pkg/logger"
	"github.com/dmitrymomot/accessgate/pkg/metrics"
	"github.com/dmitrymomot/accessgate/pkg/planapi"
	"github.com/dmitrymomot/accessgate/pkg/ratelimiter"
	"github.com/dmitrymomot/accessgate/pkg/requestid"
	"github.com/dmitrymomot/accessgate/pkg/subsync"
	"github.com/dmitrymomot/accessgate/svc/history"
)

const (
	defaultReadyTimeout = 2 * time.Second
	defaultHistoryLimit = 20
	maxWebhookBody      = 1 << 20
)

// Evaluator answers gate checks and drops cached results on status changes.
// *access.Evaluator implements it.
type Evaluator interface {
	gate.Checker
	Invalidate(userID string)
}

// ProfileFetcher loads the edit-info form profile. *planapi.Client implements it.
type ProfileFetcher interface {
	Profile(ctx context.Context, token, setupToken string) (*planapi.Profile, error)
}

// Gateway is the HTTP surface of the access gate.
type Gateway struct {
	evaluator Evaluator
	sessions  *subsync.Manager
	billing   *billing.Service
	verifier  *identity.Verifier

	profiles   ProfileFetcher
	history    history.Store
	metrics    *metrics.Collector
	limiter    *ratelimiter.Bucket
	extractors []identity.TokenExtractor
	checks     []httpserver.Check
	origins    map[string]struct{}

	view           gate.View
	loadingTimeout time.Duration
	readyTimeout   time.Duration
	historyLimit   int
	log            *slog.Logger
}

type Option func(*Gateway)

func WithProfiles(p ProfileFetcher) Option {
	return func(g *Gateway) { g.profiles = p }
}

func WithHistory(s history.Store) Option {
	return func(g *Gateway) { g.history = s }
}

// WithMetrics records request metrics and gate decisions and serves /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(g *Gateway) { g.metrics = c }
}

// WithRateLimiter throttles per-user actions that reach the plan API or the
// billing provider: sync, checkout and cancel.
func WithRateLimiter(b *ratelimiter.Bucket) Option {
	return func(g *Gateway) { g.limiter = b }
}

// WithTokenExtractors sets where session tokens are read from. Defaults to
// the Authorization bearer header.
func WithTokenExtractors(ex ...identity.TokenExtractor) Option {
	return func(g *Gateway) { g.extractors = append(g.extractors, ex...) }
}

// WithTrustedOrigins lists the origins, besides the gateway's own, whose
// pages may send state-changing API requests, e.g. "https://app.example.com".
func WithTrustedOrigins(origins ...string) Option {
	return func(g *Gateway) {
		for _, o := range origins {
			if o = normalizeOrigin(o); o != "" {
				g.origins[o] = struct{}{}
			}
		}
	}
}

// WithHealthChecks adds readiness probes served on /readyz.
func WithHealthChecks(checks ...httpserver.Check) Option {
	return func(g *Gateway) { g.checks = append(g.checks, checks...) }
}

// WithView sets the links and copy shared by every gate panel.
func WithView(v gate.View) Option {
	return func(g *Gateway) { g.view = v }
}

func WithLoadingTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.loadingTimeout = d
		}
	}
}

func WithHistoryLimit(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.historyLimit = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

// New creates the gateway. It panics if a required dependency is nil.
func New(evaluator Evaluator, sessions *subsync.Manager, billingSvc *billing.Service, verifier *identity.Verifier, opts ...Option) *Gateway {
	switch {
	case evaluator == nil:
		panic("gateway: evaluator is required")
	case sessions == nil:
		panic("gateway: subscription manager is required")
	case billingSvc == nil:
		panic("gateway: billing service is required")
	case verifier == nil:
		panic("gateway: identity verifier is required")
	}

	g := &Gateway{
		evaluator:    evaluator,
		sessions:     sessions,
		billing:      billingSvc,
		verifier:     verifier,
		readyTimeout: defaultReadyTimeout,
		historyLimit: defaultHistoryLimit,
		origins:      make(map[string]struct{}),
		log:          logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logger.Component("gateway"))
	return g
}

// NewFromConfig creates a gateway whose gate links and timeouts come from cfg.
func NewFromConfig(cfg Config, evaluator Evaluator, sessions *subsync.Manager, billingSvc *billing.Service, verifier *identity.Verifier, opts ...Option) *Gateway {
	base := []Option{
		WithView(gate.View{
			SignInURL:   cfg.SignInURL,
			EditInfoURL: cfg.EditInfoURL,
			CheckoutURL: cfg.CheckoutURL,
		}),
		WithLoadingTimeout(cfg.LoadingTimeout),
		WithHistoryLimit(cfg.HistoryLimit),
		WithTrustedOrigins(cfg.TrustedOrigins...),
	}
	g := New(evaluator, sessions, billingSvc, verifier, append(base, opts...)...)
	if cfg.ReadyTimeout > 0 {
		g.readyTimeout = cfg.ReadyTimeout
	}
	return g
}

// Router returns the HTTP handler serving every gateway route.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	if g.metrics != nil {
		r.Use(g.metrics.Middleware)
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(g.log, g.readyTimeout, g.checks...))
	if g.metrics != nil {
		r.Method(http.MethodGet, "/metrics", g.metrics.Handler())
	}
	r.Post("/webhooks/billing", g.handle(g.webhook))

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(g.verifier, g.log, g.extractors...))
		r.Use(g.attachSession)

		r.Get("/gate", g.handle(g.gatePanel))
		r.Get("/gate/{feature}", g.handle(g.gatePanel))
		r.Get("/checkout/return", g.handle(g.checkoutReturn))

		r.Route("/api", func(r chi.Router) {
			r.Use(identity.RequireSession)
			r.Use(g.sameOrigin)

			r.Get("/access", g.handle(g.accessCheck))
			r.Get("/access/{feature}", g.handle(g.accessCheck))

			r.Get("/subscription", g.handle(g.subscriptionSnapshot))
			r.Get("/subscription/events", g.subscriptionEvents)
			r.Get("/subscription/history", g.handle(g.subscriptionHistory))
			r.Get("/profile", g.handle(g.profile))
			r.Post("/session/end", g.handle(g.endSession))

			r.Group(func(r chi.Router) {
				if g.limiter != nil {
					r.Use(ratelimiter.Middleware(g.limiter, ratelimiter.Composite(userKey, ratelimiter.Route()), g.log))
				}
				r.Post("/subscription/sync", g.handle(g.subscriptionSync))
				r.Post("/subscription/cancel", g.handle(g.cancel))
				r.Post("/checkout", g.handle(g.checkout))
			})
		})
	})
	return r
}
