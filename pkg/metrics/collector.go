package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/accessgate/pkg/access"
	"github.com/dmitrymomot/accessgate/pkg/subsync"
)

const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeInvalid = "invalid"
)

// Collector holds the service's Prometheus metrics in its own registry.
// It plugs into the evaluator, the sync manager, the gate and billing as
// their observer.
type Collector struct {
	registry *prometheus.Registry

	AccessChecks        *prometheus.CounterVec
	GateDecisions       *prometheus.CounterVec
	Polls               *prometheus.CounterVec
	StatusChanges       *prometheus.CounterVec
	Checkouts           *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	_ access.Observer      = (*Collector)(nil)
	_ subsync.PollObserver = (*Collector)(nil)
)

type Option func(*options)

type options struct {
	namespace string
	sessions  func() float64
	runtime   bool
}

// WithNamespace prefixes every metric name. Defaults to "accessgate".
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithSessionGauge exports fn as the number of sessions with an active syncer.
func WithSessionGauge(fn func() float64) Option {
	return func(o *options) { o.sessions = fn }
}

// WithRuntimeMetrics adds the Go runtime and process collectors.
func WithRuntimeMetrics() Option {
	return func(o *options) { o.runtime = true }
}

// New creates a collector with a fresh registry.
func New(opts ...Option) *Collector {
	o := options{namespace: "accessgate"}
	for _, opt := range opts {
		opt(&o)
	}
	ns := o.namespace
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		AccessChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "access_checks_total",
			Help:      "Feature access checks by feature, reason and outcome",
		}, []string{"feature", "reason", "outcome"}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "gate_decisions_total",
			Help:      "Resolved gate decisions",
		}, []string{"decision"}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "subscription_checks_total",
			Help:      "Subscription checks by trigger and outcome",
		}, []string{"source", "outcome"}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "subscription_status_changes_total",
			Help:      "Detected subscription status changes by category",
		}, []string{"category", "reload"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "checkout_sessions_total",
			Help:      "Checkout session creations by outcome",
		}, []string{"outcome"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.AccessChecks,
		c.GateDecisions,
		c.Polls,
		c.StatusChanges,
		c.Checkouts,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
	)
	if o.sessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "active_sessions",
			Help:      "Sessions with a running subscription syncer",
		}, o.sessions))
	}
	if o.runtime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// AccessChecked counts a completed access check. An empty featureID is the
// coarse premium check.
func (c *Collector) AccessChecked(featureID string, res access.Result, err error) {
	if featureID == "" {
		featureID = "premium"
	}
	c.AccessChecks.WithLabelValues(featureID, string(res.Reason), outcome(err)).Inc()
}

// GateResolved counts a gate decision.
func (c *Collector) GateResolved(decision string) {
	c.GateDecisions.WithLabelValues(decision).Inc()
}

// PollCompleted counts a subscription check. Records rejected as invalid
// are counted apart from fetch failures.
func (c *Collector) PollCompleted(src subsync.Source, _ bool, err error) {
	result := outcome(err)
	if errors.Is(err, subsync.ErrInvalidRecord) {
		result = outcomeInvalid
	}
	c.Polls.WithLabelValues(string(src), result).Inc()
}

// ChangeObserved counts a status change. It has the signature of subsync.Hook.
func (c *Collector) ChangeObserved(_ context.Context, ch subsync.Change) {
	c.StatusChanges.WithLabelValues(string(ch.Category), strconv.FormatBool(ch.ReloadRequired)).Inc()
}

// CheckoutCreated counts a checkout session attempt.
func (c *Collector) CheckoutCreated(err error) {
	c.Checkouts.WithLabelValues(outcome(err)).Inc()
}

// Middleware records request counts and latency by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func outcome(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeOK
}
