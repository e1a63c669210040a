package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accessgate/pkg/access"
	"github.com/dmitrymomot/accessgate/pkg/metrics"
	"github.com/dmitrymomot/accessgate/pkg/subsync"
)

func TestCollector_Observers(t *testing.T) {
	t.Parallel()

	c := metrics.New()

	c.AccessChecked("vpn", access.Denied(access.ReasonFeatureNotIncluded), nil)
	c.AccessChecked("", access.Denied(access.ReasonNoSubscription), errors.New("timeout"))
	c.AccessChecked("", access.Allowed(), nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AccessChecks.WithLabelValues("vpn", "feature-not-included", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AccessChecks.WithLabelValues("premium", "no-subscription", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AccessChecks.WithLabelValues("premium", "allowed", "ok")))

	c.PollCompleted(subsync.SourcePoll, false, nil)
	c.PollCompleted(subsync.SourcePoll, false, errors.New("down"))
	c.PollCompleted(subsync.SourceManual, true, nil)
	c.PollCompleted(subsync.SourcePoll, false, errors.Join(subsync.ErrInvalidRecord, errors.New("lapsed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Polls.WithLabelValues("poll", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Polls.WithLabelValues("poll", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Polls.WithLabelValues("manual", "ok")))

	c.ChangeObserved(context.Background(), subsync.Change{Category: subsync.CategoryUpgradeSuccess, ReloadRequired: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StatusChanges.WithLabelValues("upgrade-success", "true")))

	c.CheckoutCreated(nil)
	c.CheckoutCreated(errors.New("declined"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Checkouts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Checkouts.WithLabelValues("error")))

	c.GateResolved("granted")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GateDecisions.WithLabelValues("granted")))
}

func TestCollector_HTTP(t *testing.T) {
	t.Parallel()

	c := metrics.New(metrics.WithSessionGauge(func() float64 { return 3 }))

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/gate/{feature}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", c.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gate/vpn", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequestsTotal.WithLabelValues("GET", "/gate/{feature}", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "accessgate_active_sessions 3")
	assert.Contains(t, rec.Body.String(), "accessgate_http_requests_total")
}
