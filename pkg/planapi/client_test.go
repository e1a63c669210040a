package planapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accessgate/pkg/feature"
	"github.com/dmitrymomot/accessgate/pkg/planapi"
)

func newServer(t *testing.T, h http.HandlerFunc) *planapi.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := planapi.New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := planapi.New("  ")
	assert.ErrorIs(t, err, planapi.ErrMissingBaseURL)
}

func TestClient_CurrentPlan(t *testing.T) {
	t.Parallel()

	t.Run("decodes access control", func(t *testing.T) {
		t.Parallel()
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/plans/current", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"plan": "premium",
				"accessControl": map[string]bool{
					"canAccessPremiumFeatures": true,
					"redirectToEditInfo":       false,
				},
			})
		})

		plan, err := c.CurrentPlan(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "premium", plan.Plan)
		assert.True(t, plan.AccessControl.CanAccessPremiumFeatures)
		assert.False(t, plan.AccessControl.RedirectToEditInfo)
	})

	t.Run("returns status error on non-2xx", func(t *testing.T) {
		t.Parallel()
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.CurrentPlan(context.Background(), "tok")
		require.Error(t, err)
		assert.ErrorIs(t, err, planapi.ErrUnexpectedStatus)

		var statusErr *planapi.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		t.Parallel()
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		})

		_, err := c.CurrentPlan(context.Background(), "tok")
		assert.ErrorIs(t, err, planapi.ErrDecodeResponse)
	})

	t.Run("requires a token", func(t *testing.T) {
		t.Parallel()
		c, err := planapi.New("http://127.0.0.1:1")
		require.NoError(t, err)

		_, err = c.CurrentPlan(context.Background(), "")
		assert.ErrorIs(t, err, planapi.ErrMissingToken)
	})
}

func TestClient_FeatureAccess(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plans/feature/vpn/access":
			_, _ = w.Write([]byte(`{"hasAccess":true}`))
		case "/plans/feature/dataRemoval/access":
			_, _ = w.Write([]byte(`{"hasAccess":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ok, err := c.FeatureAccess(context.Background(), "tok", feature.VPN)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.FeatureAccess(context.Background(), "tok", feature.DataRemoval)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.FeatureAccess(context.Background(), "tok", feature.LiveReports)
	assert.ErrorIs(t, err, planapi.ErrUnexpectedStatus)
}

func TestClient_Profile(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/profile":
			switch r.Header.Get("Authorization") {
			case "Bearer expired":
				w.WriteHeader(http.StatusUnauthorized)
			case "Bearer broken":
				w.WriteHeader(http.StatusInternalServerError)
			default:
				_, _ = w.Write([]byte(`{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com"}`))
			}
		case "/setup/known/profile":
			_, _ = w.Write([]byte(`{"firstName":"Setup"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	t.Run("fetches own profile", func(t *testing.T) {
		t.Parallel()
		p, err := c.Profile(context.Background(), "ok", "")
		require.NoError(t, err)
		assert.Equal(t, "Ada", p.FirstName)
		assert.False(t, p.Complete())
	})

	t.Run("fetches setup profile", func(t *testing.T) {
		t.Parallel()
		p, err := c.Profile(context.Background(), "ok", "known")
		require.NoError(t, err)
		assert.Equal(t, "Setup", p.FirstName)
	})

	t.Run("401 means session expired", func(t *testing.T) {
		t.Parallel()
		_, err := c.Profile(context.Background(), "expired", "")
		assert.ErrorIs(t, err, planapi.ErrSessionExpired)
	})

	t.Run("404 with setup token means token not found", func(t *testing.T) {
		t.Parallel()
		_, err := c.Profile(context.Background(), "ok", "missing")
		assert.ErrorIs(t, err, planapi.ErrTokenNotFound)
	})

	t.Run("other failures are retry eligible", func(t *testing.T) {
		t.Parallel()
		_, err := c.Profile(context.Background(), "broken", "")
		assert.ErrorIs(t, err, planapi.ErrProfileUnavailable)
		assert.NotErrorIs(t, err, planapi.ErrSessionExpired)
	})
}
