package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmitrymomot/accessgate/pkg/logger"
	"github.com/dmitrymomot/accessgate/pkg/subscription"
	"github.com/dmitrymomot/accessgate/pkg/subsync"
)

type subscriptionResponse struct {
	Status            subscription.Status `json:"status"`
	PlanID            string              `json:"planId,omitempty"`
	PeriodEnd         *time.Time          `json:"periodEnd,omitempty"`
	DaysRemaining     int                 `json:"daysRemaining"`
	CancelAtPeriodEnd bool                `json:"cancelAtPeriodEnd"`
	GracePeriod       bool                `json:"gracePeriod"`
	Known             bool                `json:"known"`
	UpdatedAt         *time.Time          `json:"updatedAt,omitempty"`
}

func snapshotResponse(snap subscription.Snapshot, now time.Time) subscriptionResponse {
	resp := subscriptionResponse{
		Status:            snap.Record.Status,
		PlanID:            snap.Record.PlanID,
		PeriodEnd:         snap.Record.PeriodEnd,
		DaysRemaining:     snap.Record.DaysRemainingAt(now),
		CancelAtPeriodEnd: snap.Record.CancelAtPeriodEnd,
		GracePeriod:       snap.Record.GracePeriod,
		Known:             snap.Known,
	}
	if snap.Known {
		at := snap.UpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}

// subscriptionSnapshot returns the session's cached record without a fetch.
func (g *Gateway) subscriptionSnapshot(r *http.Request) Response {
	s, _, ok := g.syncerFor(r)
	if !ok {
		return JSONError(http.StatusServiceUnavailable, "sync_unavailable", ErrNoSyncer.Error())
	}
	return JSON(snapshotResponse(s.Cache().Load(), time.Now()))
}

// subscriptionSync runs an on-demand check for the session.
func (g *Gateway) subscriptionSync(r *http.Request) Response {
	s, _, ok := g.syncerFor(r)
	if !ok {
		return JSONError(http.StatusServiceUnavailable, "sync_unavailable", ErrNoSyncer.Error())
	}
	changed, err := s.CheckNow(r.Context())
	if err != nil {
		return JSONError(http.StatusBadGateway, "sync_failed", err.Error())
	}
	return JSON(map[string]any{
		"changed":      changed,
		"subscription": snapshotResponse(s.Cache().Load(), time.Now()),
	})
}

// changeSignals is the datastar signal patch sent for every status change.
type changeSignals struct {
	Subscription subscriptionSignal `json:"subscription"`
}

type subscriptionSignal struct {
	Status         subscription.Status `json:"status"`
	Previous       subscription.Status `json:"previous"`
	Category       subsync.Category    `json:"category"`
	Notify         bool                `json:"notify"`
	ReloadRequired bool                `json:"reloadRequired"`
	ChangedAt      time.Time           `json:"changedAt"`
}

// subscriptionEvents streams the user's status changes as datastar signal
// patches until the client leaves or the session token expires. A change that
// needs a reload redirects the page to ?reload= (a relative path) or to the
// dashboard.
func (g *Gateway) subscriptionEvents(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := g.syncerFor(r)
	if !ok {
		_ = JSONError(http.StatusServiceUnavailable, "sync_unavailable", ErrNoSyncer.Error()).Render(w, r)
		return
	}

	release := g.sessions.Hold(sessionKey(sess))
	defer release()

	ctx := r.Context()
	if !sess.ExpiresAt.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, sess.ExpiresAt)
		defer cancel()
	}

	sub := g.sessions.Subscribe(ctx, sess.UserID)
	defer func() { _ = sub.Close() }()

	reload := reloadTarget(r.URL.Query().Get("reload"), g.billing.DashboardURL())
	sse := datastar.NewSSE(w, r)
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.Receive():
			if !ok {
				return
			}
			data, err := json.Marshal(changeSignals{Subscription: subscriptionSignal{
				Status:         c.To,
				Previous:       c.From,
				Category:       c.Category,
				Notify:         c.Category.Notify(),
				ReloadRequired: c.ReloadRequired,
				ChangedAt:      c.DetectedAt,
			}})
			if err != nil {
				g.log.ErrorContext(r.Context(), "failed to encode change signals", logger.Error(err))
				continue
			}
			if err := sse.PatchSignals(data); err != nil {
				return
			}
			if c.ReloadRequired {
				_ = sse.Redirect(reload)
				return
			}
		}
	}
}

// reloadTarget accepts only same-site relative paths.
func reloadTarget(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return fallback
	}
	if u, err := url.Parse(raw); err != nil || u.Host != "" {
		return fallback
	}
	return raw
}

// subscriptionHistory lists the user's recorded status changes, newest first.
func (g *Gateway) subscriptionHistory(r *http.Request) Response {
	if g.history == nil {
		return JSONError(http.StatusNotFound, "history_disabled", ErrHistoryDisabled.Error())
	}
	sess, _ := sessionFrom(r)

	limit := g.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	changes, err := g.history.List(r.Context(), sess.UserID, limit)
	if err != nil {
		g.log.ErrorContext(r.Context(), "failed to list subscription history", logger.UserID(sess.UserID), logger.Error(err))
		return JSONError(http.StatusInternalServerError, "history_failed", "failed to load subscription history")
	}
	if changes == nil {
		changes = []subsync.Change{}
	}
	return JSON(map[string]any{"changes": changes})
}
