package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrymomot/accessgate/pkg/billing"
	"github.com/dmitrymomot/accessgate/pkg/logger"
)

type checkoutForm struct {
	PriceID string `json:"priceId"`
	Feature string `json:"feature"`
}

// bindCheckout accepts both the JSON body of API clients and the form posted
// by the upgrade panel.
func bindCheckout(r *http.Request) (checkoutForm, error) {
	var f checkoutForm
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return f, errors.Join(ErrInvalidRequestBody, err)
		}
		return f, nil
	}
	if err := r.ParseForm(); err != nil {
		return f, errors.Join(ErrInvalidRequestBody, err)
	}
	f.PriceID = r.PostFormValue("priceId")
	f.Feature = r.PostFormValue("feature")
	return f, nil
}

// checkout opens a provider checkout session. Failures are returned to the
// caller as 502 without a retry.
func (g *Gateway) checkout(r *http.Request) Response {
	form, err := bindCheckout(r)
	if err != nil {
		return JSONError(http.StatusBadRequest, "invalid_request", err.Error())
	}
	sess, _ := sessionFrom(r)

	req := billing.CheckoutRequest{
		PriceID: form.PriceID,
		UserID:  sess.UserID,
	}
	if s, _, ok := g.syncerFor(r); ok {
		req.CustomerRef = s.Cache().Load().Record.CustomerRef
	}

	session, err := g.billing.Checkout(r.Context(), req)
	if err != nil {
		return JSONError(http.StatusBadGateway, "checkout_failed", err.Error())
	}
	if isDataStar(r) {
		return Redirect(session.URL)
	}
	return JSON(map[string]any{"id": session.ID, "url": session.URL})
}

// checkoutReturn confirms a completed checkout and always lands on the
// dashboard, whatever the confirmation observed.
func (g *Gateway) checkoutReturn(r *http.Request) Response {
	dashboard := RedirectWithCode(g.billing.DashboardURL(), http.StatusFound)

	sessionID, ok := billing.ParseReturn(r.URL.Query())
	if !ok {
		return dashboard
	}
	s, sess, ok := g.syncerFor(r)
	if !ok {
		g.log.WarnContext(r.Context(), "checkout return without subscription sync",
			logger.SessionID(sess.SessionID),
		)
		return dashboard
	}

	res := g.billing.Confirm(r.Context(), s, sessionID)
	if res.Changed {
		g.evaluator.Invalidate(sess.UserID)
	}
	return dashboard
}

// cancel schedules the subscription to end with the current period.
func (g *Gateway) cancel(r *http.Request) Response {
	s, sess, ok := g.syncerFor(r)
	if !ok {
		return JSONError(http.StatusServiceUnavailable, "sync_unavailable", ErrNoSyncer.Error())
	}
	rec := s.Cache().Load().Record
	if rec.SubscriptionRef == "" {
		return JSONError(http.StatusConflict, "no_subscription", ErrNoSubscription.Error())
	}

	if err := g.billing.Cancel(r.Context(), sess.UserID, rec.SubscriptionRef); err != nil {
		return JSONError(http.StatusBadGateway, "cancel_failed", err.Error())
	}
	return JSON(map[string]any{"cancelAtPeriodEnd": true})
}

// webhook verifies a billing provider event and nudges the affected user.
func (g *Gateway) webhook(r *http.Request) Response {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		signature = r.Header.Get("Paddle-Signature")
	}
	if signature == "" {
		return JSONError(http.StatusBadRequest, "invalid_webhook", ErrMissingSignature.Error())
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return JSONError(http.StatusBadRequest, "invalid_webhook", err.Error())
	}

	ev, err := g.billing.HandleWebhook(r.Context(), payload, signature)
	if err != nil {
		return JSONError(http.StatusBadRequest, "invalid_webhook", err.Error())
	}
	return JSON(map[string]any{"received": true, "type": ev.Type})
}
