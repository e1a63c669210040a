package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accessgate/pkg/billing"
)

const stripeWebhookSecret = "whsec_test"

func stripeSignature(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newStripe(t *testing.T, h http.HandlerFunc) *billing.StripeProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p, err := billing.NewStripeProvider(billing.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: stripeWebhookSecret,
		BaseURL:       srv.URL,
	})
	require.NoError(t, err)
	return p
}

func TestNewStripeProvider(t *testing.T) {
	t.Parallel()

	_, err := billing.NewStripeProvider(billing.StripeConfig{WebhookSecret: "x"})
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)
	_, err = billing.NewStripeProvider(billing.StripeConfig{SecretKey: "x"})
	assert.ErrorIs(t, err, billing.ErrMissingWebhookSecret)
}

func TestStripeProvider_CreateCheckoutSession(t *testing.T) {
	t.Parallel()

	t.Run("creates a subscription session", func(t *testing.T) {
		t.Parallel()
		p := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "subscription", r.PostForm.Get("mode"))
			assert.Equal(t, "price_premium", r.PostForm.Get("line_items[0][price]"))
			assert.Equal(t, "user_1", r.PostForm.Get("client_reference_id"))
			assert.Equal(t, "7", r.PostForm.Get("subscription_data[trial_period_days]"))
			assert.Equal(t,
				"https://app.example.com/checkout/return?success=true&session_id={CHECKOUT_SESSION_ID}",
				r.PostForm.Get("success_url"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","expires_at":1893456000}`))
		})

		s, err := p.CreateCheckoutSession(context.Background(), billing.CheckoutRequest{
			PriceID:         "price_premium",
			UserID:          "user_1",
			Email:           "ada@example.com",
			SuccessURL:      "https://app.example.com/checkout/return",
			CancelURL:       "https://app.example.com/dashboard",
			TrialPeriodDays: 7,
		})
		require.NoError(t, err)
		assert.Equal(t, "cs_test_1", s.ID)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", s.URL)
		assert.Equal(t, int64(1893456000), s.ExpiresAt.Unix())
	})

	t.Run("wraps api errors", func(t *testing.T) {
		t.Parallel()
		p := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price: 'price_x'"}}`))
		})

		_, err := p.CreateCheckoutSession(context.Background(), billing.CheckoutRequest{PriceID: "price_x", UserID: "user_1"})
		assert.ErrorIs(t, err, billing.ErrCheckoutFailed)
	})

	t.Run("validates the request", func(t *testing.T) {
		t.Parallel()
		p := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		_, err := p.CreateCheckoutSession(context.Background(), billing.CheckoutRequest{UserID: "user_1"})
		assert.ErrorIs(t, err, billing.ErrMissingPriceID)
		_, err = p.CreateCheckoutSession(context.Background(), billing.CheckoutRequest{PriceID: "price_premium"})
		assert.ErrorIs(t, err, billing.ErrMissingUser)
	})
}

func TestStripeProvider_CancelAtPeriodEnd(t *testing.T) {
	t.Parallel()

	p := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/subscriptions/sub_1", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "true", r.PostForm.Get("cancel_at_period_end"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sub_1","object":"subscription","cancel_at_period_end":true}`))
	})

	require.NoError(t, p.CancelAtPeriodEnd(context.Background(), "sub_1"))
	assert.ErrorIs(t, p.CancelAtPeriodEnd(context.Background(), ""), billing.ErrMissingSubscription)
}

func TestStripeProvider_ParseWebhook(t *testing.T) {
	t.Parallel()

	p := newStripe(t, func(w http.ResponseWriter, r *http.Request) {})

	t.Run("checkout completed", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","client_reference_id":"user_1","customer":"cus_1","subscription":"sub_1"}}}`)
		ev, err := p.ParseWebhook(context.Background(), payload, stripeSignature(payload, stripeWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventCheckoutCompleted, ev.Type)
		assert.Equal(t, "user_1", ev.UserID)
		assert.Equal(t, "cus_1", ev.CustomerRef)
		assert.Equal(t, "sub_1", ev.SubscriptionRef)
	})

	t.Run("subscription updated", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"id":"evt_2","object":"event","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","object":"subscription","status":"past_due","customer":"cus_1","metadata":{"user_id":"user_1"}}}}`)
		ev, err := p.ParseWebhook(context.Background(), payload, stripeSignature(payload, stripeWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventSubscriptionUpdated, ev.Type)
		assert.Equal(t, "user_1", ev.UserID)
		assert.Equal(t, "past_due", ev.Status)
	})

	t.Run("invoice payment failed", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"id":"evt_3","object":"event","type":"invoice.payment_failed","data":{"object":{"id":"in_1","object":"invoice","customer":"cus_1","parent":{"subscription_details":{"subscription":"sub_1","metadata":{"user_id":"user_1"}}}}}}`)
		ev, err := p.ParseWebhook(context.Background(), payload, stripeSignature(payload, stripeWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventPaymentFailed, ev.Type)
		assert.Equal(t, "user_1", ev.UserID)
		assert.Equal(t, "sub_1", ev.SubscriptionRef)
	})

	t.Run("rejects a bad signature", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"id":"evt_4","object":"event","type":"invoice.paid","data":{"object":{}}}`)
		_, err := p.ParseWebhook(context.Background(), payload, stripeSignature(payload, "whsec_other"))
		assert.ErrorIs(t, err, billing.ErrInvalidWebhook)
	})
}
