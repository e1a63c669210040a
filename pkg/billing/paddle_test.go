package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accessgate/pkg/billing"
)

const paddleWebhookSecret = "pdl_ntfset_test"

func paddleSignature(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:%s", ts, payload)
	return fmt.Sprintf("ts=%d;h1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestNewPaddleProvider(t *testing.T) {
	t.Parallel()

	_, err := billing.NewPaddleProvider(billing.PaddleConfig{WebhookSecret: "x"})
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)

	_, err = billing.NewPaddleProvider(billing.PaddleConfig{APIKey: "k", WebhookSecret: "x", Environment: "moon"})
	assert.Error(t, err)

	_, err = billing.NewPaddleProvider(billing.PaddleConfig{APIKey: "k", WebhookSecret: "x", Environment: "sandbox"})
	assert.NoError(t, err)
}

func TestPaddleProvider_ParseWebhook(t *testing.T) {
	t.Parallel()

	p, err := billing.NewPaddleProvider(billing.PaddleConfig{APIKey: "k", WebhookSecret: paddleWebhookSecret})
	require.NoError(t, err)

	t.Run("subscription canceled", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"event_id":"evt_1","event_type":"subscription.canceled","data":{"id":"sub_1","status":"canceled","customer_id":"ctm_1","custom_data":{"user_id":"user_1"}}}`)
		ev, err := p.ParseWebhook(context.Background(), payload, paddleSignature(payload, paddleWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventSubscriptionCancelled, ev.Type)
		assert.Equal(t, "user_1", ev.UserID)
		assert.Equal(t, "sub_1", ev.SubscriptionRef)
		assert.Equal(t, "ctm_1", ev.CustomerRef)
	})

	t.Run("transaction completed", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"event_id":"evt_2","event_type":"transaction.completed","data":{"id":"txn_1","status":"completed","subscription_id":"sub_2","custom_data":{"user_id":"user_2"}}}`)
		ev, err := p.ParseWebhook(context.Background(), payload, paddleSignature(payload, paddleWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventCheckoutCompleted, ev.Type)
		assert.Equal(t, "sub_2", ev.SubscriptionRef)
		assert.Equal(t, "user_2", ev.UserID)
	})

	t.Run("rejects a bad signature", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"event_type":"subscription.updated","data":{}}`)
		_, err := p.ParseWebhook(context.Background(), payload, paddleSignature(payload, "other"))
		assert.ErrorIs(t, err, billing.ErrInvalidWebhook)
	})
}
