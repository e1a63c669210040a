package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// paddleCheckoutTTL is how long a Paddle checkout link stays usable.
const paddleCheckoutTTL = 24 * time.Hour

// PaddleProvider implements Provider with Paddle Billing transactions.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle provider for the configured environment.
func NewPaddleProvider(cfg PaddleConfig, opts ...paddle.Option) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey, opts...)
	case "production", "":
		client, err = paddle.New(cfg.APIKey, opts...)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
	}, nil
}

// CreateCheckoutSession creates a transaction and returns its checkout link.
// The transaction id doubles as the checkout session id.
func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}
	if req.UserID == "" {
		return nil, ErrMissingUser
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})
	txReq := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{metaUserID: req.UserID},
	}
	if req.CustomerRef != "" {
		txReq.CustomerID = paddle.PtrTo(req.CustomerRef)
	}
	if req.Email != "" {
		// Paddle attaches emails to customers, not transactions.
		txReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(req.SuccessURL)}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, errors.Join(ErrCheckoutFailed, err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{
		ID:        tx.ID,
		URL:       *tx.Checkout.URL,
		ExpiresAt: time.Now().Add(paddleCheckoutTTL),
	}, nil
}

// CancelAtPeriodEnd schedules cancellation for the next billing period.
func (p *PaddleProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionRef string) error {
	if subscriptionRef == "" {
		return ErrMissingSubscription
	}
	_, err := p.client.SubscriptionsClient.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: subscriptionRef,
		EffectiveFrom:  paddle.PtrTo(paddle.EffectiveFromNextBillingPeriod),
	})
	if err != nil {
		return errors.Join(ErrCancelFailed, err)
	}
	return nil
}

// ParseWebhook verifies the Paddle-Signature header and normalises the event.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}
	if !valid {
		return nil, errors.Join(ErrInvalidWebhook, errors.New("signature mismatch"))
	}

	var raw struct {
		EventType string `json:"event_type"`
		Data      struct {
			ID             string            `json:"id"`
			Status         string            `json:"status"`
			CustomerID     string            `json:"customer_id"`
			SubscriptionID string            `json:"subscription_id"`
			CustomData     map[string]string `json:"custom_data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("parse payload: %w", err))
	}

	ev := &WebhookEvent{
		Type:          mapPaddleEventType(raw.EventType),
		ProviderEvent: raw.EventType,
		UserID:        raw.Data.CustomData[metaUserID],
		CustomerRef:   raw.Data.CustomerID,
		Status:        raw.Data.Status,
	}
	switch {
	case strings.HasPrefix(raw.EventType, "subscription."):
		ev.SubscriptionRef = raw.Data.ID
	case raw.Data.SubscriptionID != "":
		ev.SubscriptionRef = raw.Data.SubscriptionID
	}
	return ev, nil
}

func mapPaddleEventType(t string) EventType {
	switch t {
	case "transaction.completed":
		return EventCheckoutCompleted
	case "subscription.created", "subscription.activated":
		return EventSubscriptionCreated
	case "subscription.updated", "subscription.resumed", "subscription.past_due", "subscription.trialing":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionCancelled
	case "transaction.paid":
		return EventPaymentSucceeded
	case "transaction.payment_failed":
		return EventPaymentFailed
	default:
		return EventUnknown
	}
}
