package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// metaUserID is the metadata key that carries the identity provider user id.
const metaUserID = "user_id"

// StripeProvider implements Provider with Stripe Checkout.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates a Stripe provider. A non-empty BaseURL points
// the client at another API host.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, ErrMissingWebhookSecret
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:    cleanhttp.DefaultPooledClient(),
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return &StripeProvider{api: api, webhookSecret: cfg.WebhookSecret}, nil
}

// CreateCheckoutSession creates a subscription-mode Checkout Session.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}
	if req.UserID == "" {
		return nil, ErrMissingUser
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(SuccessURL(req.SuccessURL, "{CHECKOUT_SESSION_ID}")),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(req.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{metaUserID: req.UserID},
		},
	}
	params.Context = ctx
	params.AddMetadata(metaUserID, req.UserID)

	switch {
	case req.CustomerRef != "":
		params.Customer = stripe.String(req.CustomerRef)
	case req.Email != "":
		params.CustomerEmail = stripe.String(req.Email)
	}
	if req.TrialPeriodDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(req.TrialPeriodDays)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Join(ErrCheckoutFailed, err)
	}
	if s.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	cs := &CheckoutSession{ID: s.ID, URL: s.URL}
	if s.ExpiresAt > 0 {
		cs.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	}
	return cs, nil
}

// CancelAtPeriodEnd sets cancel_at_period_end on the subscription.
func (p *StripeProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionRef string) error {
	if subscriptionRef == "" {
		return ErrMissingSubscription
	}
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx

	if _, err := p.api.Subscriptions.Update(subscriptionRef, params); err != nil {
		return errors.Join(ErrCancelFailed, err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and normalises the event.
func (p *StripeProvider) ParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}

	ev := &WebhookEvent{
		Type:          mapStripeEventType(string(event.Type)),
		ProviderEvent: string(event.Type),
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("parse checkout session: %w", err))
		}
		ev.UserID = s.ClientReferenceID
		if ev.UserID == "" {
			ev.UserID = s.Metadata[metaUserID]
		}
		if s.Customer != nil {
			ev.CustomerRef = s.Customer.ID
		}
		if s.Subscription != nil {
			ev.SubscriptionRef = s.Subscription.ID
		}

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCancelled:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("parse subscription: %w", err))
		}
		ev.UserID = sub.Metadata[metaUserID]
		ev.SubscriptionRef = sub.ID
		ev.Status = string(sub.Status)
		if sub.Customer != nil {
			ev.CustomerRef = sub.Customer.ID
		}

	case EventPaymentSucceeded, EventPaymentFailed:
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, errors.Join(ErrInvalidWebhook, fmt.Errorf("parse invoice: %w", err))
		}
		ev.CustomerRef = inv.Customer
		if d := inv.Parent.SubscriptionDetails; d != nil {
			ev.SubscriptionRef = d.Subscription
			ev.UserID = d.Metadata[metaUserID]
		}
	}

	return ev, nil
}

// stripeInvoice holds the invoice fields read from webhooks. Subscription
// metadata is copied onto the invoice under parent.subscription_details.
type stripeInvoice struct {
	Customer string `json:"customer"`
	Parent   struct {
		SubscriptionDetails *struct {
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func mapStripeEventType(t string) EventType {
	switch t {
	case "checkout.session.completed":
		return EventCheckoutCompleted
	case "customer.subscription.created":
		return EventSubscriptionCreated
	case "customer.subscription.updated", "customer.subscription.paused", "customer.subscription.resumed":
		return EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventSubscriptionCancelled
	case "invoice.paid", "invoice.payment_succeeded":
		return EventPaymentSucceeded
	case "invoice.payment_failed":
		return EventPaymentFailed
	default:
		return EventUnknown
	}
}
