package billing

import (
	"context"
	"time"
)

// Provider abstracts the payment provider. Checkout happens on the provider's
// hosted page; the application only creates sessions, cancels and listens to
// webhooks.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout session.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// CancelAtPeriodEnd schedules the subscription to end with the current
	// billing period. Access continues until then.
	CancelAtPeriodEnd(ctx context.Context, subscriptionRef string) error

	// ParseWebhook verifies the signature and normalises the event.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutRequest contains data needed to create a checkout session.
type CheckoutRequest struct {
	PriceID         string // provider price identifier
	CustomerRef     string // existing provider customer, if any
	UserID          string // identity provider user id, echoed back in webhooks
	Email           string
	SuccessURL      string // see SuccessURL for the expected query
	CancelURL       string
	TrialPeriodDays int64
}

// CheckoutSession is a hosted checkout the user is redirected to.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// WebhookEvent is a provider event normalised to the fields the application uses.
type WebhookEvent struct {
	Type            EventType
	ProviderEvent   string // original provider event name
	UserID          string // from metadata or client reference
	CustomerRef     string
	SubscriptionRef string
	Status          string // provider subscription status, if present
}

// EventType is the normalised billing event type.
type EventType string

const (
	EventCheckoutCompleted     EventType = "checkout_completed"
	EventSubscriptionCreated   EventType = "subscription_created"
	EventSubscriptionUpdated   EventType = "subscription_updated"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventPaymentSucceeded      EventType = "payment_succeeded"
	EventPaymentFailed         EventType = "payment_failed"
	EventUnknown               EventType = "unknown"
)

// AffectsSubscription reports whether the event may change a user's subscription status.
func (t EventType) AffectsSubscription() bool {
	return t != EventUnknown
}
