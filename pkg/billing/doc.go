// Package billing creates checkout sessions, cancels subscriptions and
// verifies provider webhooks.
//
// Two providers are available: StripeProvider (Stripe Checkout) and
// PaddleProvider (Paddle Billing). NewProvider picks one from Config.
//
// The checkout success URL carries success=true&session_id=<id>. When the
// user lands back on it, ParseReturn extracts the session id and
// ConfirmCheckout re-checks the subscription until the upgrade is observed or
// a short timeout elapses. The user is redirected to the dashboard either way.
//
// Webhooks do not change any state here. Service.HandleWebhook verifies them
// and nudges the user's sessions, which then fetch the new record from the
// identity provider.
package billing
