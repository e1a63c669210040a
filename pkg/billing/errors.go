package billing

import "errors"

var (
	ErrCheckoutFailed       = errors.New("billing: failed to create checkout session")
	ErrCancelFailed         = errors.New("billing: failed to cancel subscription")
	ErrInvalidWebhook       = errors.New("billing: invalid webhook")
	ErrMissingPriceID       = errors.New("billing: price id is required")
	ErrMissingUser          = errors.New("billing: user id is required")
	ErrMissingSubscription  = errors.New("billing: subscription reference is required")
	ErrMissingAPIKey        = errors.New("billing: api key is required")
	ErrMissingWebhookSecret = errors.New("billing: webhook secret is required")
	ErrUnknownProvider      = errors.New("billing: unknown provider")
	ErrNoCheckoutURL        = errors.New("billing: provider returned no checkout url")
)
