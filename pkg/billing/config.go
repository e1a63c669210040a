package billing

import "time"

// Config holds billing settings. Provider selects "stripe" or "paddle".
type Config struct {
	Provider        string        `env:"BILLING_PROVIDER" envDefault:"stripe"`
	PriceID         string        `env:"BILLING_PRICE_ID"`
	TrialPeriodDays int64         `env:"BILLING_TRIAL_DAYS" envDefault:"0"`
	SuccessURL      string        `env:"BILLING_SUCCESS_URL" envDefault:"http://localhost:8080/checkout/return"`
	CancelURL       string        `env:"BILLING_CANCEL_URL" envDefault:"http://localhost:8080/dashboard"`
	DashboardURL    string        `env:"BILLING_DASHBOARD_URL" envDefault:"/dashboard"`
	ConfirmTimeout  time.Duration `env:"BILLING_CONFIRM_TIMEOUT" envDefault:"5s"`
	ConfirmInterval time.Duration `env:"BILLING_CONFIRM_INTERVAL" envDefault:"500ms"`

	Stripe StripeConfig
	Paddle PaddleConfig
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	BaseURL       string `env:"STRIPE_API_URL"`
}

type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// NewProvider creates the provider selected by cfg.Provider.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "stripe", "":
		return NewStripeProvider(cfg.Stripe)
	case "paddle":
		return NewPaddleProvider(cfg.Paddle)
	default:
		return nil, ErrUnknownProvider
	}
}
