package gateway

import "time"

type Config struct {
	SignInURL      string        `env:"GATE_SIGN_IN_URL" envDefault:"/sign-in"`
	EditInfoURL    string        `env:"GATE_EDIT_INFO_URL" envDefault:"/edit-info"`
	CheckoutURL    string        `env:"GATE_CHECKOUT_URL" envDefault:"/api/checkout"`
	LoadingTimeout time.Duration `env:"GATE_LOADING_TIMEOUT" envDefault:"10s"`
	ReadyTimeout   time.Duration `env:"GATE_READY_TIMEOUT" envDefault:"2s"`
	HistoryLimit   int           `env:"GATE_HISTORY_LIMIT" envDefault:"20"`
	TrustedOrigins []string      `env:"GATE_TRUSTED_ORIGINS" envSeparator:","`
}
