package identity

import "time"

type Config struct {
	APIURL        string        `env:"IDENTITY_API_URL" envDefault:"http://localhost:4000"`
	APIKey        string        `env:"IDENTITY_API_KEY"`
	SigningSecret string        `env:"IDENTITY_JWT_SECRET,required"`
	Issuer        string        `env:"IDENTITY_JWT_ISSUER"`
	CookieName    string        `env:"IDENTITY_SESSION_COOKIE" envDefault:"__session"`
	Timeout       time.Duration `env:"IDENTITY_API_TIMEOUT" envDefault:"10s"`
}
