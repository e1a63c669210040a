package planapi

import (
	"time"

	"github.com/dmitrymomot/accessgate/pkg/environment"
)

// Config configures the Plan API client.
type Config struct {
	Endpoints environment.Endpoints `envPrefix:"PLAN_API_URL_"`
	Timeout   time.Duration         `env:"PLAN_API_TIMEOUT" envDefault:"10s"`
}
