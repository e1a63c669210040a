package environment

// Endpoints selects a backend base URL per deployment environment.
// Override, when set, wins over the per-environment values.
type Endpoints struct {
	Development string `env:"DEVELOPMENT" envDefault:"http://localhost:4000/api"`
	Staging     string `env:"STAGING" envDefault:"https://staging-api.privacyshield.app/api"`
	Production  string `env:"PRODUCTION" envDefault:"https://api.privacyshield.app/api"`
	Override    string `env:"OVERRIDE"`
}

// For returns the base URL for env.
func (e Endpoints) For(env Environment) string {
	if e.Override != "" {
		return e.Override
	}
	switch env {
	case Production:
		return e.Production
	case Staging:
		return e.Staging
	default:
		return e.Development
	}
}
