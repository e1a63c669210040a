// Package environment identifies the deployment environment and selects
// environment-specific backend endpoints.
//
//	env := environment.Parse(os.Getenv("APP_ENV"))
//	baseURL := cfg.PlanAPI.Endpoints.For(env)
package environment
