// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv for .env files and
// github.com/caarlos0/env/v11 for struct tag parsing. Each package of the
// service declares its own Config struct; cmd/accessgate composes them into
// one struct and calls Load once at startup:
//
//	type Config struct {
//		HTTP    httpserver.Config
//		PlanAPI planapi.Config
//		Sync    subsync.Config
//	}
//
//	cfg := config.MustLoad[Config]()
//
// Nested structs are parsed recursively, so a prefix can be applied with the
// `envPrefix` tag on the field.
package config
