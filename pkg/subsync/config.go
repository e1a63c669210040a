package subsync

import "time"

const (
	DefaultInterval     = 30 * time.Second
	DefaultIdleTimeout  = 15 * time.Minute
	DefaultNudgeChannel = "accessgate:subscription:nudge"
)

// Config holds subscription sync settings.
type Config struct {
	Interval     time.Duration `env:"SUBSCRIPTION_POLL_INTERVAL" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"SUBSCRIPTION_IDLE_TIMEOUT" envDefault:"15m"`
	NudgeChannel string        `env:"SUBSCRIPTION_NUDGE_CHANNEL" envDefault:"accessgate:subscription:nudge"`
	BufferSize   int           `env:"SUBSCRIPTION_EVENTS_BUFFER" envDefault:"16"`
}
