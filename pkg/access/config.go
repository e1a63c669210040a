package access

import "time"

type Config struct {
	CheckTimeout time.Duration `env:"ACCESS_CHECK_TIMEOUT" envDefault:"10s"`
	CacheTTL     time.Duration `env:"ACCESS_CACHE_TTL" envDefault:"5s"`
	CacheSize    int           `env:"ACCESS_CACHE_SIZE" envDefault:"1024"`
}
