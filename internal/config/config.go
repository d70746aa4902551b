package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Push      PushConfig      `mapstructure:"push" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig contains HTTP server and logging settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	StaticDir       string        `mapstructure:"static_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// CORSAllowedOrigins is empty to disable CORS handling.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig selects the storage driver and connection.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"required,oneof=sqlite pgx"`
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// PushConfig configures web push delivery. Leaving both VAPID keys empty
// disables scheduling without failing startup.
type PushConfig struct {
	VAPIDPublicKey  string        `mapstructure:"vapid_public_key" validate:"required_with=VAPIDPrivateKey"`
	VAPIDPrivateKey string        `mapstructure:"vapid_private_key" validate:"required_with=VAPIDPublicKey"`
	Subscriber      string        `mapstructure:"subscriber" validate:"required"`
	TTLSeconds      int           `mapstructure:"ttl_seconds" validate:"gte=0"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Enabled reports whether both VAPID keys are configured.
func (c PushConfig) Enabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// SchedulerConfig tunes the in-memory reminder scheduler.
type SchedulerConfig struct {
	GuardMargin     time.Duration `mapstructure:"guard_margin" validate:"gte=0"`
	DeliveryWorkers int           `mapstructure:"delivery_workers" validate:"gt=0"`
	QueueSize       int           `mapstructure:"queue_size" validate:"gt=0"`
	MaxSleep        time.Duration `mapstructure:"max_sleep" validate:"gt=0"`
}

// RateLimitConfig configures per-client limits on mutating routes.
// A zero RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}
