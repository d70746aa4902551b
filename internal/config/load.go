package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "MINDER"

// legacyEnv maps config keys to the unprefixed variable names used by
// existing deployments.
var legacyEnv = map[string]string{
	"push.vapid_public_key":  "VAPID_PUBLIC_KEY",
	"push.vapid_private_key": "VAPID_PRIVATE_KEY",
	"server.port":            "PORT",
	"server.host":            "HOST",
}

// Load reads configuration from ./.env, an optional ./config.yaml and the
// process environment. Environment variables take precedence over the file.
func Load() (*Config, error) {
	return LoadFrom(".env", ".")
}

// LoadFrom is Load with an explicit dotenv file and config directory.
// Either may be empty to skip that source.
func LoadFrom(envFile, configDir string) (*Config, error) {
	if envFile != "" {
		// godotenv never overrides variables already present in the environment.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if configDir != "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct-tag constraints on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "file:data.sqlite")
	v.SetDefault("database.max_open_conns", 0)

	v.SetDefault("push.vapid_public_key", "")
	v.SetDefault("push.vapid_private_key", "")
	v.SetDefault("push.subscriber", "admin@example.com")
	v.SetDefault("push.ttl_seconds", 86400)
	v.SetDefault("push.timeout", "10s")

	v.SetDefault("scheduler.guard_margin", "1s")
	v.SetDefault("scheduler.delivery_workers", 4)
	v.SetDefault("scheduler.queue_size", 256)
	v.SetDefault("scheduler.max_sleep", "60s")

	v.SetDefault("rate_limit.requests_per_second", 5)
	v.SetDefault("rate_limit.burst", 10)
}
