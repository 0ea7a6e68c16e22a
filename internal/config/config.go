// Package config loads relay settings from defaults, an optional config file
// and CHATRELAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment variables read by Load.
const EnvPrefix = "CHATRELAY"

// Config holds every runtime setting of the relay.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	History   HistoryConfig   `mapstructure:"history"`
	Shutdown  ShutdownConfig  `mapstructure:"shutdown"`
}

// ServerConfig configures the TCP chat listener.
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	MaxFrameSize  int    `mapstructure:"max_frame_size"`
	SendQueueSize int    `mapstructure:"send_queue_size"`
}

// HTTPConfig configures the listener serving health, metrics and the
// WebSocket gateway. An empty Addr disables it.
type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig defines the per-connection token bucket. A Burst of zero
// disables limiting.
type RateLimitConfig struct {
	Burst          int           `mapstructure:"burst"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
}

// HistoryConfig bounds the in-memory message history; zero keeps everything.
type HistoryConfig struct {
	Limit int `mapstructure:"limit"`
}

// ShutdownConfig bounds how long a graceful shutdown may take.
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration into v. path may be empty, in which case only
// defaults and the environment are used.
func Load(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config file error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Validate rejects settings the relay cannot run with.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	if c.Server.MaxFrameSize < 64 {
		return errors.New("server.max_frame_size must be at least 64 bytes")
	}
	if c.Server.SendQueueSize < 1 {
		return errors.New("server.send_queue_size must be positive")
	}
	if c.RateLimit.Burst < 0 {
		return errors.New("rate_limit.burst must not be negative")
	}
	if c.RateLimit.Burst > 0 && c.RateLimit.RefillInterval <= 0 {
		return errors.New("rate_limit.refill_interval must be positive when rate limiting is enabled")
	}
	if c.History.Limit < 0 {
		return errors.New("history.limit must not be negative")
	}
	if c.Shutdown.Timeout <= 0 {
		return errors.New("shutdown.timeout must be positive")
	}
	return nil
}

type tomlDocument struct {
	Server struct {
		Addr          string `toml:"addr"`
		MaxFrameSize  int    `toml:"max_frame_size"`
		SendQueueSize int    `toml:"send_queue_size"`
	} `toml:"server"`
	HTTP struct {
		Addr           string   `toml:"addr"`
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"http"`
	RateLimit struct {
		Burst          int    `toml:"burst"`
		RefillInterval string `toml:"refill_interval"`
	} `toml:"rate_limit"`
	History struct {
		Limit int `toml:"limit"`
	} `toml:"history"`
	Shutdown struct {
		Timeout string `toml:"timeout"`
	} `toml:"shutdown"`
}

// TOML renders c as a config file that Load accepts.
func (c Config) TOML() ([]byte, error) {
	var doc tomlDocument
	doc.Server.Addr = c.Server.Addr
	doc.Server.MaxFrameSize = c.Server.MaxFrameSize
	doc.Server.SendQueueSize = c.Server.SendQueueSize
	doc.HTTP.Addr = c.HTTP.Addr
	doc.HTTP.AllowedOrigins = append([]string{}, c.HTTP.AllowedOrigins...)
	doc.RateLimit.Burst = c.RateLimit.Burst
	doc.RateLimit.RefillInterval = c.RateLimit.RefillInterval.String()
	doc.History.Limit = c.History.Limit
	doc.Shutdown.Timeout = c.Shutdown.Timeout.String()

	out, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}
