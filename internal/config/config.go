// Package config loads server configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full server configuration.
type Config struct {
	Server  ServerConfig
	Engine  EngineConfig
	Handoff HandoffConfig
	Upload  UploadConfig
	Log     LogConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// EngineConfig holds the worker process settings.
type EngineConfig struct {
	Path    string
	Timeout time.Duration
}

// HandoffConfig holds the result store settings.
type HandoffConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// UploadConfig bounds incoming spreadsheet uploads.
type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Dir   string
	Level string
}

// Load reads configuration from file and env. Env var overrides use
// prefix SAISTATS_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.addr", ":8090")
	v.SetDefault("engine.path", "saistats-engine")
	v.SetDefault("engine.timeout", "30s")
	v.SetDefault("handoff.ttl", "5m")
	v.SetDefault("handoff.sweep_interval", "1m")
	v.SetDefault("upload.max_bytes", 32<<20)
	v.SetDefault("log.dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "saistats"))
	v.SetDefault("log.level", "info")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("SAISTATS_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "saistats"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SAISTATS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
