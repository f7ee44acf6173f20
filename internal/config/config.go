// Package config loads process configuration from the environment.
//
// Two values are mandatory — the store connection string and the
// token-signing secret — and their absence is a startup failure, not a
// runtime surprise. Everything else has a sensible default.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/avolkov/todo-atlas/internal/atlas"
)

// Config holds the externally supplied configuration.
type Config struct {
	Port         int
	LogLevel     string
	DatabaseURL  string
	JWTSecret    string
	AtlasBaseURL string
}

// Load reads configuration from environment variables:
//
//	DATABASE_URL    required — SQLite path (e.g. data/todo.db or :memory:)
//	JWT_SECRET      required — HMAC secret, at least 16 characters
//	PORT            optional — HTTP listen port (default 8080)
//	LOG_LEVEL       optional — debug/info/warn/error (default info)
//	ATLAS_BASE_URL  optional — identity provider API root
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ATLAS_BASE_URL", atlas.DefaultBaseURL)

	for _, key := range []string{"DATABASE_URL", "JWT_SECRET", "PORT", "LOG_LEVEL", "ATLAS_BASE_URL"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}

	cfg := &Config{
		Port:         v.GetInt("PORT"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		DatabaseURL:  v.GetString("DATABASE_URL"),
		JWTSecret:    v.GetString("JWT_SECRET"),
		AtlasBaseURL: v.GetString("ATLAS_BASE_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: invalid PORT %d", cfg.Port)
	}

	return cfg, nil
}
