// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type (
	// Properties is the full server configuration, parsed from environment
	// variables. Every knob has a default that works for local development
	// against the in-memory store; only the hosted-store and OAuth groups
	// need real values in production.
	Properties struct {
		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

		Server  ServerProperties  `envPrefix:"HTTP_"`
		Content ContentProperties `envPrefix:"CONTENT_"`
		Auth    AuthProperties    `envPrefix:"AUTH_"`
		DB      DBProperties      `envPrefix:"DB_"`
	}

	ServerProperties struct {
		Port            string        `env:"PORT" envDefault:"8080"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}

	// ContentProperties points at the hosted document store. When BaseURL is
	// empty the server falls back to its in-memory store.
	ContentProperties struct {
		BaseURL string `env:"BASE_URL"`
		Dataset string `env:"DATASET" envDefault:"production"`
		Token   string `env:"TOKEN"`
	}

	AuthProperties struct {
		JWTSecret      string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
		TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
		GoogleID       string        `env:"GOOGLE_CLIENT_ID"`
		GoogleSecret   string        `env:"GOOGLE_CLIENT_SECRET"`
		GoogleRedirect string        `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/auth/google/callback"`
	}

	DBProperties struct {
		Path string `env:"PATH" envDefault:"pinitup.db"`
	}
)

// Load parses the environment into Properties.
func Load() (*Properties, error) {
	p := &Properties{}
	if err := env.Parse(p); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	return p, nil
}

// SlogLevel maps the LOG_LEVEL string onto a slog level, defaulting to Info
// on anything unrecognized.
func (p *Properties) SlogLevel() slog.Level {
	switch strings.ToLower(p.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
