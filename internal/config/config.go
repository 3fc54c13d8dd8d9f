// Package config loads environment configuration for recordshelf.
package config

import (
	"errors"
	"os"
)

// Config holds all configuration for the application. It is built once at
// startup and handed to each component; nothing reads the environment after
// Load returns.
type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string

	// BaseURL is the externally reachable origin of this server; the OAuth
	// callback URL is derived from it.
	BaseURL string

	// SessionSecret signs bearer tokens. Required.
	SessionSecret []byte

	// Provider (Discogs) consumer credentials for the OAuth 1.0a handshake.
	ConsumerKey    string
	ConsumerSecret string

	// PersonalToken is a static provider access token used when a request
	// carries no delegated credentials (single-tenant / demo mode).
	PersonalToken string

	// FallbackOwner is the owner key used when no identity is present.
	FallbackOwner string
}

// Common errors.
var (
	ErrMissingDatabaseURL   = errors.New("missing DATABASE_URL environment variable")
	ErrMissingSessionSecret = errors.New("missing SESSION_SECRET environment variable")
)

// Load reads configuration from environment variables. DATABASE_URL and
// SESSION_SECRET are required; everything else has a default or is optional.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		BaseURL:        getenvDefault("BASE_URL", "http://127.0.0.1:8080"),
		ConsumerKey:    os.Getenv("DISCOGS_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("DISCOGS_CONSUMER_SECRET"),
		PersonalToken:  os.Getenv("DISCOGS_TOKEN"),
		FallbackOwner:  os.Getenv("FALLBACK_OWNER"),
	}

	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		return nil, ErrMissingSessionSecret
	}
	cfg.SessionSecret = []byte(secret)

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
