// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	KeyPath    string

	LogLevel  slog.Level
	LogFormat string

	SteamBaseURL    string
	UpstreamTimeout time.Duration

	SessionTTL       time.Duration
	BindSessionIP    bool
	RevokeOnReauth   bool
	TrustProxy       bool
	StoreTimeout     time.Duration
	RecentLimit      int
	SweepInterval    time.Duration
	SessionRetention time.Duration

	AuthRateLimit  int
	AuthRateWindow time.Duration
	APIRateLimit   int
	APIRateWindow  time.Duration
	BlockDuration  time.Duration
}

// LoadDotEnv loads variables from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from GAMEHUB_ environment variables and returns a
// validated Config. Every variable is optional; malformed values fail fast.
func Load() (*Config, error) {
	l := loader{}

	cfg := &Config{
		ListenAddr: l.str("GAMEHUB_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:     l.str("GAMEHUB_DB_PATH", "gamehub.db"),
		KeyPath:    l.str("GAMEHUB_KEY_PATH", ".gamehub_key"),

		LogFormat: strings.ToLower(l.str("GAMEHUB_LOG_FORMAT", "json")),

		SteamBaseURL:    l.str("GAMEHUB_STEAM_BASE_URL", "https://api.steampowered.com"),
		UpstreamTimeout: l.duration("GAMEHUB_UPSTREAM_TIMEOUT", 10*time.Second),

		SessionTTL:       l.duration("GAMEHUB_SESSION_TTL", 24*time.Hour),
		BindSessionIP:    l.boolean("GAMEHUB_BIND_SESSION_IP", false),
		RevokeOnReauth:   l.boolean("GAMEHUB_REVOKE_ON_REAUTH", false),
		TrustProxy:       l.boolean("GAMEHUB_TRUST_PROXY", false),
		StoreTimeout:     l.duration("GAMEHUB_STORE_TIMEOUT", 5*time.Second),
		RecentLimit:      l.integer("GAMEHUB_RECENT_LIMIT", 10),
		SweepInterval:    l.duration("GAMEHUB_SWEEP_INTERVAL", time.Hour),
		SessionRetention: l.duration("GAMEHUB_SESSION_RETENTION", 0),

		AuthRateLimit:  l.integer("GAMEHUB_AUTH_RATE_LIMIT", 5),
		AuthRateWindow: l.duration("GAMEHUB_AUTH_RATE_WINDOW", 5*time.Minute),
		APIRateLimit:   l.integer("GAMEHUB_API_RATE_LIMIT", 100),
		APIRateWindow:  l.duration("GAMEHUB_API_RATE_WINDOW", time.Minute),
		BlockDuration:  l.duration("GAMEHUB_BLOCK_DURATION", time.Hour),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(l.str("GAMEHUB_LOG_LEVEL", "info"))); err != nil {
		l.errs = append(l.errs, fmt.Errorf("GAMEHUB_LOG_LEVEL: %w", err))
	}

	if err := errors.Join(l.errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("GAMEHUB_LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	positive := []struct {
		name string
		v    time.Duration
	}{
		{"GAMEHUB_UPSTREAM_TIMEOUT", c.UpstreamTimeout},
		{"GAMEHUB_SESSION_TTL", c.SessionTTL},
		{"GAMEHUB_STORE_TIMEOUT", c.StoreTimeout},
		{"GAMEHUB_AUTH_RATE_WINDOW", c.AuthRateWindow},
		{"GAMEHUB_API_RATE_WINDOW", c.APIRateWindow},
		{"GAMEHUB_BLOCK_DURATION", c.BlockDuration},
	}
	for _, p := range positive {
		if p.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", p.name, p.v))
		}
	}
	if c.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("GAMEHUB_SWEEP_INTERVAL must not be negative, got %s", c.SweepInterval))
	}
	if c.SessionRetention < 0 {
		errs = append(errs, fmt.Errorf("GAMEHUB_SESSION_RETENTION must not be negative, got %s", c.SessionRetention))
	}
	if c.AuthRateLimit < 1 {
		errs = append(errs, fmt.Errorf("GAMEHUB_AUTH_RATE_LIMIT must be at least 1, got %d", c.AuthRateLimit))
	}
	if c.APIRateLimit < 1 {
		errs = append(errs, fmt.Errorf("GAMEHUB_API_RATE_LIMIT must be at least 1, got %d", c.APIRateLimit))
	}
	if c.RecentLimit < 1 {
		errs = append(errs, fmt.Errorf("GAMEHUB_RECENT_LIMIT must be at least 1, got %d", c.RecentLimit))
	}
	return errors.Join(errs...)
}

// loader collects parse errors so Load reports every bad variable at once.
type loader struct {
	errs []error
}

func (l *loader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s has invalid duration %q: %w", key, v, err))
		return def
	}
	return parsed
}

func (l *loader) integer(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s has invalid integer %q: %w", key, v, err))
		return def
	}
	return parsed
}

func (l *loader) boolean(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s has invalid boolean %q: %w", key, v, err))
		return def
	}
	return parsed
}
