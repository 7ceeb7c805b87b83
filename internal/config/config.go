// Package config loads and validates the application configuration.
//
// CONFIGURATION PHILOSOPHY:
// Everything comes from environment variables, is read exactly once at
// startup, and is treated as immutable afterwards. Anything required that
// is missing makes the process fail fast — a relay that can't verify push
// secrets or sign sessions must not start and limp along half-configured.
//
// We use sethvargo/go-envconfig to map env vars onto the struct via tags,
// then run our own Validate pass for the rules envconfig can't express
// (minimum secret lengths, URL shapes).
package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sethvargo/go-envconfig"

	"github.com/sakif/swarm-relay/internal/apperror"
)

// Config holds every startup setting for the relay.
type Config struct {
	Port     int    `env:"PORT,default=8080"`
	Env      string `env:"ENV,default=development"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// BaseURL is the externally reachable origin of this server, e.g.
	// "https://relay.example.com". OAuth redirect URIs are derived from it
	// by appending the fixed callback paths — there is deliberately no
	// path-substitution heuristic.
	BaseURL string `env:"BASE_URL,default=http://localhost:8080"`

	// Webhook ingress + egress.
	FoursquarePushSecret string `env:"FOURSQUARE_PUSH_SECRET"`
	DiscordWebhookURL    string `env:"DISCORD_WEBHOOK_URL"`

	// Discord OAuth (primary identity + guild gate).
	DiscordClientID       string `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret   string `env:"DISCORD_CLIENT_SECRET"`
	DiscordTargetServerID string `env:"DISCORD_TARGET_SERVER_ID"`

	// Foursquare OAuth (secondary identity linkage).
	FoursquareClientID     string `env:"FOURSQUARE_CLIENT_ID"`
	FoursquareClientSecret string `env:"FOURSQUARE_CLIENT_SECRET"`

	// Session signing.
	JWTSecret string `env:"JWT_SECRET"`

	// Storage.
	DBPath string `env:"DB_PATH,default=data/relay.db"`

	// DebugFoursquareUserID optionally re-enables the legacy single-tenant
	// mode: check-ins from exactly this Foursquare user are accepted even
	// without a linked account. Empty (the default) disables the fallback.
	// This is configuration passed into the webhook service — not ambient
	// global state.
	DebugFoursquareUserID string `env:"DEBUG_FOURSQUARE_USER_ID"`
}

// Load reads the configuration from the environment and validates it.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing env vars: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the rules the env tags can't.
// Every violation is an apperror.ErrConfig — fatal at startup.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"FOURSQUARE_PUSH_SECRET", c.FoursquarePushSecret},
		{"DISCORD_WEBHOOK_URL", c.DiscordWebhookURL},
		{"DISCORD_CLIENT_ID", c.DiscordClientID},
		{"DISCORD_CLIENT_SECRET", c.DiscordClientSecret},
		{"DISCORD_TARGET_SERVER_ID", c.DiscordTargetServerID},
		{"FOURSQUARE_CLIENT_ID", c.FoursquareClientID},
		{"FOURSQUARE_CLIENT_SECRET", c.FoursquareClientSecret},
		{"JWT_SECRET", c.JWTSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return apperror.Config(r.name, "environment variable is required")
		}
	}

	if len(c.JWTSecret) < 32 {
		return apperror.Config("JWT_SECRET", "must be at least 32 characters")
	}

	for _, u := range []struct {
		name  string
		value string
	}{
		{"BASE_URL", c.BaseURL},
		{"DISCORD_WEBHOOK_URL", c.DiscordWebhookURL},
	} {
		parsed, err := url.Parse(u.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return apperror.Config(u.name, fmt.Sprintf("%q is not an absolute URL", u.value))
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return apperror.Config(u.name, fmt.Sprintf("unsupported scheme %q", parsed.Scheme))
		}
	}

	if c.Port <= 0 || c.Port > 65535 {
		return apperror.Config("PORT", fmt.Sprintf("%d is out of range", c.Port))
	}

	return nil
}

// IsProduction reports whether the relay runs with production hardening
// (Secure cookies, tighter logging).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DiscordRedirectURL is the OAuth callback this server registers with Discord.
func (c *Config) DiscordRedirectURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/auth/discord/callback"
}

// FoursquareRedirectURL is the OAuth callback registered with Foursquare.
func (c *Config) FoursquareRedirectURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/auth/swarm/callback"
}
