// Package config loads service configuration from the environment, with an
// optional YAML overlay for deploy-specific tunables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/sethvargo/go-envconfig"
)

// Config holds everything the service reads at startup.
type Config struct {
	Port        string `env:"PORT, default=5050"`
	Env         string `env:"ENV, default=development"`
	DatabaseURL string `env:"DATABASE_URL"`
	FrontendURI string `env:"FRONTEND_URI, default=http://localhost:3000"`

	LogLevel   string `env:"LOG_LEVEL, default=info"`
	VerboseLog bool   `env:"VERBOSE_LOG"`

	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool   `env:"COOKIE_SECURE, default=true"`

	Discord   DiscordConfig
	Recaptcha RecaptchaConfig

	// DevBypassHash is a bcrypt hash of the local-login bypass code. Only
	// honored when Env is "development".
	DevBypassHash string `env:"DEV_BYPASS_HASH"`

	// ConfigFile points at an optional YAML overlay (see FileConfig).
	ConfigFile string `env:"CONFIG_FILE, default=config.yaml"`

	// Overlay-controlled tunables with built-in defaults.
	Origins           []string
	ListingLimit      int
	MaxServersPerUser int
}

// DiscordConfig holds the OAuth application credentials.
type DiscordConfig struct {
	ClientID     string `env:"DISCORD_CLIENT_ID"`
	ClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	RedirectURI  string `env:"OAUTH_REDIRECT_URI"`
}

// RecaptchaConfig holds the server-side captcha secret. An empty secret
// disables verification (local development).
type RecaptchaConfig struct {
	Secret string `env:"RECAPTCHA_SECRET_KEY"`
}

// FileConfig is the YAML overlay shape. Zero values leave the built-in
// defaults untouched.
type FileConfig struct {
	Origins           []string `yaml:"origins"`
	ListingLimit      int      `yaml:"listing_limit"`
	MaxServersPerUser int      `yaml:"max_servers_per_user"`
}

// Load reads environment variables and, when present, the YAML overlay.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	cfg.Origins = []string{"http://localhost:3000", cfg.FrontendURI}
	cfg.ListingLimit = 25
	cfg.MaxServersPerUser = 5

	if err := cfg.applyOverlay(); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return &cfg, nil
}

// Development reports whether the service runs with dev-only behavior
// (bypass login, relaxed cookies) enabled.
func (c *Config) Development() bool { return c.Env == "development" }

func (c *Config) applyOverlay() error {
	raw, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", c.ConfigFile, err)
	}

	var file FileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", c.ConfigFile, err)
	}

	if len(file.Origins) > 0 {
		c.Origins = append(c.Origins, file.Origins...)
	}
	if file.ListingLimit > 0 {
		c.ListingLimit = file.ListingLimit
	}
	if file.MaxServersPerUser > 0 {
		c.MaxServersPerUser = file.MaxServersPerUser
	}
	return nil
}
