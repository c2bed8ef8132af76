// Package config loads weightlog settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all weightlog configuration.
type Config struct {
	Addr        string `yaml:"addr"`
	WebDir      string `yaml:"web_dir"`
	DatabaseURL string `yaml:"database_url"` // empty selects the in-memory store

	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	Auth    AuthConfig    `yaml:"auth"`
	OIDC    OIDCConfig    `yaml:"oidc"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// SessionConfig configures login sessions.
type SessionConfig struct {
	TTL             string `yaml:"ttl"`
	CleanupInterval string `yaml:"cleanup_interval"`
}

// AuthConfig configures how requests are authenticated.
type AuthConfig struct {
	// ForwardAuth trusts the Remote-User header. Enable only behind a proxy
	// that sets it and strips it from client requests.
	ForwardAuth bool `yaml:"forward_auth"`
}

// OIDCConfig configures single sign-on. SSO is enabled when Issuer and
// ClientID are both set.
type OIDCConfig struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Enabled reports whether SSO is configured.
func (o OIDCConfig) Enabled() bool {
	return o.Issuer != "" && o.ClientID != ""
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Addr:   ":8080",
		WebDir: "web",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Session: SessionConfig{
			TTL:             "24h",
			CleanupInterval: "1h",
		},
	}
}

// Load reads configuration from the YAML file at path, if any, and applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	overrides := map[string]*string{
		"ADDR":               &c.Addr,
		"WEB_DIR":            &c.WebDir,
		"DATABASE_URL":       &c.DatabaseURL,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
		"SESSION_TTL":        &c.Session.TTL,
		"OIDC_ISSUER":        &c.OIDC.Issuer,
		"OIDC_CLIENT_ID":     &c.OIDC.ClientID,
		"OIDC_CLIENT_SECRET": &c.OIDC.ClientSecret,
		"OIDC_REDIRECT_URL":  &c.OIDC.RedirectURL,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("FORWARD_AUTH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FORWARD_AUTH: %w", err)
		}
		c.Auth.ForwardAuth = b
	}
	return nil
}

// SessionTTL returns the session lifetime.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Session.TTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// SessionCleanupInterval returns how often expired sessions are purged.
func (c *Config) SessionCleanupInterval() time.Duration {
	d, err := time.ParseDuration(c.Session.CleanupInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	for name, v := range map[string]string{
		"session.ttl":              c.Session.TTL,
		"session.cleanup_interval": c.Session.CleanupInterval,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.OIDC.Enabled() && c.OIDC.RedirectURL == "" {
		return errors.New("oidc.redirect_url is required when SSO is enabled")
	}
	if (c.OIDC.Issuer == "") != (c.OIDC.ClientID == "") {
		return errors.New("oidc.issuer and oidc.client_id must be set together")
	}
	return nil
}
