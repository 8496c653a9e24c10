// Package config loads application configuration from a JSON file at
// ~/.coachsync/config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Strava   StravaConfig   `json:"strava"`
	Database DatabaseConfig `json:"database"`
	Sync     SyncConfig     `json:"sync"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Addr string `json:"addr"`
	// PublicURL is the externally reachable base URL, used to build the
	// OAuth redirect target.
	PublicURL string `json:"public_url"`
}

// StravaConfig holds Strava API credentials and the webhook secret
type StravaConfig struct {
	ClientID           string `json:"client_id"`
	ClientSecret       string `json:"client_secret"`
	WebhookVerifyToken string `json:"webhook_verify_token"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SyncConfig tunes sync behavior
type SyncConfig struct {
	// DefaultTimezone applies to athletes without a stored timezone.
	DefaultTimezone string `json:"default_timezone"`
}

// DefaultPath returns the default config file location
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".coachsync", "config.json"), nil
}

// Load reads configuration from the given path. An empty path uses the
// default location.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s (run 'coachsync config init' to create one)", path)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Sync.DefaultTimezone == "" {
		c.Sync.DefaultTimezone = "UTC"
	}
}

// Validate checks that required fields are present
func (c *Config) Validate() error {
	var errs []error
	if c.Strava.ClientID == "" {
		errs = append(errs, errors.New("strava.client_id is required"))
	}
	if c.Strava.ClientSecret == "" {
		errs = append(errs, errors.New("strava.client_secret is required"))
	}
	if c.Strava.WebhookVerifyToken == "" {
		errs = append(errs, errors.New("strava.webhook_verify_token is required"))
	}
	return errors.Join(errs...)
}

// Save writes configuration to the given path, creating the directory
// if needed. Tokens live in the file, hence the restrictive mode.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// CreateExample writes an example config file for the user to fill in
func CreateExample(path string) error {
	cfg := Config{
		Server: ServerConfig{
			Addr:      ":8080",
			PublicURL: "https://coach.example.com",
		},
		Strava: StravaConfig{
			ClientID:           "YOUR_CLIENT_ID",
			ClientSecret:       "YOUR_CLIENT_SECRET",
			WebhookVerifyToken: "CHOOSE_A_RANDOM_TOKEN",
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Sync: SyncConfig{
			DefaultTimezone: "UTC",
		},
	}
	return cfg.Save(path)
}
