// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	DBPath          string
	BrowserURL      string // CDP debugger URL; empty launches a local browser
	BrowserEnabled  bool
	BrowserHeadless bool
	IdentityURL     string
	IdentityKey     string
	WebhookURL      string
	AnchorTimeout   time.Duration
	SectionTimeout  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBPath:          getEnv("DB_PATH", "./data/sidekick.db"),
		BrowserURL:      getEnv("BROWSER_URL", ""),
		BrowserEnabled:  getEnvBool("BROWSER_ENABLED", true),
		BrowserHeadless: getEnvBool("BROWSER_HEADLESS", false),
		IdentityURL:     getEnv("IDENTITY_URL", ""),
		IdentityKey:     getEnv("IDENTITY_KEY", ""),
		WebhookURL:      getEnv("WEBHOOK_URL", "https://n8n.tebita.com/webhook/generate-cover-letter"),
		AnchorTimeout:   getEnvDuration("ANCHOR_TIMEOUT_MS", 15*time.Second),
		SectionTimeout:  getEnvDuration("SECTION_TIMEOUT_MS", 3*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_URL cannot be empty")
	}
	if c.AnchorTimeout <= 0 {
		return fmt.Errorf("ANCHOR_TIMEOUT_MS must be > 0")
	}
	if c.SectionTimeout <= 0 {
		return fmt.Errorf("SECTION_TIMEOUT_MS must be > 0")
	}
	if c.SectionTimeout > c.AnchorTimeout {
		return fmt.Errorf("SECTION_TIMEOUT_MS cannot exceed ANCHOR_TIMEOUT_MS")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	ms, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
