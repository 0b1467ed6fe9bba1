// Package config loads the broker configuration from config.json with
// BROKER_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/viper"
)

const DefaultPath = "config.json"

type Config struct {
	// Enabled switches the broker off without removing it from the host.
	Enabled     bool   `mapstructure:"enabled"`
	SystemName  string `mapstructure:"system_name"`
	ClientID    string `mapstructure:"client_id"`
	Secret      string `mapstructure:"secret"`
	HubEndpoint string `mapstructure:"hub_endpoint"`

	ListenAddr   string        `mapstructure:"listen_addr"`
	DBPath       string        `mapstructure:"db_path"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	GinMode      string        `mapstructure:"gin_mode"`
	TLSCertFile  string        `mapstructure:"tls_cert_file"`
	TLSKeyFile   string        `mapstructure:"tls_key_file"`
	TokenTimeout time.Duration `mapstructure:"token_timeout"`

	MaxPayloadBytes int64 `mapstructure:"max_payload_bytes"`
	// FeedRateLimit is the number of feed upgrades allowed per peer host
	// and minute.
	FeedRateLimit int `mapstructure:"feed_rate_limit"`
}

// ValidationError reports a configuration value that is present but
// unusable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

var defaults = map[string]any{
	"enabled":       true,
	"system_name":   "",
	"client_id":     "",
	"secret":        "",
	"hub_endpoint":  "",
	"listen_addr":   "0.0.0.0:5000",
	"db_path":       "broker.db",
	"log_level":     "info",
	"log_format":    "json",
	"gin_mode":      "release",
	"tls_cert_file": "",
	"tls_key_file":  "",
	"token_timeout": "30s",

	"max_payload_bytes": 256 * 1024,
	"feed_rate_limit":   30,
}

// LoadConfig reads the JSON file at path, applies BROKER_* environment
// overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("BROKER")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.SystemName) == "" {
		return &ValidationError{Field: "system_name", Reason: "System name cannot be empty"}
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return &ValidationError{Field: "client_id", Reason: "Client ID cannot be empty"}
	}
	if err := validateSecret(cfg.Secret); err != nil {
		return err
	}
	if !strings.HasPrefix(cfg.HubEndpoint, "http://") && !strings.HasPrefix(cfg.HubEndpoint, "https://") {
		return &ValidationError{Field: "hub_endpoint", Reason: "Hub endpoint must use http:// or https:// protocol"}
	}
	if cfg.ListenAddr == "" {
		return &ValidationError{Field: "listen_addr", Reason: "Listen address cannot be empty"}
	}
	if cfg.TokenTimeout <= 0 {
		return &ValidationError{Field: "token_timeout", Reason: "Token timeout must be positive"}
	}
	if cfg.MaxPayloadBytes <= 0 {
		return &ValidationError{Field: "max_payload_bytes", Reason: "Payload limit must be positive"}
	}
	if cfg.FeedRateLimit <= 0 {
		return &ValidationError{Field: "feed_rate_limit", Reason: "Feed rate limit must be positive"}
	}
	return nil
}

func validateSecret(secret string) error {
	if len(secret) < 8 {
		return &ValidationError{Field: "secret", Reason: "Secret must be at least 8 characters long"}
	}

	var upper, digit, punct bool
	for _, r := range secret {
		switch {
		case r > unicode.MaxASCII:
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct = true
		}
	}
	if !upper {
		return &ValidationError{Field: "secret", Reason: "Secret must contain at least one uppercase letter"}
	}
	if !digit {
		return &ValidationError{Field: "secret", Reason: "Secret must contain at least one digit"}
	}
	if !punct {
		return &ValidationError{Field: "secret", Reason: "Secret must contain at least one special character"}
	}
	return nil
}
