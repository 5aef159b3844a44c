// Package config loads the termdoc server configuration from YAML.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/termdoc/core/errors"
	"github.com/FocuswithJustin/termdoc/internal/logging"
)

// Config holds server configuration.
type Config struct {
	Port           int           `yaml:"port"`
	Database       string        `yaml:"database"`
	AllowedOrigins []string      `yaml:"allowed_origins"` // empty = allow all
	Session        SessionConfig `yaml:"session"`
	Log            LogConfig     `yaml:"log"`
	TLS            TLSConfig     `yaml:"tls"`
	Auth           AuthConfig    `yaml:"auth"`
	RateLimit      RateConfig    `yaml:"rate_limit"`
}

// AuthConfig enables API key authentication.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
}

// RateConfig limits requests per client IP. Zero disables limiting.
type RateConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// SessionConfig bounds the live editing websocket.
type SessionConfig struct {
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	MaxSessions     int           `yaml:"max_sessions"`
	MaxMessageRate  int           `yaml:"max_message_rate"` // per second
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PongWait        time.Duration `yaml:"pong_wait"`
}

// LogConfig selects the logging level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:     8080,
		Database: "termdoc.db",
		Session: SessionConfig{
			MaxMessageBytes: 1 << 20,
			MaxSessions:     100,
			MaxMessageRate:  20,
			WriteTimeout:    10 * time.Second,
			PongWait:        60 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file
// keep their default values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.NewIO("read", path, err)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode unmarshals YAML into cfg, leaving unset fields untouched.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg.Validate()
		}
		return errors.NewParse("yaml", "", err.Error())
	}
	return cfg.Validate()
}

// Validate checks value ranges and cross-field requirements.
func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return errors.NewValidation("port", fmt.Sprintf("%d is out of range", c.Port))
	case c.Database == "":
		return errors.NewValidation("database", "path is required")
	case c.Session.MaxMessageBytes <= 0:
		return errors.NewValidation("session.max_message_bytes", "must be positive")
	case c.Session.MaxSessions <= 0:
		return errors.NewValidation("session.max_sessions", "must be positive")
	case c.Session.MaxMessageRate <= 0:
		return errors.NewValidation("session.max_message_rate", "must be positive")
	case c.Session.WriteTimeout <= 0 || c.Session.PongWait <= 0:
		return errors.NewValidation("session", "timeouts must be positive")
	case c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == ""):
		return errors.NewValidation("tls", "cert_file and key_file are required when enabled")
	case c.Auth.Enabled && len(c.Auth.APIKey) < 16:
		return errors.NewValidation("auth.api_key", "must be at least 16 characters when auth is enabled")
	case c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0:
		return errors.NewValidation("rate_limit", "must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidation("log.level", err.Error())
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return errors.NewValidation("log.format", err.Error())
	}
	return nil
}

// InitLogging configures the global logger from the Log section.
func (c Config) InitLogging() error {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(c.Log.Format)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

// Addr returns the listen address for Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
