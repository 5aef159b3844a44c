package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/termdoc/core/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termdoc.yaml")
	yamlDoc := `
port: 9090
database: /var/lib/termdoc/docs.db
allowed_origins:
  - http://localhost:3000
session:
  max_message_bytes: 4096
  max_message_rate: 5
  write_timeout: 2s
log:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/var/lib/termdoc/docs.db", cfg.Database)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(4096), cfg.Session.MaxMessageBytes)
	assert.Equal(t, 2*time.Second, cfg.Session.WriteTimeout)
	assert.Equal(t, 5, cfg.Session.MaxMessageRate)
	// untouched keys keep defaults
	assert.Equal(t, 100, cfg.Session.MaxSessions)
	assert.Equal(t, 60*time.Second, cfg.Session.PongWait)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	var ioErr *errors.IOError
	assert.True(t, errors.As(err, &ioErr))
}

func TestDecodeEmpty(t *testing.T) {
	cfg := Default()
	require.NoError(t, Decode(nil, &cfg))
	assert.Equal(t, Default(), cfg)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	err := Decode([]byte("prot: 80\n"), &cfg)
	require.Error(t, err)
	var pe *errors.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"port too large", func(c *Config) { c.Port = 70000 }, "port"},
		{"no database", func(c *Config) { c.Database = "" }, "database"},
		{"zero message size", func(c *Config) { c.Session.MaxMessageBytes = 0 }, "session.max_message_bytes"},
		{"zero sessions", func(c *Config) { c.Session.MaxSessions = 0 }, "session.max_sessions"},
		{"zero timeout", func(c *Config) { c.Session.PongWait = 0 }, "session"},
		{"tls without cert", func(c *Config) { c.TLS.Enabled = true }, "tls"},
		{"zero message rate", func(c *Config) { c.Session.MaxMessageRate = 0 }, "session.max_message_rate"},
		{"short api key", func(c *Config) { c.Auth = AuthConfig{Enabled: true, APIKey: "short"} }, "auth.api_key"},
		{"negative rate", func(c *Config) { c.RateLimit.Burst = -1 }, "rate_limit"},
		{"bad level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		})
	}
}

func TestInitLogging(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.InitLogging())
	cfg.Log.Level = "nope"
	assert.Error(t, cfg.InitLogging())
}
