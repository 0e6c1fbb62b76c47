package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBaseline(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, 3, cfg.Radio.GroupSize)
	assert.Equal(t, 5*time.Second, cfg.Radio.SettleDelay)
	assert.Equal(t, 10*time.Minute, cfg.Radio.ScanRestartInterval)
	assert.Equal(t, 2*time.Second, cfg.Registry.SweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.Registry.StaleAfter)
	assert.Equal(t, 3, cfg.Registry.ZoneCount)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, "logs", cfg.Audit.Dir)
	assert.Equal(t, 256, cfg.Events.BufferSize)
	assert.Equal(t, 15*time.Second, cfg.Events.HeartbeatInterval)
	assert.False(t, cfg.Auth.Enabled())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 8080
webhook:
  url: http://games.local:4000
radio:
  groupSize: 2
  settleDelay: 1500ms
registry:
  staleAfter: 5m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "http://games.local:4000", cfg.Webhook.URL)
	assert.Equal(t, 2, cfg.Radio.GroupSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Radio.SettleDelay)
	assert.Equal(t, 5*time.Minute, cfg.Registry.StaleAfter)
	assert.Equal(t, 10*time.Second, cfg.Radio.ConnectTimeout, "unset keys keep baseline")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("radio:\n  groupsize: 2\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: 8080\n"), 0o600))

	t.Setenv("HDM_PORT", "9090")
	t.Setenv("HDM_SETTLE_DELAY", "2s")
	t.Setenv("HDM_WEBHOOK_URL", "https://example.test")
	t.Setenv("HDM_AUTH_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 2*time.Second, cfg.Radio.SettleDelay)
	assert.Equal(t, "https://example.test", cfg.Webhook.URL)
	assert.True(t, cfg.Auth.Enabled())
}

func TestEnvParseErrors(t *testing.T) {
	tests := map[string]string{
		"HDM_PORT":           "eighty",
		"HDM_STALE_AFTER":    "ten minutes",
		"HDM_GROUP_SIZE":     "3.5",
		"HDM_SWEEP_INTERVAL": "fast",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			_, err := Load("")
			assert.ErrorContains(t, err, name)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.HTTP.Port = 0 }},
		{"webhook scheme", func(c *Config) { c.Webhook.URL = "ftp://x" }},
		{"webhook timeout", func(c *Config) { c.Webhook.Timeout = 0 }},
		{"queue size", func(c *Config) { c.Webhook.QueueSize = 0 }},
		{"driver", func(c *Config) { c.Radio.Driver = "corebluetooth" }},
		{"group size", func(c *Config) { c.Radio.GroupSize = 0 }},
		{"settle delay", func(c *Config) { c.Radio.SettleDelay = -time.Second }},
		{"sweep interval", func(c *Config) { c.Registry.SweepInterval = 0 }},
		{"stale below sweep", func(c *Config) { c.Registry.StaleAfter = time.Second }},
		{"zone count", func(c *Config) { c.Registry.ZoneCount = 0 }},
		{"http timeout", func(c *Config) { c.HTTP.WriteTimeout = -time.Second }},
		{"event buffer", func(c *Config) { c.Events.BufferSize = 0 }},
		{"heartbeat", func(c *Config) { c.Events.HeartbeatInterval = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"rotation", func(c *Config) { c.Logging.MaxBackups = -1 }},
	}

	assert.NoError(t, Validate(Baseline()))
	assert.ErrorIs(t, Validate(nil), ErrInvalid)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Baseline()
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), ErrInvalid)
		})
	}
}
