package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/hit-tracker/hdm/internal/adapter"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks every section of cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config cannot be nil", ErrInvalid)
	}

	checks := []struct {
		section string
		check   func(*Config) error
	}{
		{"http", validateHTTP},
		{"webhook", validateWebhook},
		{"radio", validateRadio},
		{"registry", validateRegistry},
		{"events", validateEvents},
		{"logging", validateLogging},
	}
	for _, c := range checks {
		if err := c.check(cfg); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, c.section, err)
		}
	}
	return nil
}

func validateHTTP(cfg *Config) error {
	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeout < 0 || cfg.HTTP.WriteTimeout < 0 || cfg.HTTP.IdleTimeout < 0 {
		return errors.New("timeouts must be non-negative")
	}
	return nil
}

func validateWebhook(cfg *Config) error {
	if cfg.Webhook.URL != "" {
		u, err := url.Parse(cfg.Webhook.URL)
		if err != nil {
			return fmt.Errorf("url: %v", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("url scheme %q must be http or https", u.Scheme)
		}
	}
	if cfg.Webhook.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", cfg.Webhook.Timeout)
	}
	if cfg.Webhook.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", cfg.Webhook.QueueSize)
	}
	return nil
}

func validateRadio(cfg *Config) error {
	if _, ok := adapter.DriverErrorMappings[cfg.Radio.Driver]; !ok {
		return fmt.Errorf("unknown driver %q", cfg.Radio.Driver)
	}
	if cfg.Radio.GroupSize < 1 {
		return fmt.Errorf("group size must be at least 1, got %d", cfg.Radio.GroupSize)
	}
	if cfg.Radio.SettleDelay < 0 {
		return fmt.Errorf("settle delay must be non-negative, got %v", cfg.Radio.SettleDelay)
	}
	if cfg.Radio.ConnectTimeout < 0 {
		return fmt.Errorf("connect timeout must be non-negative, got %v", cfg.Radio.ConnectTimeout)
	}
	if cfg.Radio.ScanRestartInterval < 0 {
		return fmt.Errorf("scan restart interval must be non-negative, got %v", cfg.Radio.ScanRestartInterval)
	}
	return nil
}

func validateRegistry(cfg *Config) error {
	if cfg.Registry.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %v", cfg.Registry.SweepInterval)
	}
	if cfg.Registry.StaleAfter <= 0 {
		return fmt.Errorf("stale threshold must be positive, got %v", cfg.Registry.StaleAfter)
	}
	if cfg.Registry.StaleAfter < cfg.Registry.SweepInterval {
		return fmt.Errorf("stale threshold %v must be >= sweep interval %v", cfg.Registry.StaleAfter, cfg.Registry.SweepInterval)
	}
	if cfg.Registry.ZoneCount < 1 || cfg.Registry.ZoneCount > 256 {
		return fmt.Errorf("zone count %d out of range [1, 256]", cfg.Registry.ZoneCount)
	}
	return nil
}

func validateEvents(cfg *Config) error {
	if cfg.Events.BufferSize < 1 {
		return fmt.Errorf("buffer size must be at least 1, got %d", cfg.Events.BufferSize)
	}
	if cfg.Events.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", cfg.Events.HeartbeatInterval)
	}
	return nil
}

func validateLogging(cfg *Config) error {
	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if cfg.Logging.MaxSizeMB < 0 || cfg.Logging.MaxBackups < 0 || cfg.Logging.MaxAgeDays < 0 {
		return errors.New("rotation limits must be non-negative")
	}
	return nil
}
