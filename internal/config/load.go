package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Load builds the configuration from Baseline, the YAML file at path (if
// path is non-empty) and HDM_* environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Baseline()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file
// keep their current values.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

type envVar struct {
	name  string
	apply func(string) error
}

func applyEnvOverrides(cfg *Config) error {
	vars := []envVar{
		{"HDM_PORT", intVar(&cfg.HTTP.Port)},
		{"HDM_WEBHOOK_URL", stringVar(&cfg.Webhook.URL)},
		{"HDM_WEBHOOK_TIMEOUT", durationVar(&cfg.Webhook.Timeout)},
		{"HDM_WEBHOOK_QUEUE_SIZE", intVar(&cfg.Webhook.QueueSize)},
		{"HDM_RADIO_DRIVER", stringVar(&cfg.Radio.Driver)},
		{"HDM_GROUP_SIZE", intVar(&cfg.Radio.GroupSize)},
		{"HDM_SETTLE_DELAY", durationVar(&cfg.Radio.SettleDelay)},
		{"HDM_CONNECT_TIMEOUT", durationVar(&cfg.Radio.ConnectTimeout)},
		{"HDM_SCAN_RESTART_INTERVAL", durationVar(&cfg.Radio.ScanRestartInterval)},
		{"HDM_SWEEP_INTERVAL", durationVar(&cfg.Registry.SweepInterval)},
		{"HDM_STALE_AFTER", durationVar(&cfg.Registry.StaleAfter)},
		{"HDM_ZONE_COUNT", intVar(&cfg.Registry.ZoneCount)},
		{"HDM_EVENT_BUFFER_SIZE", intVar(&cfg.Events.BufferSize)},
		{"HDM_HEARTBEAT_INTERVAL", durationVar(&cfg.Events.HeartbeatInterval)},
		{"HDM_LOG_LEVEL", stringVar(&cfg.Logging.Level)},
		{"HDM_LOG_FILE", stringVar(&cfg.Logging.File)},
		{"HDM_AUDIT_DIR", stringVar(&cfg.Audit.Dir)},
		{"HDM_AUTH_SECRET", stringVar(&cfg.Auth.Secret)},
		{"HDM_AUTH_PUBLIC_KEY_FILE", stringVar(&cfg.Auth.PublicKeyFile)},
	}

	for _, v := range vars {
		val, ok := os.LookupEnv(v.name)
		if !ok || val == "" {
			continue
		}
		if err := v.apply(val); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}
	return nil
}

func stringVar(target *string) func(string) error {
	return func(val string) error {
		*target = val
		return nil
	}
}

func intVar(target *int) func(string) error {
	return func(val string) error {
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*target = n
		return nil
	}
}

func durationVar(target *time.Duration) func(string) error {
	return func(val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*target = d
		return nil
	}
}
