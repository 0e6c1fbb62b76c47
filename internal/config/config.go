package config

import "time"

// Config is the complete process configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Radio    RadioConfig    `yaml:"radio"`
	Registry RegistryConfig `yaml:"registry"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
	Audit    AuditConfig    `yaml:"audit"`
	Auth     AuthConfig     `yaml:"auth"`
}

// HTTPConfig holds the control API listener settings.
type HTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// WebhookConfig holds hit delivery settings.
type WebhookConfig struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	QueueSize int           `yaml:"queueSize"`
}

// RadioConfig holds connection burst and discovery settings.
type RadioConfig struct {
	// Driver selects the error token table used for normalization.
	Driver              string        `yaml:"driver"`
	GroupSize           int           `yaml:"groupSize"`
	SettleDelay         time.Duration `yaml:"settleDelay"`
	ConnectTimeout      time.Duration `yaml:"connectTimeout"`
	ScanRestartInterval time.Duration `yaml:"scanRestartInterval"`
}

// RegistryConfig holds unit bookkeeping settings.
type RegistryConfig struct {
	SweepInterval time.Duration `yaml:"sweepInterval"`
	StaleAfter    time.Duration `yaml:"staleAfter"`
	ZoneCount     int           `yaml:"zoneCount"`
}

// EventsConfig holds the SSE event stream settings.
type EventsConfig struct {
	BufferSize        int           `yaml:"bufferSize"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

// LoggingConfig holds log level and optional rotated file output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// AuditConfig holds the audit trail location.
type AuditConfig struct {
	Dir string `yaml:"dir"`
}

// AuthConfig holds the bearer token settings. Auth is off when both are empty.
type AuthConfig struct {
	Secret        string `yaml:"secret"`
	PublicKeyFile string `yaml:"publicKeyFile"`
}

// Enabled reports whether control routes require a token.
func (a AuthConfig) Enabled() bool {
	return a.Secret != "" || a.PublicKeyFile != ""
}

// Baseline returns the default configuration.
func Baseline() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  2 * time.Minute,
		},
		Webhook: WebhookConfig{
			Timeout:   10 * time.Second,
			QueueSize: 64,
		},
		Radio: RadioConfig{
			Driver:              "bluez",
			GroupSize:           3,
			SettleDelay:         5 * time.Second,
			ConnectTimeout:      10 * time.Second,
			ScanRestartInterval: 10 * time.Minute,
		},
		Registry: RegistryConfig{
			SweepInterval: 2 * time.Second,
			StaleAfter:    10 * time.Minute,
			ZoneCount:     3,
		},
		Events: EventsConfig{
			BufferSize:        256,
			HeartbeatInterval: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Audit: AuditConfig{
			Dir: "logs",
		},
	}
}
