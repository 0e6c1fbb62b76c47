// Command hdm runs the hit-tracker device fleet manager: it discovers game
// units over Bluetooth LE, forwards their hits to the game server webhook
// and serves the HTTP control API.
//
// Usage:
//
//	hdm [flags] <webhook-url>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/hit-tracker/hdm/internal/adapter/ble"
	"github.com/hit-tracker/hdm/internal/api"
	"github.com/hit-tracker/hdm/internal/audit"
	"github.com/hit-tracker/hdm/internal/auth"
	"github.com/hit-tracker/hdm/internal/config"
	"github.com/hit-tracker/hdm/internal/fleet"
	"github.com/hit-tracker/hdm/internal/logging"
	"github.com/hit-tracker/hdm/internal/telemetry"
	"github.com/hit-tracker/hdm/internal/webhook"
)

const Version = "1.0.0"

type options struct {
	configPath string
	port       int
	verbose    bool
	logFile    string
	authSecret string
	version    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hdm: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	fs := flag.NewFlagSet("hdm", flag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	fs.IntVarP(&opts.port, "port", "p", 0, "HTTP port (overrides configuration)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "show all info")
	fs.StringVar(&opts.logFile, "log-file", "", "also write JSON logs to this rotated file")
	fs.StringVar(&opts.authSecret, "auth-secret", "", "HS256 secret required on control routes")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hdm [flags] <webhook-url>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.version {
		fmt.Println(Version)
		return nil
	}

	// Step 1: Load configuration, then apply command-line overrides
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, opts, fs.Args())
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// Step 2: Logging
	logger, logCloser, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Verbose:    opts.verbose,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	logger.Info().Str("version", Version).Msg("starting hit-tracker device manager")

	// Step 3: Audit trail
	auditLogger, err := audit.NewLogger(cfg.Audit.Dir, audit.Rotation{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	defer auditLogger.Close()
	logger.Info().Str("path", auditLogger.FilePath()).Msg("audit logger initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 4: Hit delivery
	notifier, err := webhook.New(cfg.Webhook.URL,
		webhook.WithTimeout(cfg.Webhook.Timeout),
		webhook.WithQueueSize(cfg.Webhook.QueueSize),
		webhook.WithLogger(logging.Component(logger, "webhook")),
	)
	if err != nil {
		return err
	}
	if notifier.Endpoint() == "" {
		logger.Warn().Msg("no webhook URL configured, hits are only logged and streamed")
	} else {
		logger.Info().Str("endpoint", notifier.Endpoint()).Msg("webhook enabled")
	}

	hub := telemetry.NewHub(
		telemetry.WithBufferSize(cfg.Events.BufferSize),
		telemetry.WithHeartbeatInterval(cfg.Events.HeartbeatInterval),
		telemetry.WithLogger(logging.Component(logger, "events")),
	)

	// Step 5: Radio and fleet manager
	radio, err := ble.Open(ble.WithLogger(logging.Component(logger, "ble")))
	if err != nil {
		return err
	}
	defer radio.Close()

	manager, err := fleet.New(radio, fleet.Settings{
		Driver:              cfg.Radio.Driver,
		GroupSize:           cfg.Radio.GroupSize,
		SettleDelay:         cfg.Radio.SettleDelay,
		ConnectTimeout:      cfg.Radio.ConnectTimeout,
		ScanRestartInterval: cfg.Radio.ScanRestartInterval,
		SweepInterval:       cfg.Registry.SweepInterval,
		StaleAfter:          cfg.Registry.StaleAfter,
		ZoneCount:           cfg.Registry.ZoneCount,
	},
		fleet.WithLogger(logger),
		fleet.WithNotifier(notifier),
		fleet.WithNotifier(hub),
		fleet.WithAuditLogger(auditLogger),
	)
	if err != nil {
		return err
	}

	// Step 6: API server
	serverOpts := []api.Option{
		api.WithEvents(hub),
		api.WithLogger(logging.Component(logger, "api")),
		api.WithTimeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.IdleTimeout),
	}
	middleware, err := authMiddleware(cfg.Auth)
	if err != nil {
		return err
	}
	if middleware != nil {
		serverOpts = append(serverOpts, api.WithAuth(middleware))
		logger.Info().Msg("bearer token auth enabled on control routes")
	}
	server := api.NewServer(manager, serverOpts...)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		notifier.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := manager.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("fleet manager stopped")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(":" + strconv.Itoa(cfg.HTTP.Port))
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
		}
		stop()
	}

	return shutdown(logger, server, hub, notifier, &wg)
}

func shutdown(logger zerolog.Logger, server *api.Server, hub *telemetry.Hub, notifier *webhook.Notifier, wg *sync.WaitGroup) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Stop()
	err := server.Stop(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("error stopping HTTP server")
	}

	notifier.Close()
	wg.Wait()
	logger.Info().Msg("shutdown complete")
	return err
}

func applyFlags(cfg *config.Config, opts options, args []string) {
	if len(args) > 0 {
		cfg.Webhook.URL = args[0]
	}
	if opts.port != 0 {
		cfg.HTTP.Port = opts.port
	}
	if opts.logFile != "" {
		cfg.Logging.File = opts.logFile
	}
	if opts.authSecret != "" {
		cfg.Auth.Secret = opts.authSecret
	}
}

// authMiddleware builds the token guard. A public key takes precedence over
// a shared secret; nil means auth is off.
func authMiddleware(cfg config.AuthConfig) (*auth.Middleware, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	vc := auth.VerifierConfig{Algorithm: auth.AlgorithmHS256, SecretKey: cfg.Secret}
	if cfg.PublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key: %w", err)
		}
		vc = auth.VerifierConfig{Algorithm: auth.AlgorithmRS256, PublicKeyPEM: string(pem)}
	}

	verifier, err := auth.NewVerifier(vc)
	if err != nil {
		return nil, err
	}
	return auth.NewMiddleware(verifier), nil
}
