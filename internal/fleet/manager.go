package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/hit-tracker/hdm/internal/adapter"
	"github.com/hit-tracker/hdm/internal/clock"
	"github.com/hit-tracker/hdm/internal/command"
	"github.com/hit-tracker/hdm/internal/device"
	"github.com/hit-tracker/hdm/internal/logging"
	"github.com/hit-tracker/hdm/internal/protocol"
	"github.com/hit-tracker/hdm/internal/scan"
	"github.com/hit-tracker/hdm/internal/session"
)

const instrumentationName = "github.com/hit-tracker/hdm/internal/fleet"

// ErrNotFound is returned for addresses the registry does not know.
var ErrNotFound = device.ErrNotFound

// HitNotifier receives every detected hit edge. zone is zero-based.
type HitNotifier interface {
	Notify(address string, zone int) error
}

// Settings holds the tunables of the manager.
type Settings struct {
	Driver              string
	GroupSize           int
	SettleDelay         time.Duration
	ConnectTimeout      time.Duration
	ScanRestartInterval time.Duration
	SweepInterval       time.Duration
	StaleAfter          time.Duration
	ZoneCount           int
}

// DefaultSettings mirrors the configuration baseline.
func DefaultSettings() Settings {
	return Settings{
		Driver:              "generic",
		GroupSize:           command.DefaultGroupSize,
		SettleDelay:         command.DefaultSettleDelay,
		ConnectTimeout:      10 * time.Second,
		ScanRestartInterval: scan.DefaultRestartInterval,
		SweepInterval:       2 * time.Second,
		StaleAfter:          device.DefaultStaleAfter,
		ZoneCount:           protocol.DefaultZoneCount,
	}
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clock = clk }
}

// WithNotifier adds a hit receiver. Receivers are called in the order added.
func WithNotifier(n HitNotifier) Option {
	return func(m *Manager) { m.notifiers = append(m.notifiers, n) }
}

func WithAuditLogger(a command.AuditLogger) Option {
	return func(m *Manager) { m.audit = a }
}

// Manager owns the registry, scan controller and orchestrator.
type Manager struct {
	radio     adapter.Radio
	settings  Settings
	log       zerolog.Logger
	adLog     zerolog.Logger
	clock     clock.Clock
	notifiers []HitNotifier
	audit     command.AuditLogger

	registry     *device.Registry
	scanner      *scan.Controller
	orchestrator *command.Orchestrator

	hits           metric.Int64Counter
	decodeFailures metric.Int64Counter
	evicted        metric.Int64Counter
}

// New wires a manager around radio.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(radio adapter.Radio, settings Settings, opts ...Option) (*Manager, error) {
	m := &Manager{
		radio:    radio,
		settings: settings,
		log:      zerolog.Nop(),
		clock:    clock.Real(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.adLog = logging.Sampled(logging.Component(m.log, "discovery"))

	sessionLog := logging.Component(m.log, "session")
	m.registry = device.NewRegistry(
		device.WithClock(m.clock),
		device.WithZoneCount(settings.ZoneCount),
		device.WithStaleAfter(settings.StaleAfter),
		device.WithSessionFactory(func(address string, p adapter.Peripheral) *session.Session {
			return session.New(address, p,
				session.WithLogger(sessionLog),
				session.WithDriver(settings.Driver),
				session.WithConnectTimeout(settings.ConnectTimeout),
				session.WithDisarmHook(m.resetHits),
			)
		}),
	)

	m.scanner = scan.NewController(radio,
		scan.WithLogger(logging.Component(m.log, "scan")),
		scan.WithClock(m.clock),
		scan.WithRestartInterval(settings.ScanRestartInterval),
	)

	var err error
	m.orchestrator, err = command.NewOrchestrator(m.unit, m.scanner,
		command.WithLogger(logging.Component(m.log, "orchestrator")),
		command.WithClock(m.clock),
		command.WithAuditLogger(m.audit),
		command.WithGroupSize(settings.GroupSize),
		command.WithSettleDelay(settings.SettleDelay),
	)
	if err != nil {
		return nil, err
	}

	meter := otel.Meter(instrumentationName)
	if m.hits, err = meter.Int64Counter("hdm.hits.detected", metric.WithDescription("Hit edges detected")); err != nil {
		return nil, fmt.Errorf("creating hits counter: %w", err)
	}
	if m.decodeFailures, err = meter.Int64Counter("hdm.decode.failures", metric.WithDescription("Advertisements with undecodable telemetry")); err != nil {
		return nil, fmt.Errorf("creating decode failures counter: %w", err)
	}
	if m.evicted, err = meter.Int64Counter("hdm.units.evicted", metric.WithDescription("Units evicted as stale")); err != nil {
		return nil, fmt.Errorf("creating evicted counter: %w", err)
	}
	return m, nil
}

func (m *Manager) unit(address string) (command.Unit, error) {
	s, err := m.registry.Session(address)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) resetHits(address string) {
	if err := m.registry.ResetHits(address); err != nil {
		m.log.Warn().Err(err).Str("address", address).Msg("hit reset skipped")
	}
}

// Run processes driver events, housekeeping sweeps and periodic scan
// restarts until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.scanner.Run(ctx)
	}()
	defer wg.Wait()

	sweep := m.clock.NewTicker(m.settings.SweepInterval)
	defer sweep.Stop()

	ads := m.radio.Advertisements()
	power := m.radio.PowerStates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ad, ok := <-ads:
			if !ok {
				ads = nil
				continue
			}
			m.HandleAdvertisement(ad)
		case state, ok := <-power:
			if !ok {
				power = nil
				continue
			}
			m.handlePowerState(ctx, state)
		case <-sweep.C():
			m.Sweep()
		}
	}
}

// HandleAdvertisement applies one discovery event and notifies every hit.
func (m *Manager) HandleAdvertisement(ad adapter.Advertisement) device.Observation {
	obs := m.registry.Observe(ad)
	log := m.adLog.With().Str("address", ad.Address).Logger()

	if obs.Created {
		m.log.Info().
			Str("address", ad.Address).
			Str("localName", ad.LocalName).
			Int("txPowerLevel", ad.TxPowerLevel).
			Msg("unit discovered")
	} else {
		log.Debug().Int("rssi", ad.RSSI).Bool("active", obs.Unit.Active).Msg("advertisement")
	}

	if obs.DecodeErr != nil {
		m.decodeFailures.Add(context.Background(), 1)
		log.Warn().Err(obs.DecodeErr).Msg("telemetry not decoded, keeping previous state")
	}

	for _, zone := range obs.Hits {
		m.hits.Add(context.Background(), 1)
		m.log.Info().Str("address", ad.Address).Int("zone", zone+1).Msg("hit")
		for _, n := range m.notifiers {
			if err := n.Notify(ad.Address, zone); err != nil {
				log.Debug().Err(err).Int("zone", zone+1).Msg("hit not delivered")
			}
		}
	}
	return obs
}

func (m *Manager) handlePowerState(ctx context.Context, state adapter.PowerState) {
	m.log.Info().Stringer("state", state).Msg("radio power state changed")
	var err error
	if state == adapter.PoweredOn {
		err = m.scanner.Start(ctx)
	} else {
		err = m.scanner.Stop(ctx)
	}
	if err != nil {
		m.log.Error().Err(err).Stringer("state", state).Msg("scan state change failed")
	}
}

// Sweep evicts stale units and returns their addresses.
func (m *Manager) Sweep() []string {
	evicted := m.registry.Sweep()
	for _, address := range evicted {
		m.evicted.Add(context.Background(), 1)
		m.log.Info().Str("address", address).Msg("unit evicted")
	}
	return evicted
}

// targets intersects the known units with the roster, falling back to
// every known unit when the intersection is empty.
func (m *Manager) targets(cfg GameConfig) []string {
	known := m.registry.Addresses()
	wanted := make(map[string]bool)
	for _, id := range cfg.IDs() {
		wanted[id] = true
	}

	var selected []string
	for _, address := range known {
		if wanted[address] {
			selected = append(selected, address)
		}
	}
	if len(selected) == 0 {
		return known
	}
	return selected
}

// StartGame arms the game's units.
func (m *Manager) StartGame(ctx context.Context, cfg GameConfig) (command.Report, error) {
	return m.runGame(ctx, cfg, command.Arm())
}

// StopGame disarms the game's units, resetting their hit baselines.
func (m *Manager) StopGame(ctx context.Context, cfg GameConfig) (command.Report, error) {
	return m.runGame(ctx, cfg, command.Disarm())
}

func (m *Manager) runGame(ctx context.Context, cfg GameConfig, op command.Operation) (command.Report, error) {
	if err := cfg.Validate(); err != nil {
		return command.Report{Operation: op.Name}, err
	}
	targets := m.targets(cfg)
	m.log.Info().Str("operation", op.Name).Strs("targets", targets).Msg("game command")
	return m.orchestrator.Execute(ctx, op, targets), nil
}

// SetGameStatus arms (1) or disarms (0) a single unit.
func (m *Manager) SetGameStatus(ctx context.Context, address string, value int) error {
	status, err := protocol.ParseGameStatus(value)
	if err != nil {
		return err
	}
	return m.single(ctx, address, command.SetGameStatus(status))
}

// SetLedConfiguration writes an LED configuration set to a single unit.
func (m *Manager) SetLedConfiguration(ctx context.Context, address string, cfg protocol.ZonesConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return m.single(ctx, address, command.SetLedConfiguration(cfg))
}

func (m *Manager) single(ctx context.Context, address string, op command.Operation) error {
	if !m.registry.Has(address) {
		return fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	report := m.orchestrator.Execute(ctx, op, []string{address})
	if failed := report.Failed(); len(failed) > 0 {
		return failed[0].Err
	}
	return nil
}

// GetDevice returns the unit at address.
func (m *Manager) GetDevice(address string) (device.Unit, error) {
	return m.registry.Get(address)
}

// HasDevice reports whether address is known.
func (m *Manager) HasDevice(address string) bool {
	return m.registry.Has(address)
}

// AllAddresses returns every known address, sorted.
func (m *Manager) AllAddresses() []string {
	return m.registry.Addresses()
}

// StartScanning requests discovery.
func (m *Manager) StartScanning(ctx context.Context) error {
	return m.scanner.Start(ctx)
}

// StopScanning ends discovery.
func (m *Manager) StopScanning(ctx context.Context) error {
	return m.scanner.Stop(ctx)
}

// Scanning reports whether discovery is on.
func (m *Manager) Scanning() bool {
	return m.scanner.Scanning()
}
