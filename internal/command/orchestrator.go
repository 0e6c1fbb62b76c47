package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hit-tracker/hdm/internal/adapter"
	"github.com/hit-tracker/hdm/internal/clock"
)

const instrumentationName = "github.com/hit-tracker/hdm/internal/command"

// Defaults used when the configuration leaves a value unset.
const (
	DefaultGroupSize   = 3
	DefaultSettleDelay = 5 * time.Second
)

// Result is the outcome of one unit's operation.
type Result struct {
	Address string
	Err     error
	Latency time.Duration
}

// Report collects the per-unit results of one burst, in target order.
type Report struct {
	Operation string
	Results   []Result
}

// Failed returns the results that carry an error.
func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err joins every per-unit failure, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", res.Address, res.Err))
	}
	return errors.Join(errs...)
}

// Orchestrator runs operations across units in bounded concurrent groups.
// Bursts never overlap.
type Orchestrator struct {
	units       UnitSource
	scan        ScanGuard
	auditLogger AuditLogger
	log         zerolog.Logger
	clock       clock.Clock
	groupSize   int
	settleDelay time.Duration

	burstMu    sync.Mutex
	operations metric.Int64Counter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

func WithClock(clk clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = clk }
}

func WithAuditLogger(a AuditLogger) Option {
	return func(o *Orchestrator) { o.auditLogger = a }
}

// WithGroupSize sets how many units are driven at once.
func WithGroupSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.groupSize = n
		}
	}
}

// WithSettleDelay sets the pause between the last group and resuming discovery.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.settleDelay = d }
}

// NewOrchestrator creates an orchestrator over units, holding scan during bursts.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewOrchestrator(units UnitSource, scan ScanGuard, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		units:       units,
		scan:        scan,
		log:         zerolog.Nop(),
		clock:       clock.Real(),
		groupSize:   DefaultGroupSize,
		settleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(o)
	}

	var err error
	o.operations, err = otel.Meter(instrumentationName).Int64Counter(
		"hdm.radio.operations",
		metric.WithDescription("Per-unit radio operations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operations counter: %w", err)
	}
	return o, nil
}

// Execute applies op to every address. Addresses are processed in groups of
// the configured size; each group runs concurrently and must settle before
// the next one starts. Discovery is held for the whole burst and released
// after the settle delay. An empty target set touches nothing.
func (o *Orchestrator) Execute(ctx context.Context, op Operation, addresses []string) Report {
	report := Report{Operation: op.Name, Results: make([]Result, 0, len(addresses))}
	if len(addresses) == 0 {
		return report
	}

	o.burstMu.Lock()
	defer o.burstMu.Unlock()

	log := o.log.With().Str("operation", op.Name).Logger()
	if err := o.scan.Hold(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to stop scanning before burst")
	}
	defer func() {
		if err := o.scan.Release(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Msg("failed to resume scanning after burst")
		}
	}()

	groups := Chunk(addresses, o.groupSize)
	log.Info().Int("units", len(addresses)).Int("groups", len(groups)).Msg("burst started")

	for i, group := range groups {
		results := make([]Result, len(group))
		var wg sync.WaitGroup
		for j, address := range group {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[j] = o.apply(ctx, op, address)
			}()
		}
		wg.Wait()
		report.Results = append(report.Results, results...)
		log.Debug().Int("group", i).Strs("addresses", group).Msg("group settled")
	}

	log.Info().Int("failed", len(report.Failed())).Msg("burst finished")

	if o.settleDelay > 0 {
		select {
		case <-o.clock.After(o.settleDelay):
		case <-ctx.Done():
		}
	}
	return report
}

func (o *Orchestrator) apply(ctx context.Context, op Operation, address string) Result {
	start := o.clock.Now()

	unit, err := o.units(address)
	if err == nil {
		err = op.Apply(ctx, unit)
	}
	latency := o.clock.Now().Sub(start)

	outcome := "SUCCESS"
	if err != nil {
		outcome = outcomeCode(err)
		o.log.Error().Err(err).Str("operation", op.Name).Str("address", address).Msg("unit operation failed")
	}
	o.operations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("op", op.Name),
		attribute.String("outcome", outcome),
	))
	o.logAudit(ctx, op.Name, address, outcome, latency)

	return Result{Address: address, Err: err, Latency: latency}
}

func (o *Orchestrator) logAudit(ctx context.Context, action, address, result string, latency time.Duration) {
	if o.auditLogger != nil {
		o.auditLogger.LogAction(ctx, action, address, result, latency)
	}
}

func outcomeCode(err error) string {
	var radioErr *adapter.RadioError
	if errors.As(err, &radioErr) {
		return radioErr.Code.Error()
	}
	return "ERROR"
}
