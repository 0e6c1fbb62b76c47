// Package scan controls radio discovery.
//
// Start and Stop are idempotent. Connection bursts take a hold for their
// duration: the first hold stops discovery and the last release restores
// whatever state was requested. A periodic restart keeps long-running
// scans from stalling.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hit-tracker/hdm/internal/adapter"
	"github.com/hit-tracker/hdm/internal/clock"
)

// DefaultRestartInterval is the self-healing restart period.
const DefaultRestartInterval = 10 * time.Minute

// Controller serializes every call into the underlying scanner.
type Controller struct {
	scanner         adapter.Scanner
	log             zerolog.Logger
	clock           clock.Clock
	restartInterval time.Duration

	mu       sync.Mutex
	scanning bool
	wanted   bool
	holds    int
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithRestartInterval sets the restart period. Zero disables restarts.
func WithRestartInterval(d time.Duration) Option {
	return func(c *Controller) { c.restartInterval = d }
}

// NewController wraps scanner.
func NewController(scanner adapter.Scanner, opts ...Option) *Controller {
	c := &Controller{
		scanner:         scanner,
		log:             zerolog.Nop(),
		clock:           clock.Real(),
		restartInterval: DefaultRestartInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start requests discovery. While a burst holds the radio the request is
// recorded and applied on release.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wanted = true
	if c.holds > 0 {
		c.log.Debug().Int("holds", c.holds).Msg("scan start deferred until burst completes")
		return nil
	}
	return c.startLocked(ctx)
}

// Stop ends discovery.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wanted = false
	return c.stopLocked(ctx)
}

// Hold stops discovery for a connection burst. Every Hold must be paired
// with a Release.
func (c *Controller) Hold(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.holds++
	return c.stopLocked(ctx)
}

// Release ends a hold. The last release resumes discovery if it was requested.
func (c *Controller) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.holds > 0 {
		c.holds--
	}
	if c.holds > 0 || !c.wanted {
		return nil
	}
	return c.startLocked(ctx)
}

// Restart stops and starts discovery. It is skipped while a burst holds
// the radio, when discovery was not requested, or when the scanner cannot
// restart without an adapter reset. Reports whether a restart happened.
func (c *Controller) Restart(ctx context.Context) (bool, error) {
	if !adapter.SupportsScanRestart(c.scanner) {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.holds > 0 || !c.wanted {
		return false, nil
	}

	if err := c.scanner.StopScan(ctx); err != nil {
		c.log.Warn().Err(err).Msg("stop before restart failed")
	}
	c.scanning = false
	if err := c.startLocked(ctx); err != nil {
		return false, err
	}
	c.log.Info().Msg("scan restarted")
	return true, nil
}

// Run restarts discovery every restart interval until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	if c.restartInterval <= 0 {
		return
	}
	if !adapter.SupportsScanRestart(c.scanner) {
		c.log.Info().Msg("scanner does not support restart, periodic restart disabled")
		return
	}

	ticker := c.clock.NewTicker(c.restartInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, err := c.Restart(ctx); err != nil {
				c.log.Error().Err(err).Msg("scan restart failed")
			}
		}
	}
}

// Scanning reports whether discovery is currently on.
func (c *Controller) Scanning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanning
}

// Held reports whether a burst currently holds the radio.
func (c *Controller) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holds > 0
}

func (c *Controller) startLocked(ctx context.Context) error {
	if c.scanning {
		return nil
	}
	if err := c.scanner.StartScan(ctx); err != nil {
		return adapter.NormalizeDriverError("startScan", "", err)
	}
	c.scanning = true
	c.log.Info().Msg("scanning started")
	return nil
}

func (c *Controller) stopLocked(ctx context.Context) error {
	if !c.scanning {
		return nil
	}
	if err := c.scanner.StopScan(ctx); err != nil {
		return adapter.NormalizeDriverError("stopScan", "", err)
	}
	c.scanning = false
	c.log.Info().Msg("scanning stopped")
	return nil
}
