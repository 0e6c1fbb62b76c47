package ble

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"github.com/hit-tracker/hdm/internal/adapter"
)

const (
	advertisementBuffer = 256
	powerStateBuffer    = 4
)

var errClosed = errors.New("radio closed")

// Radio implements adapter.Radio over a host Bluetooth adapter.
type Radio struct {
	bt  *bluetooth.Adapter
	log zerolog.Logger

	ads        chan adapter.Advertisement
	powerState chan adapter.PowerState

	mu       sync.Mutex
	scanDone chan struct{}
	closed   bool
}

// Option configures a Radio.
type Option func(*Radio)

// WithLogger sets the driver logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Radio) { r.log = log }
}

// WithAdapter selects a non-default host adapter.
func WithAdapter(bt *bluetooth.Adapter) Option {
	return func(r *Radio) { r.bt = bt }
}

// Open enables the host adapter and reports it as powered on.
func Open(opts ...Option) (*Radio, error) {
	r := &Radio{
		bt:         bluetooth.DefaultAdapter,
		log:        zerolog.Nop(),
		ads:        make(chan adapter.Advertisement, advertisementBuffer),
		powerState: make(chan adapter.PowerState, powerStateBuffer),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.bt.Enable(); err != nil {
		return nil, fmt.Errorf("enabling bluetooth adapter: %w", err)
	}
	r.powerState <- adapter.PoweredOn
	return r, nil
}

func (r *Radio) Advertisements() <-chan adapter.Advertisement { return r.ads }

func (r *Radio) PowerStates() <-chan adapter.PowerState { return r.powerState }

// SupportsScanRestart reports true: BlueZ accepts a stop/start cycle
// without resetting the adapter.
func (r *Radio) SupportsScanRestart() bool { return true }

// StartScan begins discovery with duplicates allowed. Results are delivered
// on Advertisements until StopScan.
func (r *Radio) StartScan(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errClosed
	}
	if r.scanDone != nil {
		return nil
	}

	done := make(chan struct{})
	r.scanDone = done

	go func() {
		defer close(done)
		err := r.bt.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			r.deliver(result)
		})
		if err != nil {
			r.log.Error().Err(err).Msg("scan ended")
			r.mu.Lock()
			if r.scanDone == done {
				r.scanDone = nil
			}
			r.mu.Unlock()
		}
	}()
	return nil
}

// StopScan ends discovery and waits for the scan loop to exit.
func (r *Radio) StopScan(ctx context.Context) error {
	r.mu.Lock()
	done := r.scanDone
	r.scanDone = nil
	r.mu.Unlock()

	if done == nil {
		return nil
	}
	if err := r.bt.StopScan(); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops discovery and reports the radio as powered off.
func (r *Radio) Close() error {
	err := r.StopScan(context.Background())

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		select {
		case r.powerState <- adapter.PoweredOff:
		default:
		}
	}
	return err
}

func (r *Radio) deliver(result bluetooth.ScanResult) {
	ad := adapter.Advertisement{
		Address:          result.Address.String(),
		LocalName:        result.LocalName(),
		RSSI:             int(result.RSSI),
		ManufacturerData: manufacturerData(result.ManufacturerData()),
	}
	ad.Peripheral = &Peripheral{bt: r.bt, address: result.Address, name: ad.Address}

	select {
	case r.ads <- ad:
	default:
		r.log.Warn().Str("address", ad.Address).Msg("advertisement dropped, consumer behind")
	}
}

// manufacturerData rebuilds the raw manufacturer-specific field: the
// little-endian company identifier followed by its data. Units encode
// their telemetry from the first byte of that field.
func manufacturerData(elements []bluetooth.ManufacturerDataElement) []byte {
	if len(elements) == 0 {
		return nil
	}
	e := elements[0]
	raw := make([]byte, 2, 2+len(e.Data))
	binary.LittleEndian.PutUint16(raw, e.CompanyID)
	return append(raw, e.Data...)
}

// uuid16 parses a short UUID such as "a801".
func uuid16(s string) (bluetooth.UUID, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return bluetooth.UUID{}, fmt.Errorf("invalid 16-bit uuid %q: %w", s, err)
	}
	return bluetooth.New16BitUUID(uint16(v)), nil
}

var (
	_ adapter.Radio          = (*Radio)(nil)
	_ adapter.RestartCapable = (*Radio)(nil)
)
