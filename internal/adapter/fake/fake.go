// Package fake provides deterministic in-memory radio drivers for tests.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hit-tracker/hdm/internal/adapter"
)

// ErrNotConnected is returned by discover and write on a peripheral that
// has no open connection.
var ErrNotConnected = errors.New("peripheral not connected")

// Write is one recorded characteristic write.
type Write struct {
	Characteristic string
	Data           []byte
}

// Tracker counts open connections across a set of peripherals.
type Tracker struct {
	mu      sync.Mutex
	current int
	max     int
}

func (t *Tracker) open() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current++
	if t.current > t.max {
		t.max = t.current
	}
}

func (t *Tracker) close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current--
}

// Max returns the highest number of simultaneously open connections seen.
func (t *Tracker) Max() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.max
}

// Open returns the number of connections currently open.
func (t *Tracker) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Peripheral implements adapter.Peripheral and records every call.
type Peripheral struct {
	Address string

	mu            sync.Mutex
	connected     bool
	discovered    map[string]bool
	calls         []string
	writes        []Write
	connectErr    error
	discoverErr   error
	writeErr      error
	disconnectErr error
	gate          chan struct{}
	tracker       *Tracker
}

// NewPeripheral returns a connectable peripheral for address.
func NewPeripheral(address string) *Peripheral {
	return &Peripheral{
		Address:    address,
		discovered: make(map[string]bool),
	}
}

// WithTracker attaches a shared connection tracker.
func (p *Peripheral) WithTracker(t *Tracker) *Peripheral {
	p.tracker = t
	return p
}

// FailConnect makes every subsequent Connect return err.
func (p *Peripheral) FailConnect(err error) { p.setErr(&p.connectErr, err) }

// FailDiscover makes every subsequent discovery return err.
func (p *Peripheral) FailDiscover(err error) { p.setErr(&p.discoverErr, err) }

// FailWrite makes every subsequent Write return err.
func (p *Peripheral) FailWrite(err error) { p.setErr(&p.writeErr, err) }

// FailDisconnect makes every subsequent Disconnect return err.
func (p *Peripheral) FailDisconnect(err error) { p.setErr(&p.disconnectErr, err) }

func (p *Peripheral) setErr(target *error, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*target = err
}

// Gate makes Connect block until the returned channel is closed or the
// context ends.
func (p *Peripheral) Gate() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate = make(chan struct{})
	return p.gate
}

func (p *Peripheral) Connect(ctx context.Context) error {
	p.mu.Lock()
	gate := p.gate
	p.calls = append(p.calls, "connect")
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connectErr != nil {
		return p.connectErr
	}
	if !p.connected {
		p.connected = true
		p.tracker.open()
	}
	return nil
}

func (p *Peripheral) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "disconnect")
	if p.disconnectErr != nil {
		return p.disconnectErr
	}
	if p.connected {
		p.connected = false
		p.discovered = make(map[string]bool)
		p.tracker.close()
	}
	return nil
}

func (p *Peripheral) DiscoverServiceAndCharacteristic(ctx context.Context, serviceUUID, characteristicUUID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, fmt.Sprintf("discover %s/%s", serviceUUID, characteristicUUID))
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.discoverErr != nil {
		return p.discoverErr
	}
	if !p.connected {
		return ErrNotConnected
	}
	p.discovered[characteristicUUID] = true
	return nil
}

func (p *Peripheral) Write(ctx context.Context, characteristicUUID string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "write "+characteristicUUID)
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.writeErr != nil {
		return p.writeErr
	}
	if !p.connected || !p.discovered[characteristicUUID] {
		return ErrNotConnected
	}
	p.writes = append(p.writes, Write{Characteristic: characteristicUUID, Data: append([]byte(nil), data...)})
	return nil
}

// Calls returns the operations invoked so far, in order.
func (p *Peripheral) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Writes returns the successful writes, in order.
func (p *Peripheral) Writes() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Write(nil), p.writes...)
}

// Connected reports whether a connection is open.
func (p *Peripheral) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Radio implements adapter.Radio with counters and injectable failures.
type Radio struct {
	mu         sync.Mutex
	starts     int
	stops      int
	scanning   bool
	startErr   error
	stopErr    error
	noRestart  bool
	ads        chan adapter.Advertisement
	powerState chan adapter.PowerState
}

// NewRadio returns a radio with buffered event streams.
func NewRadio() *Radio {
	return &Radio{
		ads:        make(chan adapter.Advertisement, 64),
		powerState: make(chan adapter.PowerState, 4),
	}
}

func (r *Radio) StartScan(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	r.scanning = true
	return nil
}

func (r *Radio) StopScan(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	if r.stopErr != nil {
		return r.stopErr
	}
	r.scanning = false
	return nil
}

func (r *Radio) Advertisements() <-chan adapter.Advertisement { return r.ads }

func (r *Radio) PowerStates() <-chan adapter.PowerState { return r.powerState }

func (r *Radio) SupportsScanRestart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.noRestart
}

// DisableRestart marks the radio as unable to restart scans.
func (r *Radio) DisableRestart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noRestart = true
}

// FailStart makes StartScan return err.
func (r *Radio) FailStart(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

// FailStop makes StopScan return err.
func (r *Radio) FailStop(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopErr = err
}

// Advertise queues a discovery event.
func (r *Radio) Advertise(ad adapter.Advertisement) { r.ads <- ad }

// SetPower queues a power state transition.
func (r *Radio) SetPower(state adapter.PowerState) { r.powerState <- state }

// Close ends both event streams.
func (r *Radio) Close() {
	close(r.ads)
	close(r.powerState)
}

// Starts returns how many times StartScan was called.
func (r *Radio) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Stops returns how many times StopScan was called.
func (r *Radio) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// Scanning reports whether discovery is currently on.
func (r *Radio) Scanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanning
}

// Advertisement builds a discovery event for p carrying payload.
func Advertisement(p *Peripheral, payload []byte) adapter.Advertisement {
	return adapter.Advertisement{
		Address:          p.Address,
		LocalName:        "HitTracker",
		RSSI:             -60,
		TxPowerLevel:     4,
		ManufacturerData: payload,
		Peripheral:       p,
	}
}
