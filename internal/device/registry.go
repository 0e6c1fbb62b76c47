package device

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hit-tracker/hdm/internal/adapter"
	"github.com/hit-tracker/hdm/internal/clock"
	"github.com/hit-tracker/hdm/internal/protocol"
	"github.com/hit-tracker/hdm/internal/session"
)

// ErrNotFound is returned for addresses the registry does not know.
var ErrNotFound = errors.New("unit not found")

// Defaults for a registry built without options.
const (
	DefaultStaleAfter   = 10 * time.Minute
	DefaultBatteryLevel = 100
)

// Unit is the state of one game unit.
type Unit struct {
	Address         string    `json:"address"`
	LocalName       string    `json:"localName,omitempty"`
	TxPowerLevel    int       `json:"txPowerLevel"`
	RSSI            int       `json:"rssi"`
	BatteryLevel    int       `json:"batteryLevel"`
	Active          bool      `json:"active"`
	LastSeen        time.Time `json:"lastSeen"`
	ZoneHits        []int     `json:"zoneHits"`
	LastHitSnapshot []int     `json:"lastHitSnapshot"`
}

func (u Unit) clone() Unit {
	u.ZoneHits = slices.Clone(u.ZoneHits)
	u.LastHitSnapshot = slices.Clone(u.LastHitSnapshot)
	return u
}

// Observation is the outcome of applying one advertisement.
type Observation struct {
	Unit    Unit
	Created bool

	// Hits holds the zero-based zones whose counter increased.
	Hits []int

	// DecodeErr is set when the payload could not be decoded. The unit's
	// telemetry is left unchanged in that case.
	DecodeErr error
}

// SessionFactory builds the session for a newly discovered unit.
type SessionFactory func(address string, peripheral adapter.Peripheral) *session.Session

type entry struct {
	unit    Unit
	session *session.Session
}

// Registry holds known units keyed by address.
type Registry struct {
	mu         sync.RWMutex
	units      map[string]*entry
	zoneCount  int
	staleAfter time.Duration
	clock      clock.Clock
	newSession SessionFactory
}

// Option configures a Registry.
type Option func(*Registry)

// WithZoneCount sets the length of every unit's hit counters.
func WithZoneCount(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.zoneCount = n
		}
	}
}

// WithStaleAfter sets how long a unit may stay unseen before eviction.
func WithStaleAfter(d time.Duration) Option {
	return func(r *Registry) { r.staleAfter = d }
}

// WithClock sets the time source for last-seen bookkeeping.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithSessionFactory sets how sessions are built for new units.
func WithSessionFactory(f SessionFactory) Option {
	return func(r *Registry) { r.newSession = f }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		units:      make(map[string]*entry),
		zoneCount:  protocol.DefaultZoneCount,
		staleAfter: DefaultStaleAfter,
		clock:      clock.Real(),
		newSession: func(address string, p adapter.Peripheral) *session.Session {
			return session.New(address, p)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe records an advertisement. A new address creates a unit; a known
// one refreshes its last-seen time. Decoded telemetry is then applied with
// hit edges computed against the unit's previous frame.
func (r *Registry) Observe(ad adapter.Advertisement) Observation {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var obs Observation

	e, exists := r.units[ad.Address]
	if !exists {
		e = &entry{
			unit: Unit{
				Address:         ad.Address,
				TxPowerLevel:    ad.TxPowerLevel,
				BatteryLevel:    DefaultBatteryLevel,
				ZoneHits:        make([]int, r.zoneCount),
				LastHitSnapshot: make([]int, r.zoneCount),
			},
		}
		if ad.Peripheral != nil {
			e.session = r.newSession(ad.Address, ad.Peripheral)
		}
		r.units[ad.Address] = e
		obs.Created = true
	} else if e.session == nil && ad.Peripheral != nil {
		e.session = r.newSession(ad.Address, ad.Peripheral)
	}

	u := &e.unit
	u.LastSeen = now
	u.RSSI = ad.RSSI
	if ad.LocalName != "" {
		u.LocalName = ad.LocalName
	}

	telemetry, err := protocol.DecodeTelemetry(ad.ManufacturerData)
	if err != nil {
		obs.DecodeErr = err
	} else {
		obs.Hits = r.apply(u, telemetry)
	}

	obs.Unit = u.clone()
	return obs
}

// apply writes telemetry into u. Counters beyond the three carried by the
// payload are left untouched.
func (r *Registry) apply(u *Unit, t protocol.Telemetry) []int {
	u.Active = t.Active
	u.BatteryLevel = t.BatteryLevel

	previous := slices.Clone(u.ZoneHits)
	current := slices.Clone(u.ZoneHits)
	copy(current, t.ZoneHits[:])

	hits := protocol.DetectHits(previous, current)
	u.LastHitSnapshot = previous
	u.ZoneHits = current
	return hits
}

// Get returns a copy of the unit at address.
func (r *Registry) Get(address string) (Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.units[address]
	if !exists {
		return Unit{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return e.unit.clone(), nil
}

// Has reports whether address is known.
func (r *Registry) Has(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.units[address]
	return exists
}

// Addresses returns every known address, sorted.
func (r *Registry) Addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addresses := make([]string, 0, len(r.units))
	for address := range r.units {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses
}

// Len returns the number of known units.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// Session returns the session of the unit at address.
func (r *Registry) Session(address string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.units[address]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	if e.session == nil {
		return nil, fmt.Errorf("unit %s has no connectable peripheral: %w", address, adapter.ErrUnavailable)
	}
	return e.session, nil
}

// ResetHits zeroes the counters and the edge baseline of the unit at address.
func (r *Registry) ResetHits(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.units[address]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	clear(e.unit.ZoneHits)
	clear(e.unit.LastHitSnapshot)
	return nil
}

// Sweep evicts every unit unseen for longer than the staleness threshold
// and returns the evicted addresses, sorted.
func (r *Registry) Sweep() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var evicted []string
	for address, e := range r.units {
		if now.Sub(e.unit.LastSeen) > r.staleAfter {
			delete(r.units, address)
			evicted = append(evicted, address)
		}
	}
	sort.Strings(evicted)
	return evicted
}
