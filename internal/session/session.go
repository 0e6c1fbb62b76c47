package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hit-tracker/hdm/internal/adapter"
	"github.com/hit-tracker/hdm/internal/protocol"
)

// ErrNotReady is returned by Write outside the Ready state.
var ErrNotReady = errors.New("session not ready")

// State is a session lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Discovering
	Ready
	Disconnecting
)

var stateNames = [...]string{"disconnected", "connecting", "connected", "discovering", "ready", "disconnecting"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithConnectTimeout bounds the connect step. Zero leaves it to the driver.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Session) { s.connectTimeout = d }
}

// WithDriver selects the driver error table used to normalize failures.
func WithDriver(driverID string) Option {
	return func(s *Session) { s.driver = driverID }
}

// WithDisarmHook registers fn to run after a successful disarm write.
func WithDisarmHook(fn func(address string)) Option {
	return func(s *Session) { s.onDisarm = fn }
}

// Session drives one peripheral through connect, discover, write, disconnect.
type Session struct {
	address        string
	peripheral     adapter.Peripheral
	log            zerolog.Logger
	connectTimeout time.Duration
	driver         string
	onDisarm       func(address string)

	// opMu serializes whole command sequences.
	opMu sync.Mutex

	mu             sync.Mutex
	state          State
	characteristic string
}

// New creates a disconnected session for the peripheral at address.
func New(address string, peripheral adapter.Peripheral, opts ...Option) *Session {
	s := &Session{
		address:    address,
		peripheral: peripheral,
		log:        zerolog.Nop(),
		driver:     "generic",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("address", address).Logger()
	return s
}

// Address returns the unit address.
func (s *Session) Address() string { return s.address }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(from []State, to State) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range from {
		if s.state == f {
			s.state = to
			return f, true
		}
	}
	return s.state, false
}

func (s *Session) set(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if state != Ready {
		s.characteristic = ""
	}
}

// Connect opens the connection. It is a no-op unless the session is
// Disconnected.
func (s *Session) Connect(ctx context.Context) error {
	if current, ok := s.transition([]State{Disconnected}, Connecting); !ok {
		s.log.Debug().Stringer("state", current).Msg("connect skipped")
		return nil
	}

	if s.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.connectTimeout)
		defer cancel()
	}

	s.log.Debug().Msg("connecting")
	if err := s.peripheral.Connect(ctx); err != nil {
		s.set(Disconnected)
		return s.normalize("connect", err)
	}
	s.set(Connected)
	return nil
}

// Discover resolves characteristic on the game service and moves the
// session to Ready.
func (s *Session) Discover(ctx context.Context, characteristic string) error {
	if current, ok := s.transition([]State{Connected, Ready}, Discovering); !ok {
		return fmt.Errorf("discover in state %s: %w", current, ErrNotReady)
	}

	if err := s.peripheral.DiscoverServiceAndCharacteristic(ctx, protocol.GameServiceUUID, characteristic); err != nil {
		s.set(Connected)
		return s.normalize("discover", err)
	}

	s.mu.Lock()
	s.state = Ready
	s.characteristic = characteristic
	s.mu.Unlock()
	return nil
}

// Write sends data to the discovered characteristic.
func (s *Session) Write(ctx context.Context, characteristic string, data []byte) error {
	s.mu.Lock()
	ready := s.state == Ready && s.characteristic == characteristic
	state := s.state
	s.mu.Unlock()
	if !ready {
		return fmt.Errorf("write %s in state %s: %w", characteristic, state, ErrNotReady)
	}

	if err := s.peripheral.Write(ctx, characteristic, data); err != nil {
		return s.normalize("write", err)
	}
	return nil
}

// Disconnect releases the connection. It is a no-op when already
// disconnected or disconnecting. The session ends Disconnected even when
// the driver reports an error.
func (s *Session) Disconnect(ctx context.Context) error {
	if _, ok := s.transition([]State{Connecting, Connected, Discovering, Ready}, Disconnecting); !ok {
		return nil
	}
	defer s.set(Disconnected)

	if err := s.peripheral.Disconnect(ctx); err != nil {
		return s.normalize("disconnect", err)
	}
	return nil
}

func (s *Session) normalize(op string, err error) error {
	return adapter.NormalizeDriverErrorWithDriver(op, s.address, err, s.driver)
}

// run performs connect, discover, one write per frame, disconnect.
func (s *Session) run(ctx context.Context, characteristic string, frames [][]byte) (err error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	defer func() {
		if derr := s.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			s.log.Warn().Err(derr).Msg("disconnect failed")
			if err == nil {
				err = derr
			}
		}
	}()

	if err := s.Connect(ctx); err != nil {
		return err
	}
	if err := s.Discover(ctx, characteristic); err != nil {
		return err
	}
	for i, frame := range frames {
		if err := s.Write(ctx, characteristic, frame); err != nil {
			if len(frames) > 1 {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			return err
		}
	}
	return nil
}

// SetGameStatus arms or disarms the unit. A successful disarm runs the
// disarm hook so the unit's hit baselines start from zero.
func (s *Session) SetGameStatus(ctx context.Context, status protocol.GameStatus) error {
	if err := s.run(ctx, protocol.GameStatusCharUUID, [][]byte{protocol.EncodeGameStatus(status)}); err != nil {
		return err
	}
	s.log.Info().Stringer("status", status).Msg("game status written")
	if status == protocol.Disarmed && s.onDisarm != nil {
		s.onDisarm(s.address)
	}
	return nil
}

// SetLedConfiguration writes one frame per zone, in zone order. The
// configuration is encoded before any radio operation.
func (s *Session) SetLedConfiguration(ctx context.Context, cfg protocol.ZonesConfig) error {
	frames, err := protocol.EncodeZones(cfg)
	if err != nil {
		return err
	}
	if err := s.run(ctx, protocol.LedConfigCharUUID, frames); err != nil {
		return err
	}
	s.log.Info().Int("zones", len(frames)).Msg("led configuration written")
	return nil
}
