package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hit-tracker/hdm/internal/adapter"
	"github.com/hit-tracker/hdm/internal/adapter/fake"
	"github.com/hit-tracker/hdm/internal/clock"
	"github.com/hit-tracker/hdm/internal/protocol"
	"github.com/hit-tracker/hdm/internal/session"
)

// MockScanGuard records hold/release calls.
type MockScanGuard struct {
	mu       sync.Mutex
	calls    []string
	HoldFunc func(ctx context.Context) error
}

func (m *MockScanGuard) Hold(ctx context.Context) error {
	m.mu.Lock()
	m.calls = append(m.calls, "hold")
	m.mu.Unlock()
	if m.HoldFunc != nil {
		return m.HoldFunc(ctx)
	}
	return nil
}

func (m *MockScanGuard) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "release")
	return nil
}

func (m *MockScanGuard) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockAuditLogger captures audit records.
type MockAuditLogger struct {
	mu      sync.Mutex
	records []string
}

func (m *MockAuditLogger) LogAction(ctx context.Context, action, address, result string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, fmt.Sprintf("%s %s %s", action, address, result))
}

type fleet struct {
	peripherals map[string]*fake.Peripheral
	sessions    map[string]*session.Session
	tracker     *fake.Tracker
	addresses   []string
}

func newFleet(n int) *fleet {
	f := &fleet{
		peripherals: make(map[string]*fake.Peripheral),
		sessions:    make(map[string]*session.Session),
		tracker:     &fake.Tracker{},
	}
	for i := 0; i < n; i++ {
		address := fmt.Sprintf("unit-%02d", i)
		p := fake.NewPeripheral(address).WithTracker(f.tracker)
		f.peripherals[address] = p
		f.sessions[address] = session.New(address, p)
		f.addresses = append(f.addresses, address)
	}
	return f
}

func (f *fleet) source(address string) (Unit, error) {
	s, ok := f.sessions[address]
	if !ok {
		return nil, fmt.Errorf("unknown %s", address)
	}
	return s, nil
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		size     int
		expected [][]string
	}{
		{"empty", nil, 3, nil},
		{"exact", []string{"a", "b", "c"}, 3, [][]string{{"a", "b", "c"}}},
		{"short tail", []string{"a", "b", "c", "d", "e"}, 3, [][]string{{"a", "b", "c"}, {"d", "e"}}},
		{"single", []string{"a"}, 3, [][]string{{"a"}}},
		{"non-positive size", []string{"a", "b"}, 0, [][]string{{"a", "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Chunk(tt.input, tt.size))
		})
	}
}

func TestChunkCoversEveryAddressOnceInOrder(t *testing.T) {
	for n := 0; n <= 20; n++ {
		addresses := make([]string, n)
		for i := range addresses {
			addresses[i] = fmt.Sprintf("u%d", i)
		}

		groups := Chunk(addresses, 3)
		var flat []string
		for i, g := range groups {
			assert.LessOrEqual(t, len(g), 3)
			if i < len(groups)-1 {
				assert.Len(t, g, 3)
			}
			flat = append(flat, g...)
		}
		if n == 0 {
			assert.Empty(t, flat)
			continue
		}
		assert.Equal(t, addresses, flat)
	}
}

func TestChunkGroupsDoNotAlias(t *testing.T) {
	groups := Chunk([]string{"a", "b", "c", "d"}, 2)
	groups[0] = append(groups[0], "x")
	assert.Equal(t, []string{"c", "d"}, groups[1])
}

func TestExecuteArmsEveryUnit(t *testing.T) {
	f := newFleet(7)
	guard := &MockScanGuard{}
	audit := &MockAuditLogger{}
	o, err := NewOrchestrator(f.source, guard, WithSettleDelay(0), WithAuditLogger(audit))
	require.NoError(t, err)

	report := o.Execute(context.Background(), Arm(), f.addresses)

	require.NoError(t, report.Err())
	assert.Equal(t, "arm", report.Operation)
	require.Len(t, report.Results, 7)
	for i, res := range report.Results {
		assert.Equal(t, f.addresses[i], res.Address)
	}
	for _, p := range f.peripherals {
		assert.Equal(t, []fake.Write{{Characteristic: protocol.GameStatusCharUUID, Data: []byte{1}}}, p.Writes())
		assert.False(t, p.Connected())
	}
	assert.Equal(t, []string{"hold", "release"}, guard.Calls())
	assert.Len(t, audit.records, 7)
	assert.LessOrEqual(t, f.tracker.Max(), DefaultGroupSize)
}

func TestExecuteNeverExceedsGroupSize(t *testing.T) {
	f := newFleet(8)
	gates := make(map[string]chan struct{})
	for address, p := range f.peripherals {
		gates[address] = p.Gate()
	}
	o, err := NewOrchestrator(f.source, &MockScanGuard{}, WithSettleDelay(0))
	require.NoError(t, err)

	done := make(chan Report)
	go func() { done <- o.Execute(context.Background(), Disarm(), f.addresses) }()

	// Release connects one group at a time, checking nobody from the next
	// group has started before the current one settles.
	for _, group := range Chunk(f.addresses, DefaultGroupSize) {
		for _, address := range group {
			p := f.peripherals[address]
			require.Eventually(t, func() bool { return len(p.Calls()) > 0 }, time.Second, time.Millisecond)
		}
		for _, address := range f.addresses {
			if contains(group, address) {
				continue
			}
			if calls := f.peripherals[address].Calls(); len(calls) > 0 {
				assert.Contains(t, calls, "disconnect", "%s should be from an earlier group", address)
			}
		}
		for _, address := range group {
			close(gates[address])
		}
	}

	report := <-done
	require.NoError(t, report.Err())
	assert.LessOrEqual(t, f.tracker.Max(), DefaultGroupSize)
	assert.Equal(t, 0, f.tracker.Open())
}

func TestExecuteIsolatesFailures(t *testing.T) {
	f := newFleet(6)
	f.peripherals["unit-01"].FailConnect(errors.New("connection timed out"))
	f.peripherals["unit-04"].FailWrite(errors.New("device busy"))
	audit := &MockAuditLogger{}
	o, err := NewOrchestrator(f.source, &MockScanGuard{}, WithSettleDelay(0), WithAuditLogger(audit))
	require.NoError(t, err)

	report := o.Execute(context.Background(), Arm(), f.addresses)

	failed := report.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "unit-01", failed[0].Address)
	assert.ErrorIs(t, failed[0].Err, adapter.ErrTimeout)
	assert.Equal(t, "unit-04", failed[1].Address)
	assert.ErrorIs(t, failed[1].Err, adapter.ErrBusy)
	assert.ErrorIs(t, report.Err(), adapter.ErrTimeout)

	for address, p := range f.peripherals {
		if address == "unit-01" || address == "unit-04" {
			continue
		}
		assert.Len(t, p.Writes(), 1, address)
	}
	assert.Contains(t, audit.records, "arm unit-01 TIMEOUT")
	assert.Contains(t, audit.records, "arm unit-04 BUSY")
	assert.Contains(t, audit.records, "arm unit-00 SUCCESS")
}

func TestExecuteUnknownUnitIsPerUnitFailure(t *testing.T) {
	f := newFleet(2)
	o, err := NewOrchestrator(f.source, &MockScanGuard{}, WithSettleDelay(0))
	require.NoError(t, err)

	report := o.Execute(context.Background(), Arm(), []string{"unit-00", "ghost", "unit-01"})

	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "ghost", report.Failed()[0].Address)
}

func TestExecuteEmptyTargetsTouchesNothing(t *testing.T) {
	guard := &MockScanGuard{}
	o, err := NewOrchestrator(func(string) (Unit, error) { return nil, errors.New("unused") }, guard)
	require.NoError(t, err)

	report := o.Execute(context.Background(), Arm(), nil)
	assert.Empty(t, report.Results)
	assert.NoError(t, report.Err())
	assert.Empty(t, guard.Calls())
}

func TestExecuteContinuesWhenHoldFails(t *testing.T) {
	f := newFleet(1)
	guard := &MockScanGuard{HoldFunc: func(context.Context) error { return errors.New("stop failed") }}
	o, err := NewOrchestrator(f.source, guard, WithSettleDelay(0))
	require.NoError(t, err)

	report := o.Execute(context.Background(), Arm(), f.addresses)
	assert.NoError(t, report.Err())
	assert.Equal(t, []string{"hold", "release"}, guard.Calls())
}

func TestExecuteWaitsSettleDelayBeforeRelease(t *testing.T) {
	f := newFleet(2)
	guard := &MockScanGuard{}
	fc := clock.Fake(time.Unix(0, 0))
	o, err := NewOrchestrator(f.source, guard, WithClock(fc), WithSettleDelay(5*time.Second))
	require.NoError(t, err)

	done := make(chan Report)
	go func() { done <- o.Execute(context.Background(), Arm(), f.addresses) }()

	require.Eventually(t, func() bool { return fc.Pending() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"hold"}, guard.Calls())

	fc.Advance(5 * time.Second)
	<-done
	assert.Equal(t, []string{"hold", "release"}, guard.Calls())
}

func TestExecuteSerializesBursts(t *testing.T) {
	f := newFleet(2)
	gate := f.peripherals["unit-00"].Gate()
	guard := &MockScanGuard{}
	o, err := NewOrchestrator(f.source, guard, WithSettleDelay(0))
	require.NoError(t, err)

	first := make(chan Report)
	go func() { first <- o.Execute(context.Background(), Arm(), []string{"unit-00"}) }()
	require.Eventually(t, func() bool { return len(f.peripherals["unit-00"].Calls()) == 1 }, time.Second, time.Millisecond)

	second := make(chan Report)
	go func() { second <- o.Execute(context.Background(), Arm(), []string{"unit-01"}) }()

	select {
	case <-second:
		t.Fatal("second burst ran while the first was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Empty(t, f.peripherals["unit-01"].Calls())

	close(gate)
	<-first
	<-second
	assert.Equal(t, []string{"hold", "release", "hold", "release"}, guard.Calls())
}

func TestSetLedConfigurationOperation(t *testing.T) {
	f := newFleet(1)
	o, err := NewOrchestrator(f.source, &MockScanGuard{}, WithSettleDelay(0))
	require.NoError(t, err)

	cfg := protocol.ZonesConfig{
		GameType: protocol.GameBlink,
		Zones: []protocol.ZoneConfig{
			{Pattern: protocol.PatternRainbow},
			{Pattern: protocol.PatternSolid, Color: protocol.Color{Red: 1}},
		},
	}
	report := o.Execute(context.Background(), SetLedConfiguration(cfg), f.addresses)

	require.NoError(t, report.Err())
	assert.Equal(t, "setLedConfiguration", report.Operation)
	assert.Len(t, f.peripherals["unit-00"].Writes(), 2)
}

func TestOperationNames(t *testing.T) {
	assert.Equal(t, "arm", Arm().Name)
	assert.Equal(t, "disarm", Disarm().Name)
	assert.Equal(t, "disarm", SetGameStatus(protocol.Disarmed).Name)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
