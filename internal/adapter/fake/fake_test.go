package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hit-tracker/hdm/internal/adapter"
	"github.com/hit-tracker/hdm/internal/adaptertest"
)

func TestPeripheralConformance(t *testing.T) {
	adaptertest.RunConformance(t, func() adapter.Peripheral {
		return NewPeripheral("aa:bb:cc:dd:ee:01")
	}, adaptertest.Characteristics{
		Service:  "a800",
		Writable: "a801",
	})
}

func TestPeripheralRecordsCalls(t *testing.T) {
	ctx := context.Background()
	p := NewPeripheral("aa")

	require.NoError(t, p.Connect(ctx))
	require.NoError(t, p.DiscoverServiceAndCharacteristic(ctx, "a800", "a801"))
	require.NoError(t, p.Write(ctx, "a801", []byte{1}))
	require.NoError(t, p.Disconnect(ctx))

	assert.Equal(t, []string{"connect", "discover a800/a801", "write a801", "disconnect"}, p.Calls())
	assert.Equal(t, []Write{{Characteristic: "a801", Data: []byte{1}}}, p.Writes())
	assert.False(t, p.Connected())
}

func TestPeripheralWriteRequiresDiscovery(t *testing.T) {
	ctx := context.Background()
	p := NewPeripheral("aa")
	require.NoError(t, p.Connect(ctx))

	assert.ErrorIs(t, p.Write(ctx, "a801", []byte{1}), ErrNotConnected)
}

func TestPeripheralInjectedErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	p := NewPeripheral("aa")
	p.FailConnect(boom)

	assert.ErrorIs(t, p.Connect(ctx), boom)
	assert.False(t, p.Connected())
}

func TestPeripheralGateHonorsContext(t *testing.T) {
	p := NewPeripheral("aa")
	p.Gate()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Connect(ctx), context.Canceled)
}

func TestTrackerCountsOpenConnections(t *testing.T) {
	ctx := context.Background()
	tracker := &Tracker{}
	a := NewPeripheral("a").WithTracker(tracker)
	b := NewPeripheral("b").WithTracker(tracker)

	require.NoError(t, a.Connect(ctx))
	require.NoError(t, a.Connect(ctx))
	require.NoError(t, b.Connect(ctx))
	assert.Equal(t, 2, tracker.Open())

	require.NoError(t, a.Disconnect(ctx))
	require.NoError(t, b.Disconnect(ctx))
	assert.Equal(t, 0, tracker.Open())
	assert.Equal(t, 2, tracker.Max())
}

func TestRadioCounters(t *testing.T) {
	ctx := context.Background()
	r := NewRadio()

	require.NoError(t, r.StartScan(ctx))
	assert.True(t, r.Scanning())
	require.NoError(t, r.StopScan(ctx))
	assert.False(t, r.Scanning())
	assert.Equal(t, 1, r.Starts())
	assert.Equal(t, 1, r.Stops())

	assert.True(t, adapter.SupportsScanRestart(r))
	r.DisableRestart()
	assert.False(t, adapter.SupportsScanRestart(r))
}

func TestRadioDeliversEvents(t *testing.T) {
	r := NewRadio()
	p := NewPeripheral("aa")
	r.Advertise(Advertisement(p, []byte{1, 2}))
	r.SetPower(adapter.PoweredOn)

	ad := <-r.Advertisements()
	assert.Equal(t, "aa", ad.Address)
	assert.Equal(t, []byte{1, 2}, ad.ManufacturerData)
	assert.Equal(t, adapter.PoweredOn, <-r.PowerStates())
}
