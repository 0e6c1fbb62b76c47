package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"

	"github.com/hit-tracker/hdm/internal/protocol"
)

func TestManufacturerData(t *testing.T) {
	assert.Nil(t, manufacturerData(nil))

	raw := manufacturerData([]bluetooth.ManufacturerDataElement{
		{CompanyID: 0x5a01, Data: []byte{0x03, 0x00, 0x00, 0x00, 0x00, 0x00}},
	})
	assert.Equal(t, []byte{0x01, 0x5a, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00}, raw)

	telemetry, err := protocol.DecodeTelemetry(raw)
	require.NoError(t, err)
	assert.True(t, telemetry.Active)
	assert.Equal(t, 0x5a, telemetry.BatteryLevel)
	assert.Equal(t, [3]int{3, 0, 0}, telemetry.ZoneHits)
}

func TestUUID16(t *testing.T) {
	u, err := uuid16(protocol.GameStatusCharUUID)
	require.NoError(t, err)
	assert.Equal(t, bluetooth.New16BitUUID(0xa801), u)

	_, err = uuid16("not-a-uuid")
	assert.Error(t, err)
}
