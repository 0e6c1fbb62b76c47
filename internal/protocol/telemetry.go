package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Telemetry payload layout.
const (
	offsetActive    = 0
	offsetBattery   = 1
	offsetZoneHits  = 2
	zoneCounterSize = 2

	// TelemetryLength is the minimum payload size for a 3-zone unit.
	TelemetryLength = offsetZoneHits + DefaultZoneCount*zoneCounterSize
)

var (
	// ErrNoPayload indicates the advertisement carried no manufacturer data.
	ErrNoPayload = errors.New("telemetry payload missing")

	// ErrShortPayload indicates the manufacturer data is smaller than the fixed layout.
	ErrShortPayload = errors.New("telemetry payload too short")
)

// Telemetry is a decoded unit broadcast.
type Telemetry struct {
	Active       bool
	BatteryLevel int
	ZoneHits     [DefaultZoneCount]int
}

// DecodeTelemetry parses a unit broadcast payload.
//
// Byte 0 is the armed flag (non-zero = armed), byte 1 the battery percentage
// and bytes 2..7 three little-endian uint16 zone counters. Trailing bytes are
// ignored.
func DecodeTelemetry(payload []byte) (Telemetry, error) {
	if payload == nil {
		return Telemetry{}, ErrNoPayload
	}
	if len(payload) < TelemetryLength {
		return Telemetry{}, fmt.Errorf("%w: got %d bytes, need %d", ErrShortPayload, len(payload), TelemetryLength)
	}

	t := Telemetry{
		Active:       payload[offsetActive] != 0,
		BatteryLevel: int(payload[offsetBattery]),
	}
	for zone := 0; zone < DefaultZoneCount; zone++ {
		offset := offsetZoneHits + zone*zoneCounterSize
		t.ZoneHits[zone] = int(binary.LittleEndian.Uint16(payload[offset:]))
	}

	return t, nil
}
