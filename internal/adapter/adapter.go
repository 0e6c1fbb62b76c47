package adapter

import (
	"context"
)

// Advertisement is one discovery event delivered by the radio driver.
type Advertisement struct {
	Address      string
	LocalName    string
	RSSI         int
	TxPowerLevel int

	// ManufacturerData is the raw manufacturer payload, nil when the
	// advertisement carried none.
	ManufacturerData []byte

	// Peripheral is the connectable handle for this address.
	Peripheral Peripheral
}

// Peripheral is the connectable side of a unit.
type Peripheral interface {
	// Connect opens a connection to the unit.
	Connect(ctx context.Context) error

	// Disconnect releases the connection.
	Disconnect(ctx context.Context) error

	// DiscoverServiceAndCharacteristic resolves a single characteristic
	// of a single service so it can be written.
	DiscoverServiceAndCharacteristic(ctx context.Context, serviceUUID, characteristicUUID string) error

	// Write writes data to a previously discovered characteristic.
	Write(ctx context.Context, characteristicUUID string, data []byte) error
}

// Scanner starts and stops discovery.
type Scanner interface {
	StartScan(ctx context.Context) error
	StopScan(ctx context.Context) error
}

// PowerState is the radio adapter power state.
type PowerState int

const (
	PoweredOff PowerState = iota
	PoweredOn
)

func (s PowerState) String() string {
	if s == PoweredOn {
		return "poweredOn"
	}
	return "poweredOff"
}

// Radio is a complete driver: a scanner plus its event streams.
type Radio interface {
	Scanner

	// Advertisements delivers discovery events in the order they were received.
	Advertisements() <-chan Advertisement

	// PowerStates delivers adapter power transitions.
	PowerStates() <-chan PowerState
}

// RestartCapable is implemented by scanners that can report whether a
// periodic stop/start of discovery is safe without resetting the adapter.
type RestartCapable interface {
	SupportsScanRestart() bool
}

// SupportsScanRestart reports whether periodic scan restarts should run for s.
// Scanners that do not implement RestartCapable are assumed to support it.
func SupportsScanRestart(s Scanner) bool {
	if rc, ok := s.(RestartCapable); ok {
		return rc.SupportsScanRestart()
	}
	return true
}
