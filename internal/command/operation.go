package command

import (
	"context"

	"github.com/hit-tracker/hdm/internal/protocol"
)

// Operation is a named per-unit action.
type Operation struct {
	Name  string
	Apply func(ctx context.Context, unit Unit) error
}

// SetGameStatus returns the arm or disarm operation.
func SetGameStatus(status protocol.GameStatus) Operation {
	name := "arm"
	if status == protocol.Disarmed {
		name = "disarm"
	}
	return Operation{
		Name: name,
		Apply: func(ctx context.Context, unit Unit) error {
			return unit.SetGameStatus(ctx, status)
		},
	}
}

// Arm writes 1 to the game status characteristic.
func Arm() Operation { return SetGameStatus(protocol.Armed) }

// Disarm writes 0 to the game status characteristic.
func Disarm() Operation { return SetGameStatus(protocol.Disarmed) }

// SetLedConfiguration writes a full LED configuration set.
func SetLedConfiguration(cfg protocol.ZonesConfig) Operation {
	return Operation{
		Name: "setLedConfiguration",
		Apply: func(ctx context.Context, unit Unit) error {
			return unit.SetLedConfiguration(ctx, cfg)
		},
	}
}

// Chunk splits addresses into consecutive groups of at most size, keeping
// input order. A non-positive size yields a single group.
func Chunk(addresses []string, size int) [][]string {
	if len(addresses) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(addresses)
	}

	groups := make([][]string, 0, (len(addresses)+size-1)/size)
	for start := 0; start < len(addresses); start += size {
		end := min(start+size, len(addresses))
		groups = append(groups, addresses[start:end:end])
	}
	return groups
}
