package api

import (
	"context"
	"net/http"

	"github.com/hit-tracker/hdm/internal/command"
	"github.com/hit-tracker/hdm/internal/device"
	"github.com/hit-tracker/hdm/internal/fleet"
	"github.com/hit-tracker/hdm/internal/protocol"
	"github.com/hit-tracker/hdm/internal/telemetry"
)

// FleetPort is the part of the fleet manager the API drives.
type FleetPort interface {
	StartGame(ctx context.Context, cfg fleet.GameConfig) (command.Report, error)
	StopGame(ctx context.Context, cfg fleet.GameConfig) (command.Report, error)
	SetGameStatus(ctx context.Context, address string, value int) error
	SetLedConfiguration(ctx context.Context, address string, cfg protocol.ZonesConfig) error
	GetDevice(address string) (device.Unit, error)
	AllAddresses() []string
	StartScanning(ctx context.Context) error
	StopScanning(ctx context.Context) error
	Scanning() bool
}

// EventsPort streams and publishes fleet events.
type EventsPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
	Publish(event telemetry.Event)
}

// Compile-time assertions for port conformance
var _ FleetPort = (*fleet.Manager)(nil)
var _ EventsPort = (*telemetry.Hub)(nil)
