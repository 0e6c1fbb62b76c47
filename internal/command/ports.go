package command

import (
	"context"
	"time"

	"github.com/hit-tracker/hdm/internal/protocol"
	"github.com/hit-tracker/hdm/internal/scan"
	"github.com/hit-tracker/hdm/internal/session"
)

// Unit is the per-unit command surface.
type Unit interface {
	SetGameStatus(ctx context.Context, status protocol.GameStatus) error
	SetLedConfiguration(ctx context.Context, cfg protocol.ZonesConfig) error
}

// UnitSource resolves an address to its unit.
type UnitSource func(address string) (Unit, error)

// ScanGuard keeps discovery off while a burst runs.
type ScanGuard interface {
	Hold(ctx context.Context) error
	Release(ctx context.Context) error
}

// AuditLogger interface for writing audit records.
type AuditLogger interface {
	LogAction(ctx context.Context, action string, address string, result string, latency time.Duration)
}

var (
	_ Unit      = (*session.Session)(nil)
	_ ScanGuard = (*scan.Controller)(nil)
)
