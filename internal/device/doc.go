// Package device implements the unit registry.
//
// The registry is the single owner of unit state. It applies decoded
// telemetry in the order advertisements arrive, computes hit edges against
// each unit's previous frame, hands out the per-unit session, and evicts
// units that have gone quiet.
package device
