// Package fleet is the device fleet manager.
//
// A single event loop consumes driver advertisements and power changes in
// arrival order, so telemetry for one unit is always applied against its
// immediately preceding frame. Game start and stop, per-unit commands and
// scan control are exposed as plain methods for the HTTP layer.
package fleet
