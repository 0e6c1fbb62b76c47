// Package protocol implements the hit-tracker unit wire protocol.
//
// Units broadcast a fixed-layout manufacturer payload carrying their armed
// flag, battery percentage and per-zone hit counters. Control commands are
// fixed-layout frames written to the unit's game service over a connection.
//
// Wire References:
//   - Service a800, characteristic a801: arm/disarm (1 byte)
//   - Service a800, characteristic a803: LED zone configuration (one frame per zone)
package protocol
