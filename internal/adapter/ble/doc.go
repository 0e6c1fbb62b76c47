// Package ble binds the radio capability interfaces to the host Bluetooth
// stack through tinygo.org/x/bluetooth.
//
// The binding is thin: discovery results become adapter.Advertisements,
// and each discovered address gets a Peripheral that connects, resolves a
// single 16-bit characteristic and writes frames to it. Everything above
// the driver (sessions, scan exclusion, error codes) lives in the callers.
package ble
