// Package session owns the connection lifecycle of a single unit.
//
// Every command runs the same sequence: connect, discover the one
// characteristic it needs, write, disconnect. The connection is released on
// every exit path. Connect and disconnect are idempotent at the state
// boundary, and writes are only accepted in the Ready state.
package session
