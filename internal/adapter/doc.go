// Package adapter defines the radio driver contract the fleet manager is built on.
//
// A driver delivers discovery events as Advertisement messages and hands out
// Peripheral handles exposing exactly the four operations a unit command
// needs: connect, discover, write, disconnect. Driver failures are
// normalized to a small set of codes so callers can reason about them
// without knowing the underlying radio stack.
package adapter
