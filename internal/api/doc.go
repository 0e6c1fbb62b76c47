// Package api implements the HTTP control surface of the fleet manager.
//
// Routes mirror the game server's expectations: POST /start and /stop run
// a game over a roster, /unit lists and commands individual units, /scan
// toggles discovery and /events streams hits over SSE. Every JSON response
// uses the {result, data | code, message, correlationId} envelope.
package api
