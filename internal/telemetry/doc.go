// Package telemetry streams fleet events to Server-Sent Events clients.
//
// The hub assigns every event a monotonic ID, keeps the most recent ones in
// a ring for Last-Event-ID resume, and fans events out to subscribers
// without ever blocking the publisher: a subscriber that falls behind loses
// events rather than stalling hit detection.
package telemetry
