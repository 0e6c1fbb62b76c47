package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hit-tracker/hdm/internal/clock"
)

const (
	DefaultBufferSize        = 256
	DefaultHeartbeatInterval = 15 * time.Second

	clientQueueSize = 64
)

// Event types published by the fleet.
const (
	EventReady     = "ready"
	EventHeartbeat = "heartbeat"
	EventHit       = "hit"
	EventGame      = "game"
)

// Event is one SSE message. Unit is empty for fleet-wide events.
type Event struct {
	ID   int64                  `json:"id,omitempty"`
	Type string                 `json:"type"`
	Unit string                 `json:"unit,omitempty"`
	Data map[string]interface{} `json:"data"`
}

type client struct {
	id     string
	unit   string
	events chan Event
	cancel context.CancelFunc
}

// Option configures a Hub.
type Option func(*Hub)

func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(h *Hub) { h.clock = c }
}

func WithLogger(log zerolog.Logger) Option {
	return func(h *Hub) { h.log = log }
}

// Hub fans events out to SSE subscribers.
type Hub struct {
	bufferSize int
	heartbeat  time.Duration
	clock      clock.Clock
	log        zerolog.Logger

	lastID atomic.Int64

	mu      sync.RWMutex
	clients map[string]*client
	buffer  *EventBuffer

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates an idle hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		bufferSize: DefaultBufferSize,
		heartbeat:  DefaultHeartbeatInterval,
		clock:      clock.Real(),
		log:        zerolog.Nop(),
		clients:    make(map[string]*client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.buffer = NewEventBuffer(h.bufferSize)
	return h
}

// Subscribe streams events to w until ctx is done or the hub stops.
//
// A Last-Event-ID header replays buffered events newer than that ID. The
// "unit" query parameter restricts the stream to one unit's events plus
// fleet-wide ones.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	clientCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lastEventID int64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			lastEventID = id
		}
	}

	c := &client{
		id:     uuid.NewString(),
		unit:   r.URL.Query().Get("unit"),
		events: make(chan Event, clientQueueSize),
		cancel: cancel,
	}

	// Register before replaying so nothing published in between is lost;
	// duplicates are filtered by ID below.
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	defer h.unregister(c.id)

	h.log.Debug().Str("client", c.id).Str("unit", c.unit).Int64("lastEventId", lastEventID).Msg("subscriber connected")

	ready := Event{Type: EventReady, Data: map[string]interface{}{"lastEventId": h.lastID.Load()}}
	if err := writeEvent(w, ready); err != nil {
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	sent := lastEventID
	if lastEventID > 0 {
		for _, event := range h.buffer.EventsAfter(lastEventID) {
			if !c.wants(event) {
				continue
			}
			if err := writeEvent(w, event); err != nil {
				return fmt.Errorf("failed to replay events: %w", err)
			}
			sent = event.ID
		}
	}

	heartbeat := h.clock.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-clientCtx.Done():
			return nil
		case <-h.done:
			return nil
		case now := <-heartbeat.C():
			hb := Event{Type: EventHeartbeat, Data: map[string]interface{}{"ts": now.UTC().Format(time.RFC3339)}}
			if err := writeEvent(w, hb); err != nil {
				return nil
			}
		case event := <-c.events:
			if event.ID <= sent {
				continue
			}
			if err := writeEvent(w, event); err != nil {
				return nil
			}
			sent = event.ID
		}
	}
}

// Publish assigns event an ID, buffers it and hands it to every interested
// subscriber. Subscribers whose queue is full miss the event. IDs reach every
// queue in increasing order.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	event.ID = h.lastID.Add(1)
	h.buffer.Add(event)
	for _, c := range h.clients {
		if !c.wants(event) {
			continue
		}
		select {
		case c.events <- event:
		default:
			h.log.Debug().Str("client", c.id).Int64("id", event.ID).Msg("subscriber behind, event dropped")
		}
	}
}

// Notify publishes a hit. zone is zero-based; the event carries it one-based
// like the webhook.
func (h *Hub) Notify(address string, zone int) error {
	h.Publish(Event{
		Type: EventHit,
		Unit: address,
		Data: map[string]interface{}{"zone": zone + 1},
	})
	return nil
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop ends every stream.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for _, c := range h.clients {
			c.cancel()
		}
		h.mu.Unlock()
	})
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func (c *client) wants(event Event) bool {
	return c.unit == "" || event.Unit == "" || event.Unit == c.unit
}

// writeEvent formats event as SSE and flushes it.
func writeEvent(w http.ResponseWriter, event Event) error {
	if event.ID > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	payload := event.Data
	if event.Unit != "" {
		payload = make(map[string]interface{}, len(event.Data)+1)
		for k, v := range event.Data {
			payload[k] = v
		}
		payload["unit"] = event.Unit
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// EventBuffer is a fixed-capacity ring of recent events.
type EventBuffer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewEventBuffer creates a buffer holding at most capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// Add appends event, discarding the oldest one at capacity.
func (b *EventBuffer) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == b.capacity {
		copy(b.events, b.events[1:])
		b.events = b.events[:len(b.events)-1]
	}
	b.events = append(b.events, event)
}

// EventsAfter returns the buffered events with an ID above lastID.
func (b *EventBuffer) EventsAfter(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, event := range b.events {
		if event.ID > lastID {
			result = append(result, event)
		}
	}
	return result
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
