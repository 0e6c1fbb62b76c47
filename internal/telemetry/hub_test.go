package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hit-tracker/hdm/internal/clock"
)

// threadSafeResponseWriter captures SSE events in a thread-safe way
type threadSafeResponseWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	headers http.Header
}

func newThreadSafeResponseWriter() *threadSafeResponseWriter {
	return &threadSafeResponseWriter{headers: make(http.Header)}
}

func (w *threadSafeResponseWriter) Header() http.Header { return w.headers }

func (w *threadSafeResponseWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(data)
}

func (w *threadSafeResponseWriter) WriteHeader(statusCode int) {}

func (w *threadSafeResponseWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func subscribe(t *testing.T, hub *Hub, target string, header http.Header) (*threadSafeResponseWriter, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	for k, v := range header {
		req.Header[k] = v
	}
	w := newThreadSafeResponseWriter()
	done := make(chan error, 1)
	go func() { done <- hub.Subscribe(ctx, w, req) }()

	require.Eventually(t, func() bool { return strings.Contains(w.String(), "event: ready") }, time.Second, time.Millisecond)
	return w, cancel, done
}

func TestSubscribeStreamsHits(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	w, cancel, done := subscribe(t, hub, "/events", nil)
	assert.Equal(t, "text/event-stream; charset=utf-8", w.Header().Get("Content-Type"))

	require.NoError(t, hub.Notify("aa:bb", 0))
	require.Eventually(t, func() bool {
		return strings.Contains(w.String(), "id: 1\nevent: hit\n")
	}, time.Second, time.Millisecond)
	assert.Contains(t, w.String(), `"zone":1`)
	assert.Contains(t, w.String(), `"unit":"aa:bb"`)

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, 0, hub.Subscribers())
}

func TestSubscribeFiltersByUnit(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	w, cancel, _ := subscribe(t, hub, "/events?unit=aa", nil)
	defer cancel()

	hub.Notify("bb", 1)
	hub.Publish(Event{Type: EventGame, Data: map[string]interface{}{"operation": "arm"}})
	hub.Notify("aa", 2)

	require.Eventually(t, func() bool { return strings.Contains(w.String(), "id: 3") }, time.Second, time.Millisecond)
	out := w.String()
	assert.NotContains(t, out, `"unit":"bb"`)
	assert.Contains(t, out, "event: game")
	assert.Contains(t, out, `"zone":3`)
}

func TestSubscribeReplaysAfterLastEventID(t *testing.T) {
	hub := NewHub(WithBufferSize(2))
	defer hub.Stop()

	hub.Notify("aa", 0)
	hub.Notify("aa", 1)
	hub.Notify("aa", 2)

	w, cancel, _ := subscribe(t, hub, "/events", http.Header{"Last-Event-Id": {"1"}})
	defer cancel()

	require.Eventually(t, func() bool { return strings.Contains(w.String(), "id: 3") }, time.Second, time.Millisecond)
	out := w.String()
	assert.Contains(t, out, "id: 2")
	assert.NotContains(t, out, "id: 1\n")
}

func TestHeartbeat(t *testing.T) {
	fc := clock.Fake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	hub := NewHub(WithClock(fc), WithHeartbeatInterval(time.Second))
	defer hub.Stop()

	w, cancel, _ := subscribe(t, hub, "/events", nil)
	defer cancel()

	require.Eventually(t, func() bool { return fc.Pending() == 1 }, time.Second, time.Millisecond)
	fc.Advance(time.Second)
	require.Eventually(t, func() bool { return strings.Contains(w.String(), "event: heartbeat") }, time.Second, time.Millisecond)
	assert.Contains(t, w.String(), "2024-06-01T12:00:01Z")
}

func TestStopEndsStreams(t *testing.T) {
	hub := NewHub()
	_, cancel, done := subscribe(t, hub, "/events", nil)
	defer cancel()

	hub.Stop()
	hub.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream did not end")
	}
}

func TestEventBuffer(t *testing.T) {
	b := NewEventBuffer(3)
	for id := int64(1); id <= 5; id++ {
		b.Add(Event{ID: id, Type: EventHit})
	}

	assert.Equal(t, 3, b.Len())
	events := b.EventsAfter(3)
	require.Len(t, events, 2)
	assert.Equal(t, int64(4), events[0].ID)
	assert.Equal(t, int64(5), events[1].ID)
	assert.Len(t, b.EventsAfter(0), 3)
}

func TestConcurrentPublishKeepsIDOrder(t *testing.T) {
	const publishers, perPublisher = 8, 50

	hub := NewHub(WithBufferSize(publishers * perPublisher))
	c := &client{id: "c1", events: make(chan Event, publishers*perPublisher), cancel: func() {}}
	hub.mu.Lock()
	hub.clients[c.id] = c
	hub.mu.Unlock()

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				if p%2 == 0 {
					hub.Notify("aa", 0)
				} else {
					hub.Publish(Event{Type: EventGame})
				}
			}
		}(p)
	}
	wg.Wait()
	close(c.events)

	var last int64
	count := 0
	for event := range c.events {
		require.Greater(t, event.ID, last)
		last = event.ID
		count++
	}
	assert.Equal(t, publishers*perPublisher, count)
}
