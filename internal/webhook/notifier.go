// Package webhook delivers hit events to the game-events endpoint.
//
// Notify never blocks the caller: events go onto a bounded queue drained by
// a single worker, and are dropped when the queue is full. Each hit is one
// POST to <base>/games/hit. Delivery failures are logged and counted, never
// retried.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/hit-tracker/hdm/internal/webhook"

// Defaults used when the configuration leaves a value unset.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultQueueSize = 64
	HitPath          = "/games/hit"
	RequestIDHeader  = "X-Request-ID"
)

// ErrQueueFull is returned by Notify when the event was dropped.
var ErrQueueFull = errors.New("webhook queue full")

// Event is one entry of the hit payload.
type Event struct {
	Event   string `json:"event"`
	RadioID string `json:"radioId"`
	Zone    int    `json:"zone"`
}

// Payload is the request body.
type Payload struct {
	Events []Event `json:"events"`
}

// Notifier queues and posts hit events.
type Notifier struct {
	endpoint string
	client   *http.Client
	log      zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event

	delivered metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
}

// Option configures a Notifier.
type Option func(*settings)

type settings struct {
	client    *http.Client
	timeout   time.Duration
	queueSize int
	log       zerolog.Logger
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.client = c }
}

func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

func WithQueueSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *settings) { s.log = log }
}

// New creates a notifier posting to baseURL. An empty baseURL yields a
// notifier that discards every event.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(baseURL string, opts ...Option) (*Notifier, error) {
	s := settings{
		timeout:   DefaultTimeout,
		queueSize: DefaultQueueSize,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.timeout}
	}

	n := &Notifier{
		client: s.client,
		log:    s.log,
		queue:  make(chan Event, s.queueSize),
	}
	if baseURL != "" {
		n.endpoint = strings.TrimRight(baseURL, "/") + HitPath
	}

	m := otel.Meter(instrumentationName)
	var err error
	if n.delivered, err = m.Int64Counter("hdm.webhook.delivered", metric.WithDescription("Hit events delivered")); err != nil {
		return nil, fmt.Errorf("creating delivered counter: %w", err)
	}
	if n.failed, err = m.Int64Counter("hdm.webhook.failed", metric.WithDescription("Hit events that failed delivery")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if n.dropped, err = m.Int64Counter("hdm.webhook.dropped", metric.WithDescription("Hit events dropped due to full queue")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return n, nil
}

// Endpoint returns the hit URL, empty when disabled.
func (n *Notifier) Endpoint() string { return n.endpoint }

// Notify queues a hit for address on the zero-based zone. It never blocks.
func (n *Notifier) Notify(address string, zone int) error {
	if n.endpoint == "" {
		return nil
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return nil
	}

	select {
	case n.queue <- Event{Event: "hit", RadioID: address, Zone: zone + 1}:
		return nil
	default:
		n.dropped.Add(context.Background(), 1)
		n.log.Warn().Str("address", address).Int("zone", zone+1).Msg("webhook queue full, hit dropped")
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is done or Close drains the queue.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.queue:
			if !ok {
				return
			}
			if err := n.deliver(ctx, ev); err != nil {
				n.failed.Add(context.Background(), 1)
				n.log.Error().Err(err).Str("address", ev.RadioID).Int("zone", ev.Zone).Msg("webhook delivery failed")
				continue
			}
			n.delivered.Add(context.Background(), 1)
		}
	}
}

// Close stops accepting events. Run returns once the queue is drained.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
}

func (n *Notifier) deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(Payload{Events: []Event{ev}})
	if err != nil {
		return fmt.Errorf("encode hit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", n.endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: unexpected status %d", n.endpoint, resp.StatusCode)
	}
	n.log.Debug().Str("address", ev.RadioID).Int("zone", ev.Zone).Msg("hit delivered")
	return nil
}
