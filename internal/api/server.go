package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hit-tracker/hdm/internal/auth"
	"github.com/hit-tracker/hdm/internal/clock"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	fleet      FleetPort
	events     EventsPort
	auth       *auth.Middleware
	log        zerolog.Logger
	clock      clock.Clock
	startTime  time.Time

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	gameMu    sync.Mutex
	gameTimer clock.Timer
	gameGen   uint64
	gameStops uint64
}

// Option configures a Server.
type Option func(*Server)

// WithEvents enables the /events stream and game event publishing.
func WithEvents(events EventsPort) Option {
	return func(s *Server) { s.events = events }
}

// WithAuth protects every route except /health.
func WithAuth(m *auth.Middleware) Option {
	return func(s *Server) { s.auth = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithTimeouts sets the HTTP server timeouts. Event streams clear their
// own write deadline.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.idleTimeout = idle
	}
}

// NewServer creates a new API server.
func NewServer(fleet FleetPort, opts ...Option) *Server {
	s := &Server{
		fleet:        fleet,
		log:          zerolog.Nop(),
		clock:        clock.Real(),
		readTimeout:  30 * time.Second,
		writeTimeout: 2 * time.Minute,
		idleTimeout:  2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startTime = s.clock.Now()
	return s
}

// Handler returns the routed handler with access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.accessLog(mux)
}

// Start serves on addr until Stop.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop cancels a pending game auto-stop and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.cancelGameTimer()

	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", s.clock.Now().Sub(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
