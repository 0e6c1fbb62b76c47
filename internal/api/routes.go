package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/hit-tracker/hdm/internal/audit"
	"github.com/hit-tracker/hdm/internal/auth"
	"github.com/hit-tracker/hdm/internal/fleet"
	"github.com/hit-tracker/hdm/internal/protocol"
)

// RegisterRoutes registers every endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Health endpoint (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /start", s.protect(s.handleStart, auth.ScopeControl))
	mux.HandleFunc("POST /stop", s.protect(s.handleStop, auth.ScopeControl))

	mux.HandleFunc("GET /unit", s.protect(s.handleUnitList, auth.ScopeRead))
	mux.HandleFunc("GET /unit/{address}", s.protect(s.handleUnitGet, auth.ScopeRead))
	mux.HandleFunc("POST /unit/{address}", s.protect(s.handleUnitLed, auth.ScopeControl))
	mux.HandleFunc("POST /unit/{address}/{value}", s.protect(s.handleUnitToggle, auth.ScopeControl))

	mux.HandleFunc("POST /scan/start", s.protect(s.handleScanStart, auth.ScopeControl))
	mux.HandleFunc("POST /scan/stop", s.protect(s.handleScanStop, auth.ScopeControl))

	mux.HandleFunc("GET /events", s.protect(s.handleEvents, auth.ScopeRead))
}

// protect applies the auth middleware, when configured, and tags the
// request context with the token subject for the audit trail.
func (s *Server) protect(next http.HandlerFunc, scope string) http.HandlerFunc {
	if s.auth == nil {
		return next
	}
	return s.auth.Protect(func(w http.ResponseWriter, r *http.Request) {
		if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
			r = r.WithContext(audit.WithUser(r.Context(), claims.Subject))
		}
		next(w, r)
	}, scope)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]interface{}{
		"status":    "ok",
		"uptimeSec": int64(s.clock.Now().Sub(s.startTime).Seconds()),
		"scanning":  s.fleet.Scanning(),
		"units":     len(s.fleet.AllAddresses()),
	})
}

// handleStart handles POST /start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var cfg fleet.GameConfig
	if !decodeBody(w, r, &cfg, false) {
		return
	}

	stops := s.stopCount()
	report, err := s.fleet.StartGame(r.Context(), cfg)
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	if err := report.Err(); err != nil {
		s.log.Warn().Err(err).Msg("game started with failures")
	}

	s.scheduleStop(cfg, stops)
	s.publishGame(report, false)
	WriteSuccess(w, newGameResult(report))
}

// handleStop handles POST /stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var cfg fleet.GameConfig
	if !decodeBody(w, r, &cfg, false) {
		return
	}

	if s.cancelGameTimer() {
		s.log.Info().Msg("game auto-stop cancelled")
	}

	report, err := s.fleet.StopGame(r.Context(), cfg)
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	if err := report.Err(); err != nil {
		s.log.Warn().Err(err).Msg("game stopped with failures")
	}

	s.publishGame(report, false)
	WriteSuccess(w, newGameResult(report))
}

// handleUnitList handles GET /unit
func (s *Server) handleUnitList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, s.fleet.AllAddresses())
}

// handleUnitGet handles GET /unit/{address}
func (s *Server) handleUnitGet(w http.ResponseWriter, r *http.Request) {
	unit, err := s.fleet.GetDevice(r.PathValue("address"))
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, unit)
}

// handleUnitLed handles POST /unit/{address}
func (s *Server) handleUnitLed(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	var cfg protocol.ZonesConfig
	if !decodeBody(w, r, &cfg, true) {
		return
	}

	if err := s.fleet.SetLedConfiguration(r.Context(), address, cfg); err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"address": address,
		"zones":   len(cfg.Zones),
	})
}

// handleUnitToggle handles POST /unit/{address}/{value}
func (s *Server) handleUnitToggle(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	value, err := strconv.Atoi(r.PathValue("value"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_RANGE", "Game status must be 0 or 1", nil)
		return
	}

	if err := s.fleet.SetGameStatus(r.Context(), address, value); err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"address": address,
		"status":  value,
	})
}

// handleScanStart handles POST /scan/start
func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	if err := s.fleet.StartScanning(r.Context()); err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]bool{"scanning": s.fleet.Scanning()})
}

// handleScanStop handles POST /scan/stop
func (s *Server) handleScanStop(w http.ResponseWriter, r *http.Request) {
	if err := s.fleet.StopScanning(r.Context()); err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]bool{"scanning": s.fleet.Scanning()})
}

// handleEvents handles GET /events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Event stream not available", nil)
		return
	}
	if err := s.events.Subscribe(r.Context(), w, r); err != nil {
		s.log.Warn().Err(err).Msg("event stream ended")
	}
}

// decodeBody parses a JSON body into v. Strict decoding rejects unknown
// fields; game configurations are decoded leniently because game servers
// send their full game document. Writes the error response and reports
// false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, strict bool) bool {
	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON or unknown fields", map[string]interface{}{
			"original": err.Error(),
		})
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Trailing data after JSON object", nil)
		return false
	}
	return true
}
