package api

import (
	"context"
	"errors"

	"github.com/hit-tracker/hdm/internal/adapter"
	"github.com/hit-tracker/hdm/internal/command"
	"github.com/hit-tracker/hdm/internal/fleet"
	"github.com/hit-tracker/hdm/internal/telemetry"
)

// UnitResult is the per-unit outcome in a game response.
type UnitResult struct {
	Address   string `json:"address"`
	OK        bool   `json:"ok"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// GameResult is the data of a /start or /stop response.
type GameResult struct {
	Operation string       `json:"operation"`
	Targets   int          `json:"targets"`
	Failed    int          `json:"failed"`
	Results   []UnitResult `json:"results"`
}

func newGameResult(report command.Report) GameResult {
	res := GameResult{
		Operation: report.Operation,
		Targets:   len(report.Results),
		Results:   make([]UnitResult, 0, len(report.Results)),
	}
	for _, r := range report.Results {
		u := UnitResult{Address: r.Address, OK: r.Err == nil, LatencyMs: r.Latency.Milliseconds()}
		if r.Err != nil {
			res.Failed++
			u.Error = r.Err.Error()
			u.Code = adapter.ErrInternal.Error()
			var radioErr *adapter.RadioError
			if errors.As(r.Err, &radioErr) {
				u.Code = radioErr.Code.Error()
			}
		}
		res.Results = append(res.Results, u)
	}
	return res
}

// stopCount returns the number of manual stops so far. A start reads it
// before its burst and hands it to scheduleStop.
func (s *Server) stopCount() uint64 {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	return s.gameStops
}

// scheduleStop arms the auto-stop for a started game, replacing any earlier
// one. A zero game length schedules nothing, and neither does a start that a
// manual stop overtook while its burst was running.
func (s *Server) scheduleStop(cfg fleet.GameConfig, stops uint64) {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()

	if stops != s.gameStops {
		s.log.Info().Msg("game stopped during start, auto-stop not scheduled")
		return
	}
	s.stopTimerLocked()
	d := cfg.Duration()
	if d <= 0 {
		return
	}
	gen := s.gameGen
	s.gameTimer = s.clock.AfterFunc(d, func() { s.autoStop(gen, cfg) })
	s.log.Info().Dur("gameLength", d).Msg("game auto-stop scheduled")
}

// cancelGameTimer drops a pending auto-stop. Reports whether one was pending.
func (s *Server) cancelGameTimer() bool {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	s.gameStops++
	return s.stopTimerLocked()
}

func (s *Server) stopTimerLocked() bool {
	s.gameGen++
	if s.gameTimer == nil {
		return false
	}
	stopped := s.gameTimer.Stop()
	s.gameTimer = nil
	return stopped
}

func (s *Server) autoStop(gen uint64, cfg fleet.GameConfig) {
	s.gameMu.Lock()
	if gen != s.gameGen {
		s.gameMu.Unlock()
		return
	}
	s.gameTimer = nil
	s.gameMu.Unlock()

	s.log.Info().Msg("game length elapsed, stopping game")
	report, err := s.fleet.StopGame(context.Background(), cfg)
	if err != nil {
		s.log.Error().Err(err).Msg("auto-stop failed")
		return
	}
	if err := report.Err(); err != nil {
		s.log.Warn().Err(err).Msg("auto-stop left units armed")
	}
	s.publishGame(report, true)
}

func (s *Server) publishGame(report command.Report, auto bool) {
	if s.events == nil {
		return
	}
	res := newGameResult(report)
	s.events.Publish(telemetry.Event{
		Type: telemetry.EventGame,
		Data: map[string]interface{}{
			"operation": res.Operation,
			"targets":   res.Targets,
			"failed":    res.Failed,
			"auto":      auto,
		},
	})
}
