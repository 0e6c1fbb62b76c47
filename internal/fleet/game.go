package fleet

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig marks a game configuration that cannot be used.
var ErrInvalidConfig = errors.New("invalid game configuration")

// RosterUnit is one configured unit of a game.
type RosterUnit struct {
	RadioID string `json:"radioId"`
	LedType string `json:"ledType,omitempty"`
	Zones   int    `json:"zones,omitempty"`
}

// GameConfig is the caller-supplied roster and duration. Units may be
// listed as bare radio ids, as roster entries, or both.
type GameConfig struct {
	RadioIDs   []string     `json:"radioIds,omitempty"`
	Units      []RosterUnit `json:"units,omitempty"`
	GameLength int          `json:"gameLength,omitempty"`
}

// IDs returns every configured radio id, in order, without duplicates.
func (g GameConfig) IDs() []string {
	seen := make(map[string]bool, len(g.RadioIDs)+len(g.Units))
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range g.RadioIDs {
		add(id)
	}
	for _, u := range g.Units {
		add(u.RadioID)
	}
	return ids
}

// Duration returns the game length; zero means no automatic stop.
func (g GameConfig) Duration() time.Duration {
	return time.Duration(g.GameLength) * time.Second
}

// Validate checks structural constraints.
func (g GameConfig) Validate() error {
	if g.GameLength < 0 {
		return fmt.Errorf("%w: gameLength %d is negative", ErrInvalidConfig, g.GameLength)
	}
	for i, u := range g.Units {
		if u.RadioID == "" {
			return fmt.Errorf("%w: units[%d] has no radioId", ErrInvalidConfig, i)
		}
		if u.Zones < 0 {
			return fmt.Errorf("%w: units[%d] zones %d is negative", ErrInvalidConfig, i, u.Zones)
		}
	}
	return nil
}
