package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrInvalidPattern indicates an unknown LED pattern name or code.
	ErrInvalidPattern = errors.New("invalid LED pattern")

	// ErrInvalidGameType indicates an unknown game type name or code.
	ErrInvalidGameType = errors.New("invalid game type")
)

// LedPattern is the animation a zone runs on its LED strip.
type LedPattern int

const (
	PatternSolid LedPattern = iota
	PatternChaseForward
	PatternChaseBackward
	PatternChaseInward
	PatternTheaterChase
	PatternTheaterChaseRainbow // ignores color
	PatternRainbow             // ignores color
)

var patternNames = [...]string{
	PatternSolid:               "solid",
	PatternChaseForward:        "chase-forward",
	PatternChaseBackward:       "chase-backward",
	PatternChaseInward:         "chase-inward",
	PatternTheaterChase:        "theater-chase",
	PatternTheaterChaseRainbow: "theater-chase-rainbow",
	PatternRainbow:             "rainbow",
}

// Valid reports whether p is one of the known patterns.
func (p LedPattern) Valid() bool {
	return p >= PatternSolid && p <= PatternRainbow
}

// IgnoresColor reports whether the pattern renders its own colors.
func (p LedPattern) IgnoresColor() bool {
	return p == PatternTheaterChaseRainbow || p == PatternRainbow
}

func (p LedPattern) String() string {
	if !p.Valid() {
		return fmt.Sprintf("pattern(%d)", int(p))
	}
	return patternNames[p]
}

// wire returns the on-air code for the pattern.
func (p LedPattern) wire() byte {
	return byte(p)
}

// ParseLedPattern accepts a pattern name or its numeric code.
func ParseLedPattern(s string) (LedPattern, error) {
	for i, name := range patternNames {
		if name == s {
			return LedPattern(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && LedPattern(n).Valid() {
		return LedPattern(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
}

func (p LedPattern) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPattern, int(p))
	}
	return json.Marshal(p.String())
}

func (p *LedPattern) UnmarshalJSON(data []byte) error {
	s, err := unquoteEnum(data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPattern, data)
	}
	parsed, err := ParseLedPattern(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// GameType selects how a unit reacts to hits.
type GameType int

const (
	GameBlink GameType = iota
	GameHP
)

var gameTypeNames = [...]string{
	GameBlink: "blink",
	GameHP:    "hp",
}

// Valid reports whether g is one of the known game types.
func (g GameType) Valid() bool {
	return g == GameBlink || g == GameHP
}

func (g GameType) String() string {
	if !g.Valid() {
		return fmt.Sprintf("gameType(%d)", int(g))
	}
	return gameTypeNames[g]
}

func (g GameType) wire() byte {
	return byte(g)
}

// ParseGameType accepts a game type name or its numeric code.
func ParseGameType(s string) (GameType, error) {
	for i, name := range gameTypeNames {
		if name == s {
			return GameType(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && GameType(n).Valid() {
		return GameType(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidGameType, s)
}

func (g GameType) MarshalJSON() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGameType, int(g))
	}
	return json.Marshal(g.String())
}

func (g *GameType) UnmarshalJSON(data []byte) error {
	s, err := unquoteEnum(data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidGameType, data)
	}
	parsed, err := ParseGameType(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// unquoteEnum returns the raw token of a JSON string or number.
func unquoteEnum(data []byte) (string, error) {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
