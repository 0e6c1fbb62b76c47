package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// LED configuration frame sizes.
const (
	ZoneFrameLengthRGB  = 16
	ZoneFrameLengthRGBW = 18
)

var (
	// ErrInvalidGameStatus indicates a game status other than 0 or 1.
	ErrInvalidGameStatus = errors.New("invalid game status")

	// ErrInvalidZone indicates a zone configuration that cannot be encoded.
	ErrInvalidZone = errors.New("invalid zone configuration")
)

// GameStatus is the arm/disarm value written to a unit.
type GameStatus uint8

const (
	Disarmed GameStatus = 0
	Armed    GameStatus = 1
)

// ParseGameStatus validates a raw status value.
func ParseGameStatus(value int) (GameStatus, error) {
	switch value {
	case 0:
		return Disarmed, nil
	case 1:
		return Armed, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidGameStatus, value)
	}
}

func (s GameStatus) String() string {
	if s == Armed {
		return "armed"
	}
	return "disarmed"
}

// EncodeGameStatus builds the 1-byte arm/disarm frame.
func EncodeGameStatus(status GameStatus) []byte {
	return []byte{byte(status)}
}

// Color is an LED color. White is only sent when both the base and hit
// colors of a zone carry it.
type Color struct {
	Red   uint8  `json:"red" yaml:"red"`
	Green uint8  `json:"green" yaml:"green"`
	Blue  uint8  `json:"blue" yaml:"blue"`
	White *uint8 `json:"white,omitempty" yaml:"white,omitempty"`
}

// HasWhite reports whether the color carries a white channel.
func (c Color) HasWhite() bool {
	return c.White != nil
}

// ZoneConfig is the LED configuration of a single zone.
type ZoneConfig struct {
	Pattern         LedPattern `json:"pattern"`
	Color           Color      `json:"color"`
	TimePerPixel    uint16     `json:"timePerPixel"`
	HitPattern      LedPattern `json:"hitPattern"`
	HitColor        Color      `json:"hitColor"`
	HitBlinkTime    uint16     `json:"hitBlinkTime"`
	HitTimePerPixel uint16     `json:"hitTimePerPixel"`
}

// UsesRGBW reports whether the zone is encoded with the white-channel layout.
func (z ZoneConfig) UsesRGBW() bool {
	return z.Color.HasWhite() && z.HitColor.HasWhite()
}

// ZonesConfig is a full LED configuration set, one entry per physical zone.
type ZonesConfig struct {
	Zones    []ZoneConfig `json:"zones"`
	GameType GameType     `json:"gameType"`
}

// Validate checks every enumeration in the set.
func (c ZonesConfig) Validate() error {
	if !c.GameType.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidGameType, int(c.GameType))
	}
	if len(c.Zones) == 0 {
		return fmt.Errorf("%w: no zones", ErrInvalidZone)
	}
	if len(c.Zones) > 256 {
		return fmt.Errorf("%w: %d zones exceed the 1-byte zone index", ErrInvalidZone, len(c.Zones))
	}
	for i, zone := range c.Zones {
		if !zone.Pattern.Valid() {
			return fmt.Errorf("zone %d: %w: %d", i, ErrInvalidPattern, int(zone.Pattern))
		}
		if !zone.HitPattern.Valid() {
			return fmt.Errorf("zone %d hit: %w: %d", i, ErrInvalidPattern, int(zone.HitPattern))
		}
	}
	return nil
}

// EncodeZoneFrame builds the LED configuration frame for one zone.
//
// RGB layout (16 bytes, little-endian):
//
//	[gameType][zone][pattern][r][g][b][timePerPixel:2]
//	[hitPattern][hitR][hitG][hitB][hitBlinkTime:2][hitTimePerPixel:2]
//
// RGBW layout (18 bytes) inserts a white byte after each RGB triple.
func EncodeZoneFrame(gameType GameType, zone int, cfg ZoneConfig) ([]byte, error) {
	if !gameType.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGameType, int(gameType))
	}
	if zone < 0 || zone > 0xff {
		return nil, fmt.Errorf("%w: zone index %d", ErrInvalidZone, zone)
	}
	if !cfg.Pattern.Valid() || !cfg.HitPattern.Valid() {
		return nil, ErrInvalidPattern
	}

	rgbw := cfg.UsesRGBW()
	size := ZoneFrameLengthRGB
	if rgbw {
		size = ZoneFrameLengthRGBW
	}

	frame := make([]byte, 0, size)
	frame = append(frame, gameType.wire(), byte(zone), cfg.Pattern.wire())
	frame = appendColor(frame, cfg.Color, rgbw)
	frame = binary.LittleEndian.AppendUint16(frame, cfg.TimePerPixel)
	frame = append(frame, cfg.HitPattern.wire())
	frame = appendColor(frame, cfg.HitColor, rgbw)
	frame = binary.LittleEndian.AppendUint16(frame, cfg.HitBlinkTime)
	frame = binary.LittleEndian.AppendUint16(frame, cfg.HitTimePerPixel)

	return frame, nil
}

// EncodeZones builds one frame per zone, in zone order.
func EncodeZones(cfg ZonesConfig) ([][]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	frames := make([][]byte, 0, len(cfg.Zones))
	for zone, zoneCfg := range cfg.Zones {
		frame, err := EncodeZoneFrame(cfg.GameType, zone, zoneCfg)
		if err != nil {
			return nil, fmt.Errorf("zone %d: %w", zone, err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func appendColor(frame []byte, c Color, withWhite bool) []byte {
	frame = append(frame, c.Red, c.Green, c.Blue)
	if withWhite {
		frame = append(frame, *c.White)
	}
	return frame
}
