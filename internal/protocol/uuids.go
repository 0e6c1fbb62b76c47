package protocol

const (
	// Game service published by every unit.
	GameServiceUUID = "a800"

	// Arm/disarm characteristic. Write 1 byte: 0 disarm, 1 arm.
	GameStatusCharUUID = "a801"

	// LED configuration characteristic. Write one frame per zone.
	LedConfigCharUUID = "a803"
)

// DefaultZoneCount is the number of scoring zones carried by the telemetry payload.
const DefaultZoneCount = 3
