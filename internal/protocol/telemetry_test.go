package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTelemetry(t *testing.T) {
	payload := []byte{1, 87, 0x05, 0x00, 0x0A, 0x00, 0x00, 0x00}

	got, err := DecodeTelemetry(payload)
	require.NoError(t, err)

	assert.True(t, got.Active)
	assert.Equal(t, 87, got.BatteryLevel)
	assert.Equal(t, [3]int{5, 10, 0}, got.ZoneHits)
}

func TestDecodeTelemetryLittleEndianCounters(t *testing.T) {
	payload := []byte{0, 12, 0x34, 0x12, 0xFF, 0xFF, 0x00, 0x01}

	got, err := DecodeTelemetry(payload)
	require.NoError(t, err)

	assert.False(t, got.Active)
	assert.Equal(t, 12, got.BatteryLevel)
	assert.Equal(t, [3]int{0x1234, 0xFFFF, 0x0100}, got.ZoneHits)
}

func TestDecodeTelemetryActiveFlagAnyNonZero(t *testing.T) {
	got, err := DecodeTelemetry([]byte{0x80, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestDecodeTelemetryIgnoresTrailingBytes(t *testing.T) {
	got, err := DecodeTelemetry([]byte{1, 50, 1, 0, 2, 0, 3, 0, 0xAA, 0xBB})
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 2, 3}, got.ZoneHits)
}

func TestDecodeTelemetryMissingPayload(t *testing.T) {
	_, err := DecodeTelemetry(nil)
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestDecodeTelemetryShortPayload(t *testing.T) {
	tests := [][]byte{
		{},
		{1},
		{1, 87, 5, 0, 10, 0, 0},
	}
	for _, payload := range tests {
		_, err := DecodeTelemetry(payload)
		assert.ErrorIs(t, err, ErrShortPayload, "payload %v", payload)
	}
}

func TestDetectHits(t *testing.T) {
	tests := []struct {
		name     string
		previous []int
		current  []int
		want     []int
	}{
		{"no change", []int{1, 2, 3}, []int{1, 2, 3}, nil},
		{"single zone", []int{0, 0, 0}, []int{1, 0, 0}, []int{0}},
		{"several zones", []int{4, 1, 9}, []int{5, 1, 12}, []int{0, 2}},
		{"decrease never reports", []int{5, 5, 5}, []int{0, 6, 5}, []int{1}},
		{"all decreased", []int{3, 3, 3}, []int{0, 0, 0}, nil},
		{"mismatched lengths compare prefix", []int{0, 0}, []int{1, 1, 1}, []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectHits(tt.previous, tt.current))
		})
	}
}

func TestDetectHitsMatchesStrictIncrease(t *testing.T) {
	// Exhaustive over a small value range.
	values := []int{0, 1, 2}
	for _, a := range values {
		for _, b := range values {
			for _, c := range values {
				for _, d := range values {
					prev := []int{a, b}
					cur := []int{c, d}
					var want []int
					for i := range cur {
						if cur[i] > prev[i] {
							want = append(want, i)
						}
					}
					assert.Equal(t, want, DetectHits(prev, cur), "prev=%v cur=%v", prev, cur)
				}
			}
		}
	}
}
