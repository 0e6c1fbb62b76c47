package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDriverError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"unknown maps to INTERNAL", errors.New("something odd"), ErrInternal},
		{"busy", errors.New("connection BUSY"), ErrBusy},
		{"in progress", errors.New("operation in progress"), ErrBusy},
		{"timeout", errors.New("connect timed out"), ErrTimeout},
		{"context deadline", context.DeadlineExceeded, ErrTimeout},
		{"not found", errors.New("characteristic a801 not found"), ErrNotFound},
		{"disconnected", errors.New("peripheral disconnected"), ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NormalizeDriverError("connect", "aa:bb", tt.err)

			var radioErr *RadioError
			require.ErrorAs(t, err, &radioErr)
			assert.Equal(t, tt.expected, radioErr.Code)
			assert.ErrorIs(t, err, tt.expected)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, "connect", radioErr.Op)
			assert.Equal(t, "aa:bb", radioErr.Address)
		})
	}
}

func TestNormalizeDriverErrorNil(t *testing.T) {
	assert.NoError(t, NormalizeDriverError("write", "aa:bb", nil))
}

func TestNormalizeDriverErrorKeepsNormalized(t *testing.T) {
	first := NormalizeDriverError("write", "aa:bb", errors.New("busy"))
	wrapped := fmt.Errorf("zone 1: %w", first)

	again := NormalizeDriverError("disconnect", "aa:bb", wrapped)
	assert.Same(t, wrapped, again)
	assert.ErrorIs(t, again, ErrBusy)
}

func TestNormalizeDriverErrorWithBluezTokens(t *testing.T) {
	tests := map[string]error{
		"org.bluez.Error.InProgress: Operation already in progress": ErrBusy,
		"org.bluez.Error.Failed: le-connection-abort-by-local":      ErrUnavailable,
		"org.freedesktop.DBus.Error.NoReply: Did not receive reply": ErrTimeout,
		"org.bluez.Error.DoesNotExist: Does Not Exist":              ErrNotFound,
		"org.bluez.Error.NotPermitted":                               ErrInternal,
	}
	for msg, want := range tests {
		err := NormalizeDriverErrorWithDriver("connect", "aa:bb", errors.New(msg), "bluez")
		assert.ErrorIs(t, err, want, msg)
	}
}

func TestNormalizeDriverErrorUnknownDriverFallsBack(t *testing.T) {
	err := NormalizeDriverErrorWithDriver("connect", "aa:bb", errors.New("busy"), "nope")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestCode(t *testing.T) {
	assert.Equal(t, ErrTimeout, Code(NormalizeDriverError("write", "x", errors.New("timeout"))))
	assert.Equal(t, ErrInternal, Code(errors.New("plain")))
}

type restartScanner struct{ ok bool }

func (restartScanner) StartScan(context.Context) error { return nil }
func (restartScanner) StopScan(context.Context) error  { return nil }
func (r restartScanner) SupportsScanRestart() bool     { return r.ok }

type plainScanner struct{}

func (plainScanner) StartScan(context.Context) error { return nil }
func (plainScanner) StopScan(context.Context) error  { return nil }

func TestSupportsScanRestart(t *testing.T) {
	assert.True(t, SupportsScanRestart(plainScanner{}))
	assert.True(t, SupportsScanRestart(restartScanner{ok: true}))
	assert.False(t, SupportsScanRestart(restartScanner{ok: false}))
}
