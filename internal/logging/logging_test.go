package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		expected zerolog.Level
	}{
		{"default", Options{}, zerolog.InfoLevel},
		{"explicit", Options{Level: "warn"}, zerolog.WarnLevel},
		{"verbose lowers", Options{Level: "warn", Verbose: true}, zerolog.DebugLevel},
		{"verbose keeps trace", Options{Level: "trace", Verbose: true}, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Console = &bytes.Buffer{}
			log, closer, err := New(tt.opts)
			require.NoError(t, err)
			defer closer.Close()
			assert.Equal(t, tt.expected, log.GetLevel())
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestConsoleAndFileOutput(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "hdm.log")

	log, closer, err := New(Options{Console: &console, NoColor: true, File: path})
	require.NoError(t, err)

	scan := Component(log, "scan")
	scan.Info().Str("address", "aa").Msg("scanning started")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "scanning started")
	assert.Contains(t, console.String(), "component=scan")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "scanning started", entry["message"])
	assert.Equal(t, "scan", entry["component"])
	assert.Equal(t, "info", entry["level"])
	stamp, ok := entry[zerolog.TimestampFieldName].(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(stamp, "Z"), "timestamp %q is not UTC", stamp)
}

func TestSampledAllowsBurst(t *testing.T) {
	var out bytes.Buffer
	log := Sampled(zerolog.New(&out))
	for i := 0; i < 20; i++ {
		log.Info().Msg("advertisement")
	}
	assert.Equal(t, 20, strings.Count(out.String(), "advertisement"))
}
