package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "debug", Format: FormatJSON, Output: &buf, Service: "test"})

	logger.WithOperation("pipeline").WithRun("run-1").WithFile("a.pdf", 2).Info().
		Str("new_name", "b.pdf").
		Msg("File completed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "pipeline", entry["operation"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "a.pdf", entry["file"])
	assert.Equal(t, float64(2), entry["index"])
	assert.Equal(t, "b.pdf", entry["new_name"])
	assert.Equal(t, "File completed", entry["message"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "warn", Format: FormatJSON, Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		" WARN ":   zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"disabled": zerolog.Disabled,
		"off":      zerolog.Disabled,
		"":         zerolog.InfoLevel,
		"bogus":    zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewLogger_ConsoleWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: FormatConsole, Output: &buf, NoColor: true})

	logger.WithRun("run-7").Info().Msg("Batch started")

	out := buf.String()
	assert.Contains(t, out, "Batch started")
	assert.Contains(t, out, "run_id=run-7")
	assert.NotContains(t, out, "\x1b[")
}
