package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 250 * time.Millisecond, want: "250ms"},
		{in: 42 * time.Second, want: "42s"},
		{in: 3*time.Minute + 5*time.Second, want: "3m 5s"},
		{in: 2*time.Hour + time.Minute, want: "2h 1m 0s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "decode f…", Truncate("decode failed: missing header", 9))
	assert.Equal(t, "ü", Truncate("üü", 1))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", FormatTime(nil))
	ts := time.Date(2024, 1, 5, 10, 0, 0, 0, time.Local)
	assert.Equal(t, "2024-01-05 10:00:00", FormatTime(&ts))
}
