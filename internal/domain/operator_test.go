package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestShiftDurationSeconds tests the wall-clock shift window math
func TestShiftDurationSeconds(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		expected int
	}{
		{name: "Day shift", start: "08:00", end: "16:00", expected: 8 * 3600},
		{name: "With seconds", start: "08:00:30", end: "08:01:00", expected: 30},
		{name: "Equal start and end", start: "09:00", end: "09:00", expected: 0},
		{name: "Night shift wraps midnight", start: "22:00", end: "06:00", expected: 8 * 3600},
		{name: "Wraparound one minute short of full day", start: "00:01", end: "00:00", expected: 86340},
		{name: "Full-day boundary", start: "00:00", end: "23:59", expected: 86340},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			duration, err := ShiftDurationSeconds(tt.start, tt.end)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, duration)
			assert.GreaterOrEqual(t, duration, 0)
		})
	}
}

// TestShiftDurationSecondsRejectsBadInput tests component range checks
func TestShiftDurationSecondsRejectsBadInput(t *testing.T) {
	bad := []struct {
		start string
		end   string
	}{
		{"24:00", "08:00"},
		{"08:60", "16:00"},
		{"08:00", "16:00:60"},
		{"eight", "16:00"},
		{"08", "16:00"},
		{"", "16:00"},
		{"08:00:00:00", "16:00"},
	}

	for _, tt := range bad {
		_, err := ShiftDurationSeconds(tt.start, tt.end)
		assert.ErrorIs(t, err, ErrInvalidShiftTime, "start=%q end=%q", tt.start, tt.end)
	}
}

// TestParseOperatorStatus tests operator status validation
func TestParseOperatorStatus(t *testing.T) {
	for _, valid := range []string{"available", "busy", "offline"} {
		status, err := ParseOperatorStatus(valid)
		assert.NoError(t, err)
		assert.Equal(t, OperatorStatus(valid), status)
	}

	_, err := ParseOperatorStatus("on_break")
	assert.ErrorIs(t, err, ErrInvalidOperatorStatus)
}
