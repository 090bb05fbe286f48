package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestUtilizationPercent tests bounds and two-decimal rounding
func TestUtilizationPercent(t *testing.T) {
	tests := []struct {
		name     string
		active   int
		shift    int
		expected float64
	}{
		{name: "Half shift", active: 14400, shift: 28800, expected: 50},
		{name: "Full shift", active: 28800, shift: 28800, expected: 100},
		{name: "Over shift clamps to 100", active: 40000, shift: 28800, expected: 100},
		{name: "Zero shift yields zero", active: 14400, shift: 0, expected: 0},
		{name: "Negative shift yields zero", active: 14400, shift: -60, expected: 0},
		{name: "No active time", active: 0, shift: 28800, expected: 0},
		{name: "Rounds to two decimals", active: 1000, shift: 28800, expected: 3.47},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pct := UtilizationPercent(tt.active, tt.shift)
			assert.Equal(t, tt.expected, pct)
			assert.GreaterOrEqual(t, pct, 0.0)
			assert.LessOrEqual(t, pct, 100.0)
		})
	}
}

// TestTaskActiveSeconds tests active-time derivation precedence
func TestTaskActiveSeconds(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(25 * time.Minute)
	actual := 900

	assert.Equal(t, 900, TaskActiveSeconds(&actual, &started, &completed),
		"stored actual wins over timestamps")
	assert.Equal(t, 1500, TaskActiveSeconds(nil, &started, &completed))
	assert.Equal(t, 0, TaskActiveSeconds(nil, &started, nil))
	assert.Equal(t, 0, TaskActiveSeconds(nil, nil, &completed))
	assert.Equal(t, 0, TaskActiveSeconds(nil, nil, nil))

	// Clock skew cannot produce negative time.
	earlier := started.Add(-time.Minute)
	assert.Equal(t, 0, TaskActiveSeconds(nil, &started, &earlier))
}
