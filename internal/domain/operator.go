package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidOperatorStatus = errors.New("invalid operator status value")
	ErrInvalidShiftTime      = errors.New("invalid shift time")
	ErrOperatorNotFound      = errors.New("operator not found")
)

// OperatorStatus represents the availability of an operator
type OperatorStatus string

const (
	OperatorStatusAvailable OperatorStatus = "available"
	OperatorStatusBusy      OperatorStatus = "busy"
	OperatorStatusOffline   OperatorStatus = "offline"
)

// ParseOperatorStatus validates a raw operator status string
func ParseOperatorStatus(s string) (OperatorStatus, error) {
	switch OperatorStatus(s) {
	case OperatorStatusAvailable, OperatorStatusBusy, OperatorStatusOffline:
		return OperatorStatus(s), nil
	default:
		return "", ErrInvalidOperatorStatus
	}
}

// Operator is a warehouse worker eligible for task assignment
type Operator struct {
	ID               uuid.UUID      `json:"id"`
	Name             string         `json:"name"`
	Role             string         `json:"role"`
	Status           OperatorStatus `json:"status"`
	ShiftStart       string         `json:"shiftStart"` // wall-clock HH:MM[:SS]
	ShiftEnd         string         `json:"shiftEnd"`
	PerformanceScore float64        `json:"performanceScore"`
	ZoneIDs          []uuid.UUID    `json:"zoneIds,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// parseShiftClock parses HH:MM[:SS] into seconds since midnight,
// rejecting out-of-range components.
func parseShiftClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidShiftTime, s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: hour in %q", ErrInvalidShiftTime, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: minute in %q", ErrInvalidShiftTime, s)
	}
	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, fmt.Errorf("%w: second in %q", ErrInvalidShiftTime, s)
		}
	}

	return hour*3600 + minute*60 + second, nil
}

// ShiftDurationSeconds computes the length of a wall-clock shift window.
// A shift whose end precedes its start wraps past midnight.
func ShiftDurationSeconds(shiftStart, shiftEnd string) (int, error) {
	start, err := parseShiftClock(shiftStart)
	if err != nil {
		return 0, err
	}
	end, err := parseShiftClock(shiftEnd)
	if err != nil {
		return 0, err
	}

	switch {
	case start == end:
		return 0, nil
	case end > start:
		return end - start, nil
	default:
		return 86400 - start + end, nil
	}
}
