package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// LaborDailyMetric holds one operator's aggregated metrics for one date
type LaborDailyMetric struct {
	ID                 int64     `json:"id"`
	OperatorID         uuid.UUID `json:"operatorId"`
	MetricDate         time.Time `json:"metricDate"`
	TasksCompleted     int       `json:"tasksCompleted"`
	UnitsProcessed     int       `json:"unitsProcessed"`
	AvgTaskTimeSeconds float64   `json:"avgTaskTimeSeconds"`
	UtilizationPercent float64   `json:"utilizationPercent"`
}

// UtilizationPercent computes the share of a shift spent on completed task
// work, rounded to two decimals and clamped to [0, 100]. A non-positive
// shift duration yields 0.
func UtilizationPercent(totalActiveSeconds, shiftDurationSeconds int) float64 {
	if shiftDurationSeconds <= 0 {
		return 0
	}

	pct := 100 * float64(totalActiveSeconds) / float64(shiftDurationSeconds)
	pct = math.Round(pct*100) / 100

	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// TaskActiveSeconds derives the active time of a completed task: the stored
// actual duration when present, else the completed−started span, else 0.
func TaskActiveSeconds(actualSeconds *int, startedAt, completedAt *time.Time) int {
	if actualSeconds != nil {
		return *actualSeconds
	}
	if startedAt != nil && completedAt != nil {
		secs := int(completedAt.Sub(*startedAt).Seconds())
		if secs < 0 {
			return 0
		}
		return secs
	}
	return 0
}
