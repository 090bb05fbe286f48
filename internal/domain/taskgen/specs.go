package taskgen

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/task-service/internal/domain"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
)

// Options holds the estimation and priority tunables
type Options struct {
	PickBaseSeconds       int
	PickPerUnitSeconds    int
	PutawayBaseSeconds    int
	PutawayPerUnitSeconds int
	PutawayPriority       int
}

// DefaultOptions returns the standard generation tunables
func DefaultOptions() Options {
	return Options{
		PickBaseSeconds:       90,
		PickPerUnitSeconds:    12,
		PutawayBaseSeconds:    75,
		PutawayPerUnitSeconds: 10,
		PutawayPriority:       60,
	}
}

// ZoneResolver maps a location to its zone. A false return means the
// location has no zone mapping.
type ZoneResolver func(locationID int64) (uuid.UUID, bool)

// CalculateEstimatedTime returns base + units*perUnit seconds
func CalculateEstimatedTime(units, baseSeconds, perUnitSeconds int) int {
	return baseSeconds + units*perUnitSeconds
}

// PickPriority derives a pick task's priority from the time remaining
// until the ship date, in whole days. Higher is more urgent.
func PickPriority(shipDate, now time.Time) int {
	days := int(shipDate.Sub(now).Hours() / 24)

	switch {
	case days <= 0:
		return 100
	case days == 1:
		return 90
	case days <= 3:
		return 70
	default:
		return 50
	}
}

// BuildTaskSpecs groups a normalized event's lines by zone and emits one
// task spec per zone bucket, in first-appearance order.
func BuildTaskSpecs(event *NormalizedEvent, resolveZone ZoneResolver, opts Options, now time.Time) ([]domain.TaskSpec, error) {
	isPick := event.EventType == EventTypeSalesOrderReady

	var zoneOrder []uuid.UUID
	buckets := make(map[uuid.UUID][]NormalizedLine)

	for _, line := range event.Lines {
		locationID := line.PickLocationID
		if !isPick {
			locationID = line.DestinationLocationID
		}

		zoneID, ok := resolveZone(locationID)
		if !ok {
			return nil, apperrors.ErrValidation(fmt.Sprintf("location %d has no zone mapping", locationID))
		}

		if _, seen := buckets[zoneID]; !seen {
			zoneOrder = append(zoneOrder, zoneID)
		}
		buckets[zoneID] = append(buckets[zoneID], line)
	}

	specs := make([]domain.TaskSpec, 0, len(zoneOrder))
	for _, zoneID := range zoneOrder {
		lines := buckets[zoneID]

		totalUnits := 0
		lineSpecs := make([]domain.LineSpec, 0, len(lines))
		for _, line := range lines {
			totalUnits += line.Quantity

			spec := domain.LineSpec{
				SKUID:    line.SKUID,
				Quantity: line.Quantity,
				Status:   domain.TaskLineStatusCreated,
			}
			if isPick {
				from := line.PickLocationID
				spec.FromLocationID = &from
			} else {
				to := line.DestinationLocationID
				spec.ToLocationID = &to
				spec.FromLocationID = line.FromLocationID
			}
			lineSpecs = append(lineSpecs, spec)
		}

		spec := domain.TaskSpec{
			ZoneID:           zoneID,
			SourceDocumentID: event.SourceDocumentID,
			Lines:            lineSpecs,
		}

		if isPick {
			spec.Type = domain.TaskTypePick
			spec.Priority = PickPriority(*event.ShipDate, now)
			spec.EstimatedSeconds = CalculateEstimatedTime(totalUnits, opts.PickBaseSeconds, opts.PickPerUnitSeconds)
		} else {
			spec.Type = domain.TaskTypePutaway
			spec.Priority = opts.PutawayPriority
			spec.EstimatedSeconds = CalculateEstimatedTime(totalUnits, opts.PutawayBaseSeconds, opts.PutawayPerUnitSeconds)
		}

		specs = append(specs, spec)
	}

	return specs, nil
}
