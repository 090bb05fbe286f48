package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/domain/taskgen"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
	"github.com/wms-platform/task-service/internal/pkg/logging"
)

// GenerationResult reports one processed generation event
type GenerationResult struct {
	Skipped bool          `json:"skipped"`
	Reason  string        `json:"reason,omitempty"`
	Tasks   []domain.Task `json:"tasks"`
}

// GenerationService turns normalized order events into tasks. Event
// recording, zone resolution and task inserts share one transaction, so a
// failure after the idempotency insert leaves the event retriable.
type GenerationService struct {
	db     domain.TxRunner
	events domain.GenerationEventRepository
	tasks  domain.TaskRepository
	opts   taskgen.Options
	logger *logging.Logger
}

// NewGenerationService creates the generation service
func NewGenerationService(
	db domain.TxRunner,
	events domain.GenerationEventRepository,
	tasks domain.TaskRepository,
	opts taskgen.Options,
	logger *logging.Logger,
) *GenerationService {
	return &GenerationService{
		db:     db,
		events: events,
		tasks:  tasks,
		opts:   opts,
		logger: logger.WithComponent("generation-service"),
	}
}

// ProcessEvent records the event and creates its tasks. Processing the
// same event key twice creates tasks once; the second call reports
// skipped with reason duplicate_event.
func (s *GenerationService) ProcessEvent(ctx context.Context, event *taskgen.NormalizedEvent) (*GenerationResult, error) {
	result := &GenerationResult{Tasks: []domain.Task{}}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		inserted, err := s.events.InsertEvent(ctx, tx, &domain.TaskGenerationEvent{
			EventKey:         event.EventKey,
			EventType:        event.EventType,
			SourceDocumentID: event.SourceDocumentID,
			Payload:          event.RawPayload,
		})
		if err != nil {
			return err
		}
		if !inserted {
			result.Skipped = true
			result.Reason = "duplicate_event"
			return nil
		}

		locationIDs := collectLocationIDs(event)
		zones, err := s.events.ZonesForLocations(ctx, tx, locationIDs)
		if err != nil {
			return err
		}

		var missing []int64
		for _, id := range locationIDs {
			if _, ok := zones[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return apperrors.ErrValidation(
				fmt.Sprintf("locations without zone mapping: %v", missing))
		}

		resolver := func(locationID int64) (uuid.UUID, bool) {
			zoneID, ok := zones[locationID]
			return zoneID, ok
		}

		specs, err := taskgen.BuildTaskSpecs(event, resolver, s.opts, time.Now().UTC())
		if err != nil {
			return err
		}

		for _, spec := range specs {
			task, err := s.tasks.InsertFromSpec(ctx, tx, spec)
			if err != nil {
				return err
			}
			result.Tasks = append(result.Tasks, *task)
		}
		return nil
	})
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			return nil, appErr
		}
		return nil, apperrors.ErrInternal("").Wrap(err)
	}

	if result.Skipped {
		s.logger.Info("Skipped duplicate generation event", "eventKey", event.EventKey)
	} else {
		s.logger.Info("Generated tasks from event",
			"eventKey", event.EventKey,
			"sourceDocumentId", event.SourceDocumentID,
			"tasks", len(result.Tasks),
		)
	}
	return result, nil
}

// collectLocationIDs gathers the locations that drive zone grouping,
// deduped and in stable order. The optional putaway source location does
// not take part in grouping and needs no zone mapping.
func collectLocationIDs(event *taskgen.NormalizedEvent) []int64 {
	seen := make(map[int64]struct{})
	for _, line := range event.Lines {
		if line.PickLocationID > 0 {
			seen[line.PickLocationID] = struct{}{}
		}
		if line.DestinationLocationID > 0 {
			seen[line.DestinationLocationID] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
