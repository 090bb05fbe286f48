package application

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/domain/taskgen"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
)

// generationStore backs the stubs with in-memory event and task tables
// keyed the way the real schema is: events unique per event key.
type generationStore struct {
	eventKeys map[string]struct{}
	tasks     []domain.Task
}

func newGenerationStore() *generationStore {
	return &generationStore{eventKeys: make(map[string]struct{})}
}

func (st *generationStore) eventRepo(zones map[int64]uuid.UUID) *stubEventRepo {
	return &stubEventRepo{
		InsertEventFn: func(_ context.Context, _ pgx.Tx, event *domain.TaskGenerationEvent) (bool, error) {
			if _, dup := st.eventKeys[event.EventKey]; dup {
				return false, nil
			}
			st.eventKeys[event.EventKey] = struct{}{}
			return true, nil
		},
		ZonesForLocationsFn: func(_ context.Context, _ pgx.Tx, locationIDs []int64) (map[int64]uuid.UUID, error) {
			resolved := make(map[int64]uuid.UUID)
			for _, id := range locationIDs {
				if zoneID, ok := zones[id]; ok {
					resolved[id] = zoneID
				}
			}
			return resolved, nil
		},
	}
}

func (st *generationStore) taskRepo() *stubTaskRepo {
	return &stubTaskRepo{
		InsertFromSpecFn: func(_ context.Context, _ pgx.Tx, spec domain.TaskSpec) (*domain.Task, error) {
			task := domain.Task{
				ID:               uuid.New(),
				Type:             spec.Type,
				Priority:         spec.Priority,
				Status:           domain.TaskStatusCreated,
				ZoneID:           spec.ZoneID,
				SourceDocumentID: spec.SourceDocumentID,
				EstimatedSeconds: spec.EstimatedSeconds,
				Version:          1,
			}
			st.tasks = append(st.tasks, task)
			return &task, nil
		},
	}
}

func salesEvent(eventKey string) *taskgen.NormalizedEvent {
	shipDate := time.Now().UTC().Add(24 * time.Hour)
	return &taskgen.NormalizedEvent{
		EventKey:         eventKey,
		EventType:        taskgen.EventTypeSalesOrderReady,
		SourceDocumentID: "SO:1001",
		ShipDate:         &shipDate,
		Lines: []taskgen.NormalizedLine{
			{SKUID: 1, Quantity: 2, PickLocationID: 10},
			{SKUID: 2, Quantity: 3, PickLocationID: 11},
		},
		RawPayload: []byte(`{"salesOrderId":"1001"}`),
	}
}

// TestProcessEventIdempotency tests the duplicate-event scenario: the
// first call creates tasks, the second call with the same event key skips
// and leaves exactly one event row and one task set behind.
func TestProcessEventIdempotency(t *testing.T) {
	zoneA := uuid.New()
	zones := map[int64]uuid.UUID{10: zoneA, 11: zoneA}
	st := newGenerationStore()

	service := NewGenerationService(stubTxRunner{}, st.eventRepo(zones), st.taskRepo(),
		taskgen.DefaultOptions(), testLogger())

	first, err := service.ProcessEvent(context.Background(), salesEvent("stable-key"))
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	require.Len(t, first.Tasks, 1)
	assert.Equal(t, domain.TaskStatusCreated, first.Tasks[0].Status)
	assert.Equal(t, 1, first.Tasks[0].Version)

	second, err := service.ProcessEvent(context.Background(), salesEvent("stable-key"))
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, "duplicate_event", second.Reason)
	assert.Empty(t, second.Tasks)

	assert.Len(t, st.eventKeys, 1, "exactly one event row")
	assert.Len(t, st.tasks, 1, "exactly one task set")
}

// TestProcessEventSplitsByZone tests that a two-zone event creates one
// task per zone in one call.
func TestProcessEventSplitsByZone(t *testing.T) {
	zones := map[int64]uuid.UUID{10: uuid.New(), 11: uuid.New()}
	st := newGenerationStore()

	service := NewGenerationService(stubTxRunner{}, st.eventRepo(zones), st.taskRepo(),
		taskgen.DefaultOptions(), testLogger())

	result, err := service.ProcessEvent(context.Background(), salesEvent("two-zones"))
	require.NoError(t, err)
	require.Len(t, result.Tasks, 2)
	assert.NotEqual(t, result.Tasks[0].ZoneID, result.Tasks[1].ZoneID)
}

// TestProcessEventUnmappedLocation tests that a missing zone mapping is a
// validation failure naming the offending location.
func TestProcessEventUnmappedLocation(t *testing.T) {
	zones := map[int64]uuid.UUID{10: uuid.New()} // 11 unmapped
	st := newGenerationStore()

	service := NewGenerationService(stubTxRunner{}, st.eventRepo(zones), st.taskRepo(),
		taskgen.DefaultOptions(), testLogger())

	_, err := service.ProcessEvent(context.Background(), salesEvent("bad-location"))
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	assert.Contains(t, appErr.Message, "11")
	assert.Empty(t, st.tasks, "no tasks on failure")
}
