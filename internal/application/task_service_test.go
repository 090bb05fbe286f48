package application

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-service/internal/domain"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
)

// taskStore backs the stub repo with one in-memory task row so the
// version predicate behaves like the real update statement.
type taskStore struct {
	task *domain.Task
	logs []domain.TaskStatusLog
}

func newTaskStore(task domain.Task) *taskStore {
	return &taskStore{task: &task}
}

func (st *taskStore) repo() *stubTaskRepo {
	return &stubTaskRepo{
		GetForUpdateFn: func(_ context.Context, _ pgx.Tx, taskID uuid.UUID) (*domain.Task, error) {
			if st.task == nil || st.task.ID != taskID {
				return nil, domain.ErrTaskNotFound
			}
			snapshot := *st.task
			return &snapshot, nil
		},
		ApplyStatusUpdateFn: func(_ context.Context, _ pgx.Tx, task *domain.Task, currentVersion int) error {
			if st.task.Version != currentVersion {
				return domain.ErrVersionMismatch
			}
			updated := *task
			updated.Version = currentVersion + 1
			st.task = &updated
			return nil
		},
		InsertStatusLogFn: func(_ context.Context, _ pgx.Tx, log *domain.TaskStatusLog) error {
			st.logs = append(st.logs, *log)
			return nil
		},
	}
}

func newTestTaskService(st *taskStore, operators *stubOperatorRepo, publisher *stubPublisher) *TaskService {
	if operators == nil {
		operators = &stubOperatorRepo{}
	}
	return NewTaskService(stubTxRunner{}, st.repo(), operators, publisher, testMetrics(), testLogger())
}

func intPtr(v int) *int { return &v }

// TestUpdateStatusOptimisticLock tests the optimistic lock scenario: with
// the task at version 3, the first caller succeeds and bumps to 4, a
// second caller still quoting version 3 conflicts.
func TestUpdateStatusOptimisticLock(t *testing.T) {
	taskID := uuid.New()
	st := newTaskStore(domain.Task{
		ID:      taskID,
		Type:    domain.TaskTypePick,
		Status:  domain.TaskStatusAssigned,
		Version: 3,
	})
	publisher := &stubPublisher{}
	service := newTestTaskService(st, nil, publisher)

	updated, err := service.UpdateStatus(context.Background(), taskID, domain.TaskStatusInProgress,
		UpdateStatusCommand{ExpectedVersion: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Version)
	assert.Equal(t, domain.TaskStatusInProgress, updated.Status)

	_, err = service.UpdateStatus(context.Background(), taskID, domain.TaskStatusPaused,
		UpdateStatusCommand{ExpectedVersion: intPtr(3)})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)

	// The losing call changed nothing.
	assert.Equal(t, 4, st.task.Version)
	assert.Equal(t, domain.TaskStatusInProgress, st.task.Status)
}

// TestUpdateStatusRejectsIllegalTransition tests the 409 on transitions
// outside the state machine.
func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	taskID := uuid.New()
	st := newTaskStore(domain.Task{
		ID:      taskID,
		Status:  domain.TaskStatusCreated,
		Version: 1,
	})
	service := newTestTaskService(st, nil, &stubPublisher{})

	_, err := service.UpdateStatus(context.Background(), taskID, domain.TaskStatusCompleted,
		UpdateStatusCommand{ExpectedVersion: intPtr(1)})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	assert.Empty(t, st.logs, "no audit row for a rejected transition")
}

// TestUpdateStatusNotFound tests the 404 path
func TestUpdateStatusNotFound(t *testing.T) {
	st := newTaskStore(domain.Task{ID: uuid.New(), Status: domain.TaskStatusCreated, Version: 1})
	service := newTestTaskService(st, nil, &stubPublisher{})

	_, err := service.UpdateStatus(context.Background(), uuid.New(), domain.TaskStatusCancelled,
		UpdateStatusCommand{ExpectedVersion: intPtr(1)})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

// TestUpdateStatusUnknownOperator tests the 400 on a changedBy operator
// that does not exist.
func TestUpdateStatusUnknownOperator(t *testing.T) {
	taskID := uuid.New()
	st := newTaskStore(domain.Task{ID: taskID, Status: domain.TaskStatusAssigned, Version: 1})
	operators := &stubOperatorRepo{
		ExistsFn: func(context.Context, uuid.UUID) (bool, error) { return false, nil },
	}
	service := newTestTaskService(st, operators, &stubPublisher{})

	ghost := uuid.New()
	_, err := service.UpdateStatus(context.Background(), taskID, domain.TaskStatusInProgress,
		UpdateStatusCommand{ExpectedVersion: intPtr(1), ChangedByOperatorID: &ghost})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

// TestUpdateStatusCompletionSideEffects tests timestamps, duration and
// the audit trail across a start -> complete sequence.
func TestUpdateStatusCompletionSideEffects(t *testing.T) {
	taskID := uuid.New()
	operatorID := uuid.New()
	st := newTaskStore(domain.Task{
		ID:                 taskID,
		Status:             domain.TaskStatusAssigned,
		AssignedOperatorID: &operatorID,
		Version:            2,
	})
	operators := &stubOperatorRepo{
		ExistsFn: func(context.Context, uuid.UUID) (bool, error) { return true, nil },
	}
	publisher := &stubPublisher{}
	service := newTestTaskService(st, operators, publisher)

	started, err := service.UpdateStatus(context.Background(), taskID, domain.TaskStatusInProgress,
		UpdateStatusCommand{ExpectedVersion: intPtr(2), ChangedByOperatorID: &operatorID})
	require.NoError(t, err)
	require.NotNil(t, started.StartedAt)
	assert.Nil(t, started.CompletedAt)

	completed, err := service.UpdateStatus(context.Background(), taskID, domain.TaskStatusCompleted,
		UpdateStatusCommand{ExpectedVersion: intPtr(3), ChangedByOperatorID: &operatorID})
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.ActualSeconds)
	assert.GreaterOrEqual(t, *completed.ActualSeconds, 0)
	assert.Equal(t, 4, completed.Version)

	require.Len(t, st.logs, 2)
	assert.Equal(t, domain.TaskStatusAssigned, st.logs[0].FromStatus)
	assert.Equal(t, domain.TaskStatusInProgress, st.logs[0].ToStatus)
	assert.Equal(t, 3, st.logs[0].TaskVersion)
	assert.Equal(t, domain.TaskStatusCompleted, st.logs[1].ToStatus)
	assert.Equal(t, 4, st.logs[1].TaskVersion)
	require.NotNil(t, st.logs[1].ChangedByOperatorID)
	assert.Equal(t, operatorID, *st.logs[1].ChangedByOperatorID)

	// One TASK_UPDATED per successful transition; publish failures would
	// not have failed the calls either way.
	events := publisher.published()
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, domain.EventTaskUpdated, event.Type)
	}
}

// TestUpdateStatusPublishFailureDoesNotFail tests that a broken publisher
// never surfaces to the caller after commit.
func TestUpdateStatusPublishFailureDoesNotFail(t *testing.T) {
	taskID := uuid.New()
	st := newTaskStore(domain.Task{ID: taskID, Status: domain.TaskStatusAssigned, Version: 1})
	publisher := &stubPublisher{err: assert.AnError}
	service := newTestTaskService(st, nil, publisher)

	updated, err := service.UpdateStatus(context.Background(), taskID, domain.TaskStatusInProgress,
		UpdateStatusCommand{ExpectedVersion: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
}
