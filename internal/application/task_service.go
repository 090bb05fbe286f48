package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wms-platform/task-service/internal/domain"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
)

// RealtimePublisher is the write side of the realtime event bus as the
// application layer sees it.
type RealtimePublisher interface {
	Publish(ctx context.Context, event *domain.RealtimeEvent) error
}

// UpdateStatusCommand carries the optimistic-lock and audit parameters of
// a status transition.
type UpdateStatusCommand struct {
	ExpectedVersion     *int
	ChangedByOperatorID *uuid.UUID
}

// ListTasksQuery narrows and pages the task list
type ListTasksQuery struct {
	Status     *domain.TaskStatus
	OperatorID *uuid.UUID
	ZoneID     *uuid.UUID
	Page       int
	Limit      int
}

// TaskService owns the task state machine: every status change requested
// through the API goes through it. The assignment worker and the generation
// service write task rows through the task repository themselves.
type TaskService struct {
	db        domain.TxRunner
	tasks     domain.TaskRepository
	operators domain.OperatorRepository
	publisher RealtimePublisher
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewTaskService creates the task service
func NewTaskService(
	db domain.TxRunner,
	tasks domain.TaskRepository,
	operators domain.OperatorRepository,
	publisher RealtimePublisher,
	m *metrics.Metrics,
	logger *logging.Logger,
) *TaskService {
	return &TaskService{
		db:        db,
		tasks:     tasks,
		operators: operators,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent("task-service"),
	}
}

// UpdateStatus transitions one task through the state machine under a row
// lock and an optimistic version guard, appending an audit record in the
// same transaction. The realtime publish happens after commit and is
// best-effort.
func (s *TaskService) UpdateStatus(ctx context.Context, taskID uuid.UUID, newStatus domain.TaskStatus, cmd UpdateStatusCommand) (*domain.Task, error) {
	if _, err := domain.ParseTaskStatus(string(newStatus)); err != nil {
		return nil, apperrors.ErrValidation(fmt.Sprintf("invalid status %q", newStatus))
	}

	if cmd.ChangedByOperatorID != nil {
		exists, err := s.operators.Exists(ctx, *cmd.ChangedByOperatorID)
		if err != nil {
			return nil, apperrors.ErrInternal("").Wrap(err)
		}
		if !exists {
			return nil, apperrors.ErrValidation(
				fmt.Sprintf("operator %s does not exist", cmd.ChangedByOperatorID))
		}
	}

	var updated *domain.Task
	var previousStatus domain.TaskStatus

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		task, err := s.tasks.GetForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}

		if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != task.Version {
			return apperrors.ErrConflict(fmt.Sprintf(
				"version mismatch: expected %d, task is at %d", *cmd.ExpectedVersion, task.Version))
		}

		if !task.Status.CanTransitionTo(newStatus) {
			return apperrors.ErrConflict(fmt.Sprintf(
				"cannot transition task from %s to %s", task.Status, newStatus))
		}

		previousStatus = task.Status
		currentVersion := task.Version
		now := time.Now().UTC()

		task.Status = newStatus
		if newStatus == domain.TaskStatusInProgress && task.StartedAt == nil {
			task.StartedAt = &now
		}
		if newStatus == domain.TaskStatusCompleted {
			task.CompletedAt = &now
			if task.StartedAt != nil {
				secs := int(now.Sub(*task.StartedAt).Seconds())
				if secs < 0 {
					secs = 0
				}
				task.ActualSeconds = &secs
			}
		}

		if err := s.tasks.ApplyStatusUpdate(ctx, tx, task, currentVersion); err != nil {
			if errors.Is(err, domain.ErrVersionMismatch) {
				return apperrors.ErrConflict("task was modified concurrently")
			}
			return err
		}
		task.Version = currentVersion + 1
		task.UpdatedAt = now

		if err := s.tasks.InsertStatusLog(ctx, tx, &domain.TaskStatusLog{
			TaskID:              task.ID,
			FromStatus:          previousStatus,
			ToStatus:            newStatus,
			TaskVersion:         task.Version,
			ChangedByOperatorID: cmd.ChangedByOperatorID,
		}); err != nil {
			return err
		}

		updated = task
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil, apperrors.ErrNotFoundWithID("task", taskID.String())
		}
		if appErr, ok := apperrors.AsAppError(err); ok {
			return nil, appErr
		}
		return nil, apperrors.ErrInternal("").Wrap(err)
	}

	s.publishTaskUpdate(ctx, updated, previousStatus)
	return updated, nil
}

// publishTaskUpdate emits TASK_UPDATED, plus TASK_ASSIGNED when the task
// just became assigned to an operator. Failures never surface to the
// caller; the database commit already happened.
func (s *TaskService) publishTaskUpdate(ctx context.Context, task *domain.Task, previousStatus domain.TaskStatus) {
	payload := taskEventPayload(task)
	payload["previousStatus"] = string(previousStatus)

	if err := s.publisher.Publish(ctx, &domain.RealtimeEvent{
		Type:    domain.EventTaskUpdated,
		Payload: payload,
	}); err != nil {
		s.metrics.RealtimePublishFailures.Inc()
		s.logger.WithError(err).Warn("Failed to publish TASK_UPDATED", "taskId", task.ID)
	}

	if task.Status == domain.TaskStatusAssigned && task.AssignedOperatorID != nil {
		if err := s.publisher.Publish(ctx, &domain.RealtimeEvent{
			Type:    domain.EventTaskAssigned,
			Payload: taskEventPayload(task),
		}); err != nil {
			s.metrics.RealtimePublishFailures.Inc()
			s.logger.WithError(err).Warn("Failed to publish TASK_ASSIGNED", "taskId", task.ID)
		}
	}
}

func taskEventPayload(task *domain.Task) map[string]any {
	payload := map[string]any{
		"taskId":   task.ID.String(),
		"type":     string(task.Type),
		"status":   string(task.Status),
		"priority": task.Priority,
		"zoneId":   task.ZoneID.String(),
		"version":  task.Version,
	}
	if task.AssignedOperatorID != nil {
		payload["assignedOperatorId"] = task.AssignedOperatorID.String()
	}
	return payload
}

// GetTask loads one task with its zone summary and lines
func (s *TaskService) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.TaskDetail, error) {
	detail, err := s.tasks.GetDetail(ctx, taskID)
	if errors.Is(err, domain.ErrTaskNotFound) {
		return nil, apperrors.ErrNotFoundWithID("task", taskID.String())
	}
	if err != nil {
		return nil, apperrors.ErrInternal("").Wrap(err)
	}
	return detail, nil
}

// ListTasks returns one page of tasks ordered by priority then age
func (s *TaskService) ListTasks(ctx context.Context, query ListTasksQuery) ([]domain.Task, int64, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	tasks, total, err := s.tasks.List(ctx, domain.TaskListFilter{
		Status:     query.Status,
		OperatorID: query.OperatorID,
		ZoneID:     query.ZoneID,
		Offset:     (page - 1) * limit,
		Limit:      limit,
	})
	if err != nil {
		return nil, 0, apperrors.ErrInternal("").Wrap(err)
	}
	return tasks, total, nil
}
