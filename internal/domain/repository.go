package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxRunner runs a function inside one database transaction, committing on
// nil error and rolling back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// TaskListFilter narrows the paginated task list
type TaskListFilter struct {
	Status     *TaskStatus
	OperatorID *uuid.UUID
	ZoneID     *uuid.UUID
	Offset     int
	Limit      int
}

// TaskRepository defines the interface for task persistence
type TaskRepository interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*Task, error)
	ApplyStatusUpdate(ctx context.Context, tx pgx.Tx, task *Task, currentVersion int) error
	InsertStatusLog(ctx context.Context, tx pgx.Tx, log *TaskStatusLog) error
	InsertFromSpec(ctx context.Context, tx pgx.Tx, spec TaskSpec) (*Task, error)
	SelectAssignmentCandidates(ctx context.Context, tx pgx.Tx, batchSize int) ([]Task, error)
	Assign(ctx context.Context, tx pgx.Tx, taskID, operatorID uuid.UUID) (*Task, error)
	GetDetail(ctx context.Context, taskID uuid.UUID) (*TaskDetail, error)
	List(ctx context.Context, filter TaskListFilter) ([]Task, int64, error)
	CountByStatus(ctx context.Context, date *time.Time) (map[TaskStatus]int64, error)
}

// OperatorRepository defines the interface for operator persistence
type OperatorRepository interface {
	Get(ctx context.Context, operatorID uuid.UUID) (*Operator, error)
	Exists(ctx context.Context, operatorID uuid.UUID) (bool, error)
	List(ctx context.Context, status *OperatorStatus, offset, limit int) ([]Operator, int64, error)
	ListAll(ctx context.Context, tx pgx.Tx) ([]Operator, error)
	UpdateStatus(ctx context.Context, operatorID uuid.UUID, status OperatorStatus) (*Operator, error)
	CountAvailable(ctx context.Context, tx pgx.Tx) (int, error)
	BestAvailableForZone(ctx context.Context, tx pgx.Tx, zoneID uuid.UUID) (*Operator, error)
}

// GenerationEventRepository defines the interface for generation event
// persistence and zone resolution
type GenerationEventRepository interface {
	// InsertEvent records one generation event; a false return means the
	// event key was already processed.
	InsertEvent(ctx context.Context, tx pgx.Tx, event *TaskGenerationEvent) (bool, error)
	ZonesForLocations(ctx context.Context, tx pgx.Tx, locationIDs []int64) (map[int64]uuid.UUID, error)
}
