package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test"})
}

func testMetrics() *metrics.Metrics {
	return metrics.New(metrics.DefaultConfig("test"))
}

// stubTxRunner runs the transaction body directly; there is no database
// underneath the stubs.
type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type stubPublisher struct {
	mu     sync.Mutex
	events []*domain.RealtimeEvent
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, event *domain.RealtimeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *stubPublisher) published() []*domain.RealtimeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*domain.RealtimeEvent, len(p.events))
	copy(out, p.events)
	return out
}

type stubTaskRepo struct {
	GetForUpdateFn               func(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*domain.Task, error)
	ApplyStatusUpdateFn          func(ctx context.Context, tx pgx.Tx, task *domain.Task, currentVersion int) error
	InsertStatusLogFn            func(ctx context.Context, tx pgx.Tx, log *domain.TaskStatusLog) error
	InsertFromSpecFn             func(ctx context.Context, tx pgx.Tx, spec domain.TaskSpec) (*domain.Task, error)
	SelectAssignmentCandidatesFn func(ctx context.Context, tx pgx.Tx, batchSize int) ([]domain.Task, error)
	AssignFn                     func(ctx context.Context, tx pgx.Tx, taskID, operatorID uuid.UUID) (*domain.Task, error)
	GetDetailFn                  func(ctx context.Context, taskID uuid.UUID) (*domain.TaskDetail, error)
	ListFn                       func(ctx context.Context, filter domain.TaskListFilter) ([]domain.Task, int64, error)
	CountByStatusFn              func(ctx context.Context, date *time.Time) (map[domain.TaskStatus]int64, error)
}

func (s *stubTaskRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*domain.Task, error) {
	if s.GetForUpdateFn != nil {
		return s.GetForUpdateFn(ctx, tx, taskID)
	}
	return nil, domain.ErrTaskNotFound
}

func (s *stubTaskRepo) ApplyStatusUpdate(ctx context.Context, tx pgx.Tx, task *domain.Task, currentVersion int) error {
	if s.ApplyStatusUpdateFn != nil {
		return s.ApplyStatusUpdateFn(ctx, tx, task, currentVersion)
	}
	return nil
}

func (s *stubTaskRepo) InsertStatusLog(ctx context.Context, tx pgx.Tx, log *domain.TaskStatusLog) error {
	if s.InsertStatusLogFn != nil {
		return s.InsertStatusLogFn(ctx, tx, log)
	}
	return nil
}

func (s *stubTaskRepo) InsertFromSpec(ctx context.Context, tx pgx.Tx, spec domain.TaskSpec) (*domain.Task, error) {
	if s.InsertFromSpecFn != nil {
		return s.InsertFromSpecFn(ctx, tx, spec)
	}
	return nil, nil
}

func (s *stubTaskRepo) SelectAssignmentCandidates(ctx context.Context, tx pgx.Tx, batchSize int) ([]domain.Task, error) {
	if s.SelectAssignmentCandidatesFn != nil {
		return s.SelectAssignmentCandidatesFn(ctx, tx, batchSize)
	}
	return nil, nil
}

func (s *stubTaskRepo) Assign(ctx context.Context, tx pgx.Tx, taskID, operatorID uuid.UUID) (*domain.Task, error) {
	if s.AssignFn != nil {
		return s.AssignFn(ctx, tx, taskID, operatorID)
	}
	return nil, domain.ErrVersionMismatch
}

func (s *stubTaskRepo) GetDetail(ctx context.Context, taskID uuid.UUID) (*domain.TaskDetail, error) {
	if s.GetDetailFn != nil {
		return s.GetDetailFn(ctx, taskID)
	}
	return nil, domain.ErrTaskNotFound
}

func (s *stubTaskRepo) List(ctx context.Context, filter domain.TaskListFilter) ([]domain.Task, int64, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, filter)
	}
	return nil, 0, nil
}

func (s *stubTaskRepo) CountByStatus(ctx context.Context, date *time.Time) (map[domain.TaskStatus]int64, error) {
	if s.CountByStatusFn != nil {
		return s.CountByStatusFn(ctx, date)
	}
	return map[domain.TaskStatus]int64{}, nil
}

type stubOperatorRepo struct {
	GetFn                  func(ctx context.Context, operatorID uuid.UUID) (*domain.Operator, error)
	ExistsFn               func(ctx context.Context, operatorID uuid.UUID) (bool, error)
	ListFn                 func(ctx context.Context, status *domain.OperatorStatus, offset, limit int) ([]domain.Operator, int64, error)
	ListAllFn              func(ctx context.Context, tx pgx.Tx) ([]domain.Operator, error)
	UpdateStatusFn         func(ctx context.Context, operatorID uuid.UUID, status domain.OperatorStatus) (*domain.Operator, error)
	CountAvailableFn       func(ctx context.Context, tx pgx.Tx) (int, error)
	BestAvailableForZoneFn func(ctx context.Context, tx pgx.Tx, zoneID uuid.UUID) (*domain.Operator, error)
}

func (s *stubOperatorRepo) Get(ctx context.Context, operatorID uuid.UUID) (*domain.Operator, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, operatorID)
	}
	return nil, domain.ErrOperatorNotFound
}

func (s *stubOperatorRepo) Exists(ctx context.Context, operatorID uuid.UUID) (bool, error) {
	if s.ExistsFn != nil {
		return s.ExistsFn(ctx, operatorID)
	}
	return false, nil
}

func (s *stubOperatorRepo) List(ctx context.Context, status *domain.OperatorStatus, offset, limit int) ([]domain.Operator, int64, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, status, offset, limit)
	}
	return nil, 0, nil
}

func (s *stubOperatorRepo) ListAll(ctx context.Context, tx pgx.Tx) ([]domain.Operator, error) {
	if s.ListAllFn != nil {
		return s.ListAllFn(ctx, tx)
	}
	return nil, nil
}

func (s *stubOperatorRepo) UpdateStatus(ctx context.Context, operatorID uuid.UUID, status domain.OperatorStatus) (*domain.Operator, error) {
	if s.UpdateStatusFn != nil {
		return s.UpdateStatusFn(ctx, operatorID, status)
	}
	return nil, domain.ErrOperatorNotFound
}

func (s *stubOperatorRepo) CountAvailable(ctx context.Context, tx pgx.Tx) (int, error) {
	if s.CountAvailableFn != nil {
		return s.CountAvailableFn(ctx, tx)
	}
	return 0, nil
}

func (s *stubOperatorRepo) BestAvailableForZone(ctx context.Context, tx pgx.Tx, zoneID uuid.UUID) (*domain.Operator, error) {
	if s.BestAvailableForZoneFn != nil {
		return s.BestAvailableForZoneFn(ctx, tx, zoneID)
	}
	return nil, nil
}

type stubEventRepo struct {
	InsertEventFn       func(ctx context.Context, tx pgx.Tx, event *domain.TaskGenerationEvent) (bool, error)
	ZonesForLocationsFn func(ctx context.Context, tx pgx.Tx, locationIDs []int64) (map[int64]uuid.UUID, error)
}

func (s *stubEventRepo) InsertEvent(ctx context.Context, tx pgx.Tx, event *domain.TaskGenerationEvent) (bool, error) {
	if s.InsertEventFn != nil {
		return s.InsertEventFn(ctx, tx, event)
	}
	return true, nil
}

func (s *stubEventRepo) ZonesForLocations(ctx context.Context, tx pgx.Tx, locationIDs []int64) (map[int64]uuid.UUID, error) {
	if s.ZonesForLocationsFn != nil {
		return s.ZonesForLocationsFn(ctx, tx, locationIDs)
	}
	return map[int64]uuid.UUID{}, nil
}
