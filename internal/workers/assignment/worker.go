package assignment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wms-platform/task-service/internal/application"
	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
)

// Config holds assignment worker tunables
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultConfig returns the standard worker tunables
func DefaultConfig() Config {
	return Config{
		Interval:  10 * time.Second,
		BatchSize: 200,
	}
}

// CycleStats reports one assignment cycle
type CycleStats struct {
	Scanned                 int
	Assigned                int
	Unassigned              int
	AvailableOperators      int
	RealtimePublishFailures int
	DurationMs              int64
}

type assignedTask struct {
	task     domain.Task
	operator domain.Operator
}

// Worker is the periodic assignment loop. Candidate tasks and chosen
// operators are both locked with SKIP LOCKED, so multiple instances can
// run against the same database without contending.
type Worker struct {
	db        domain.TxRunner
	tasks     domain.TaskRepository
	operators domain.OperatorRepository
	publisher application.RealtimePublisher
	metrics   *metrics.Metrics
	logger    *logging.Logger
	config    Config

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewWorker creates the assignment worker
func NewWorker(
	db domain.TxRunner,
	tasks domain.TaskRepository,
	operators domain.OperatorRepository,
	publisher application.RealtimePublisher,
	m *metrics.Metrics,
	logger *logging.Logger,
	config Config,
) *Worker {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Worker{
		db:        db,
		tasks:     tasks,
		operators: operators,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent("assignment-worker"),
		config:    config,
	}
}

// Start runs the loop until ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.config.Interval)
		defer ticker.Stop()

		w.logger.Info("Assignment worker started",
			"interval", w.config.Interval.String(),
			"batchSize", w.config.BatchSize,
		)

		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Assignment worker stopping")
				return
			case <-ticker.C:
				w.tick(ctx)
			}
		}
	}()
}

// Stop waits for the loop and any in-flight cycle to finish
func (w *Worker) Stop() {
	w.wg.Wait()
}

// tick runs one cycle unless the previous one is still in flight
func (w *Worker) tick(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Warn("Skipping assignment tick: previous cycle still running")
		return
	}
	defer w.running.Store(false)

	stats, err := w.runCycle(ctx)
	if err != nil {
		// A failed cycle never halts the loop; the next tick retries.
		w.logger.WithError(err).Error("Assignment cycle failed")
		return
	}

	w.metrics.AssignmentCyclesTotal.Inc()
	w.metrics.AssignmentTasksAssigned.Add(float64(stats.Assigned))
	w.metrics.AssignmentTasksSkipped.Add(float64(stats.Unassigned))
	w.metrics.AvailableOperators.Set(float64(stats.AvailableOperators))
	w.metrics.AssignmentCycleDuration.Observe(float64(stats.DurationMs) / 1000)

	w.logger.WorkerCycle(ctx, "assignment", time.Duration(stats.DurationMs)*time.Millisecond, true, map[string]any{
		"scanned":                 stats.Scanned,
		"assigned":                stats.Assigned,
		"unassigned":              stats.Unassigned,
		"availableOperators":      stats.AvailableOperators,
		"realtimePublishFailures": stats.RealtimePublishFailures,
	})
}

// runCycle locks a candidate batch, pairs each task with the best
// operator for its zone, and publishes the assignments after commit.
func (w *Worker) runCycle(ctx context.Context) (*CycleStats, error) {
	start := time.Now()
	stats := &CycleStats{}
	var assigned []assignedTask

	err := w.db.WithTx(ctx, func(tx pgx.Tx) error {
		available, err := w.operators.CountAvailable(ctx, tx)
		if err != nil {
			return err
		}
		stats.AvailableOperators = available

		candidates, err := w.tasks.SelectAssignmentCandidates(ctx, tx, w.config.BatchSize)
		if err != nil {
			return err
		}
		stats.Scanned = len(candidates)

		for _, candidate := range candidates {
			operator, err := w.operators.BestAvailableForZone(ctx, tx, candidate.ZoneID)
			if err != nil {
				return err
			}
			if operator == nil {
				stats.Unassigned++
				continue
			}

			task, err := w.tasks.Assign(ctx, tx, candidate.ID, operator.ID)
			if err != nil {
				if errors.Is(err, domain.ErrVersionMismatch) {
					// A manual assignment won the race; leave the task alone.
					stats.Unassigned++
					continue
				}
				return err
			}

			if err := w.tasks.InsertStatusLog(ctx, tx, &domain.TaskStatusLog{
				TaskID:      task.ID,
				FromStatus:  domain.TaskStatusCreated,
				ToStatus:    domain.TaskStatusAssigned,
				TaskVersion: task.Version,
			}); err != nil {
				return err
			}

			assigned = append(assigned, assignedTask{task: *task, operator: *operator})
			stats.Assigned++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Publish only after the transaction committed. Failures are counted
	// and logged; the assignments stand regardless.
	for _, a := range assigned {
		stats.RealtimePublishFailures += w.publishAssignment(ctx, a)
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	return stats, nil
}

func (w *Worker) publishAssignment(ctx context.Context, a assignedTask) int {
	failures := 0

	payload := map[string]any{
		"taskId":             a.task.ID.String(),
		"type":               string(a.task.Type),
		"status":             string(a.task.Status),
		"priority":           a.task.Priority,
		"zoneId":             a.task.ZoneID.String(),
		"version":            a.task.Version,
		"assignedOperatorId": a.operator.ID.String(),
		"operatorName":       a.operator.Name,
	}

	if err := w.publisher.Publish(ctx, &domain.RealtimeEvent{
		Type:    domain.EventTaskAssigned,
		Payload: payload,
	}); err != nil {
		failures++
		w.metrics.RealtimePublishFailures.Inc()
		w.logger.WithError(err).Warn("Failed to publish TASK_ASSIGNED", "taskId", a.task.ID)
	}

	updatedPayload := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		updatedPayload[k] = v
	}
	updatedPayload["previousStatus"] = string(domain.TaskStatusCreated)

	if err := w.publisher.Publish(ctx, &domain.RealtimeEvent{
		Type:    domain.EventTaskUpdated,
		Payload: updatedPayload,
	}); err != nil {
		failures++
		w.metrics.RealtimePublishFailures.Inc()
		w.logger.WithError(err).Warn("Failed to publish TASK_UPDATED", "taskId", a.task.ID)
	}

	return failures
}
