package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/pkg/postgres"
)

// CompletedTaskStat is one completed task's contribution to daily metrics
type CompletedTaskStat struct {
	ActualSeconds *int
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Units         int
}

// MetricAverages summarizes one day's stored metrics
type MetricAverages struct {
	OperatorsWithMetrics int
	TasksCompleted       int
	UnitsProcessed       int
	AvgTaskTimeSeconds   float64
	AvgUtilization       float64
}

// OperatorDailyPerformance joins an operator with its daily metric and
// current active task
type OperatorDailyPerformance struct {
	Operator       domain.Operator
	Metric         *domain.LaborDailyMetric
	ActiveTask     *domain.Task
}

// ZoneWorkload is the per-zone task breakdown
type ZoneWorkload struct {
	ZoneID        uuid.UUID
	ZoneCode      string
	ZoneName      string
	WarehouseID   uuid.UUID
	CountByStatus map[domain.TaskStatus]int64
	AvgPriority   float64
}

// LaborRepository serves the metrics aggregator and the labor read API
type LaborRepository struct {
	client *postgres.Client
}

// NewLaborRepository creates a labor repository
func NewLaborRepository(client *postgres.Client) *LaborRepository {
	return &LaborRepository{client: client}
}

// Client exposes the underlying client for transaction scoping
func (r *LaborRepository) Client() *postgres.Client {
	return r.client
}

// CompletedTaskStats loads the completed-task statistics for one operator
// within [dayStart, dayEnd), keyed on completed_at.
func (r *LaborRepository) CompletedTaskStats(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, dayStart, dayEnd time.Time) ([]CompletedTaskStat, error) {
	rows, err := tx.Query(ctx,
		`SELECT t.actual_time_seconds, t.started_at, t.completed_at,
		        COALESCE((SELECT SUM(l.quantity) FROM task_lines l WHERE l.task_id = t.id), 0)
		 FROM tasks t
		 WHERE t.assigned_operator_id = $1
		   AND t.status = $2
		   AND t.completed_at >= $3 AND t.completed_at < $4`,
		operatorID, domain.TaskStatusCompleted, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed task stats: %w", err)
	}
	defer rows.Close()

	var stats []CompletedTaskStat
	for rows.Next() {
		var s CompletedTaskStat
		if err := rows.Scan(&s.ActualSeconds, &s.StartedAt, &s.CompletedAt, &s.Units); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// UpsertDailyMetric writes one operator's metrics for a date. The returned
// flag distinguishes a fresh insert from an update of an existing row.
func (r *LaborRepository) UpsertDailyMetric(ctx context.Context, tx pgx.Tx, metric *domain.LaborDailyMetric) (bool, error) {
	var inserted bool
	err := tx.QueryRow(ctx,
		`INSERT INTO labor_daily_metrics
		   (operator_id, metric_date, tasks_completed, units_processed,
		    avg_task_time_seconds, utilization_percent)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (operator_id, metric_date) DO UPDATE
		 SET tasks_completed = EXCLUDED.tasks_completed,
		     units_processed = EXCLUDED.units_processed,
		     avg_task_time_seconds = EXCLUDED.avg_task_time_seconds,
		     utilization_percent = EXCLUDED.utilization_percent
		 RETURNING (xmax = 0)`,
		metric.OperatorID, metric.MetricDate, metric.TasksCompleted,
		metric.UnitsProcessed, metric.AvgTaskTimeSeconds, metric.UtilizationPercent).
		Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert daily metric: %w", err)
	}
	return inserted, nil
}

// MetricAveragesForDate aggregates the stored metrics for one date
func (r *LaborRepository) MetricAveragesForDate(ctx context.Context, date time.Time) (*MetricAverages, error) {
	var a MetricAverages
	err := r.client.Pool().QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(tasks_completed), 0),
		        COALESCE(SUM(units_processed), 0),
		        COALESCE(AVG(avg_task_time_seconds), 0),
		        COALESCE(AVG(utilization_percent), 0)
		 FROM labor_daily_metrics
		 WHERE metric_date = $1`, date).
		Scan(&a.OperatorsWithMetrics, &a.TasksCompleted, &a.UnitsProcessed,
			&a.AvgTaskTimeSeconds, &a.AvgUtilization)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics for date: %w", err)
	}
	return &a, nil
}

// OperatorPerformance returns one page of operators with their stored
// metric for the date and their current active task. The active task is
// the in-progress one when present, else paused, else assigned, breaking
// ties by task priority.
func (r *LaborRepository) OperatorPerformance(ctx context.Context, date time.Time, offset, limit int) ([]OperatorDailyPerformance, int64, error) {
	var total int64
	if err := r.client.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM operators`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count operators: %w", err)
	}

	rows, err := r.client.Pool().Query(ctx,
		`SELECT o.id, o.name, o.role, o.status, o.shift_start, o.shift_end,
		        o.performance_score, o.created_at, o.updated_at,
		        m.id, m.tasks_completed, m.units_processed,
		        m.avg_task_time_seconds, m.utilization_percent
		 FROM operators o
		 LEFT JOIN labor_daily_metrics m
		   ON m.operator_id = o.id AND m.metric_date = $1
		 ORDER BY o.name ASC
		 LIMIT $2 OFFSET $3`, date, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load operator performance: %w", err)
	}
	defer rows.Close()

	var results []OperatorDailyPerformance
	for rows.Next() {
		var p OperatorDailyPerformance
		var metricID *int64
		var tasksCompleted, unitsProcessed *int
		var avgTaskTime, utilization *float64

		err := rows.Scan(
			&p.Operator.ID, &p.Operator.Name, &p.Operator.Role, &p.Operator.Status,
			&p.Operator.ShiftStart, &p.Operator.ShiftEnd, &p.Operator.PerformanceScore,
			&p.Operator.CreatedAt, &p.Operator.UpdatedAt,
			&metricID, &tasksCompleted, &unitsProcessed, &avgTaskTime, &utilization,
		)
		if err != nil {
			return nil, 0, err
		}

		if metricID != nil {
			p.Metric = &domain.LaborDailyMetric{
				ID:                 *metricID,
				OperatorID:         p.Operator.ID,
				MetricDate:         date,
				TasksCompleted:     *tasksCompleted,
				UnitsProcessed:     *unitsProcessed,
				AvgTaskTimeSeconds: *avgTaskTime,
				UtilizationPercent: *utilization,
			}
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range results {
		task, err := r.currentActiveTask(ctx, results[i].Operator.ID)
		if err != nil {
			return nil, 0, err
		}
		results[i].ActiveTask = task
	}

	return results, total, nil
}

func (r *LaborRepository) currentActiveTask(ctx context.Context, operatorID uuid.UUID) (*domain.Task, error) {
	row := r.client.Pool().QueryRow(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE assigned_operator_id = $1 AND status = ANY($2)
		 ORDER BY CASE status
		            WHEN 'in_progress' THEN 0
		            WHEN 'paused' THEN 1
		            ELSE 2
		          END,
		          priority DESC
		 LIMIT 1`,
		operatorID, activeStatusStrings())

	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active task: %w", err)
	}
	return task, nil
}

// ZoneWorkloads returns one page of zones with task counts by status and
// the zone's average task priority.
func (r *LaborRepository) ZoneWorkloads(ctx context.Context, warehouseID *uuid.UUID, offset, limit int) ([]ZoneWorkload, int64, error) {
	where := "1=1"
	args := []any{}
	if warehouseID != nil {
		args = append(args, *warehouseID)
		where = "z.warehouse_id = $1"
	}

	var total int64
	err := r.client.Pool().QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM zones z WHERE %s`, where), args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count zones: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.client.Pool().Query(ctx,
		fmt.Sprintf(`SELECT z.id, z.code, z.name, z.warehouse_id,
		        t.status, COUNT(t.id), COALESCE(AVG(t.priority), 0)
		 FROM (
		   SELECT id, code, name, warehouse_id FROM zones z WHERE %s
		   ORDER BY code ASC
		   LIMIT $%d OFFSET $%d
		 ) z
		 LEFT JOIN tasks t ON t.zone_id = z.id
		 GROUP BY z.id, z.code, z.name, z.warehouse_id, t.status
		 ORDER BY z.code ASC`, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load zone workloads: %w", err)
	}
	defer rows.Close()

	byZone := make(map[uuid.UUID]*ZoneWorkload)
	var order []uuid.UUID
	prioritySum := make(map[uuid.UUID]float64)
	priorityBuckets := make(map[uuid.UUID]int)

	for rows.Next() {
		var zoneID, whID uuid.UUID
		var code, name string
		var status *domain.TaskStatus
		var count int64
		var avgPriority float64

		if err := rows.Scan(&zoneID, &code, &name, &whID, &status, &count, &avgPriority); err != nil {
			return nil, 0, err
		}

		zone, seen := byZone[zoneID]
		if !seen {
			zone = &ZoneWorkload{
				ZoneID:        zoneID,
				ZoneCode:      code,
				ZoneName:      name,
				WarehouseID:   whID,
				CountByStatus: make(map[domain.TaskStatus]int64),
			}
			byZone[zoneID] = zone
			order = append(order, zoneID)
		}

		// A NULL status row means the zone has no tasks at all.
		if status != nil {
			zone.CountByStatus[*status] = count
			prioritySum[zoneID] += avgPriority * float64(count)
			priorityBuckets[zoneID] += int(count)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	results := make([]ZoneWorkload, 0, len(order))
	for _, zoneID := range order {
		zone := byZone[zoneID]
		if priorityBuckets[zoneID] > 0 {
			zone.AvgPriority = prioritySum[zoneID] / float64(priorityBuckets[zoneID])
		}
		results = append(results, *zone)
	}
	return results, total, nil
}
