package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/pkg/postgres"
)

const taskColumns = `id, type, priority, status, zone_id, assigned_operator_id,
	source_document_id, estimated_time_seconds, actual_time_seconds, version,
	started_at, completed_at, created_at, updated_at`

// TaskRepository persists tasks, task lines and the status audit log
type TaskRepository struct {
	client *postgres.Client
}

// NewTaskRepository creates a task repository
func NewTaskRepository(client *postgres.Client) *TaskRepository {
	return &TaskRepository{client: client}
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.Type, &t.Priority, &t.Status, &t.ZoneID, &t.AssignedOperatorID,
		&t.SourceDocumentID, &t.EstimatedSeconds, &t.ActualSeconds, &t.Version,
		&t.StartedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetForUpdate loads one task under a row lock. Must run inside a transaction.
func (r *TaskRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*domain.Task, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, taskID)

	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task for update: %w", err)
	}
	return task, nil
}

// ApplyStatusUpdate writes the new status, timestamps, duration and bumped
// version. The update is predicated on the unchanged version to catch
// racing writers; zero rows affected means the task moved underneath us.
func (r *TaskRepository) ApplyStatusUpdate(ctx context.Context, tx pgx.Tx, task *domain.Task, currentVersion int) error {
	tag, err := tx.Exec(ctx,
		`UPDATE tasks
		 SET status = $1,
		     assigned_operator_id = $2,
		     started_at = $3,
		     completed_at = $4,
		     actual_time_seconds = $5,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $6 AND version = $7`,
		task.Status, task.AssignedOperatorID, task.StartedAt, task.CompletedAt,
		task.ActualSeconds, task.ID, currentVersion)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionMismatch
	}
	return nil
}

// InsertStatusLog appends one audit row inside the caller's transaction
func (r *TaskRepository) InsertStatusLog(ctx context.Context, tx pgx.Tx, log *domain.TaskStatusLog) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO task_status_logs
		   (task_id, from_status, to_status, task_version, changed_by_operator_id, changed_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		log.TaskID, log.FromStatus, log.ToStatus, log.TaskVersion, log.ChangedByOperatorID)
	if err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}
	return nil
}

// InsertFromSpec creates one task and its lines from a generation spec
func (r *TaskRepository) InsertFromSpec(ctx context.Context, tx pgx.Tx, spec domain.TaskSpec) (*domain.Task, error) {
	row := tx.QueryRow(ctx,
		`INSERT INTO tasks
		   (id, type, priority, status, zone_id, source_document_id,
		    estimated_time_seconds, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 1, NOW(), NOW())
		 RETURNING `+taskColumns,
		uuid.New(), spec.Type, spec.Priority, domain.TaskStatusCreated,
		spec.ZoneID, spec.SourceDocumentID, spec.EstimatedSeconds)

	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	for _, line := range spec.Lines {
		_, err := tx.Exec(ctx,
			`INSERT INTO task_lines
			   (id, task_id, product_id, from_location_id, to_location_id, quantity, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), task.ID, line.SKUID, line.FromLocationID, line.ToLocationID,
			line.Quantity, line.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to insert task line: %w", err)
		}
	}

	return task, nil
}

// SelectAssignmentCandidates locks a batch of created tasks ordered by
// urgency, skipping rows already locked by a concurrent assigner.
func (r *TaskRepository) SelectAssignmentCandidates(ctx context.Context, tx pgx.Tx, batchSize int) ([]domain.Task, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE status = $1
		 ORDER BY priority DESC, created_at ASC
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		domain.TaskStatusCreated, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select assignment candidates: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Assign moves a created task to assigned for the given operator. The
// status predicate resists the task having been assigned by someone else
// between candidate selection and this write.
func (r *TaskRepository) Assign(ctx context.Context, tx pgx.Tx, taskID, operatorID uuid.UUID) (*domain.Task, error) {
	row := tx.QueryRow(ctx,
		`UPDATE tasks
		 SET status = $1,
		     assigned_operator_id = $2,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $3 AND status = $4
		 RETURNING `+taskColumns,
		domain.TaskStatusAssigned, operatorID, taskID, domain.TaskStatusCreated)

	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVersionMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}
	return task, nil
}

// GetDetail loads a task with its zone summary and ordered lines
func (r *TaskRepository) GetDetail(ctx context.Context, taskID uuid.UUID) (*domain.TaskDetail, error) {
	row := r.client.Pool().QueryRow(ctx,
		`SELECT t.id, t.type, t.priority, t.status, t.zone_id, t.assigned_operator_id,
		        t.source_document_id, t.estimated_time_seconds, t.actual_time_seconds,
		        t.version, t.started_at, t.completed_at, t.created_at, t.updated_at,
		        z.code, z.name
		 FROM tasks t
		 JOIN zones z ON z.id = t.zone_id
		 WHERE t.id = $1`, taskID)

	var d domain.TaskDetail
	err := row.Scan(
		&d.ID, &d.Type, &d.Priority, &d.Status, &d.ZoneID, &d.AssignedOperatorID,
		&d.SourceDocumentID, &d.EstimatedSeconds, &d.ActualSeconds, &d.Version,
		&d.StartedAt, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
		&d.ZoneCode, &d.ZoneName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task detail: %w", err)
	}

	rows, err := r.client.Pool().Query(ctx,
		`SELECT l.id, l.task_id, l.product_id, l.from_location_id, l.to_location_id,
		        l.quantity, l.status,
		        p.sku, p.name,
		        COALESCE(fl.code, ''), COALESCE(tl.code, '')
		 FROM task_lines l
		 JOIN products p ON p.id = l.product_id
		 LEFT JOIN locations fl ON fl.id = l.from_location_id
		 LEFT JOIN locations tl ON tl.id = l.to_location_id
		 WHERE l.task_id = $1
		 ORDER BY l.id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.TaskLine
		err := rows.Scan(
			&line.ID, &line.TaskID, &line.ProductID, &line.FromLocationID,
			&line.ToLocationID, &line.Quantity, &line.Status,
			&line.ProductSKU, &line.ProductName,
			&line.FromLocationCode, &line.ToLocationCode,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task line: %w", err)
		}
		d.Lines = append(d.Lines, line)
		d.TotalQuantity += line.Quantity
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &d, nil
}

// List returns one page of tasks ordered by priority then age, with the
// total count for the filter.
func (r *TaskRepository) List(ctx context.Context, filter domain.TaskListFilter) ([]domain.Task, int64, error) {
	conditions := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OperatorID != nil {
		args = append(args, *filter.OperatorID)
		conditions = append(conditions, fmt.Sprintf("assigned_operator_id = $%d", len(args)))
	}
	if filter.ZoneID != nil {
		args = append(args, *filter.ZoneID)
		conditions = append(conditions, fmt.Sprintf("zone_id = $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	err := r.client.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.client.Pool().Query(ctx,
		fmt.Sprintf(`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE %s
		 ORDER BY priority DESC, created_at ASC
		 LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, total, rows.Err()
}

// CountByStatus returns task counts grouped by status, optionally limited
// to tasks created on a given date.
func (r *TaskRepository) CountByStatus(ctx context.Context, date *time.Time) (map[domain.TaskStatus]int64, error) {
	query := `SELECT status, COUNT(*) FROM tasks GROUP BY status`
	args := []any{}
	if date != nil {
		query = `SELECT status, COUNT(*) FROM tasks
		         WHERE created_at >= $1 AND created_at < $1 + INTERVAL '1 day'
		         GROUP BY status`
		args = append(args, *date)
	}

	rows, err := r.client.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.TaskStatus]int64)
	for rows.Next() {
		var status domain.TaskStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
