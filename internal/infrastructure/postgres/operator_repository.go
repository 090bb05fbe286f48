package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/pkg/postgres"
)

const operatorColumns = `id, name, role, status, shift_start, shift_end,
	performance_score, created_at, updated_at`

// OperatorRepository persists operators and their zone links
type OperatorRepository struct {
	client *postgres.Client
}

// NewOperatorRepository creates an operator repository
func NewOperatorRepository(client *postgres.Client) *OperatorRepository {
	return &OperatorRepository{client: client}
}

func scanOperator(row pgx.Row) (*domain.Operator, error) {
	var o domain.Operator
	err := row.Scan(
		&o.ID, &o.Name, &o.Role, &o.Status, &o.ShiftStart, &o.ShiftEnd,
		&o.PerformanceScore, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Get loads one operator with its zone links
func (r *OperatorRepository) Get(ctx context.Context, operatorID uuid.UUID) (*domain.Operator, error) {
	row := r.client.Pool().QueryRow(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = $1`, operatorID)

	operator, err := scanOperator(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOperatorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load operator: %w", err)
	}

	rows, err := r.client.Pool().Query(ctx,
		`SELECT zone_id FROM operator_zones WHERE operator_id = $1 ORDER BY zone_id`, operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load operator zones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var zoneID uuid.UUID
		if err := rows.Scan(&zoneID); err != nil {
			return nil, err
		}
		operator.ZoneIDs = append(operator.ZoneIDs, zoneID)
	}
	return operator, rows.Err()
}

// Exists reports whether the operator id is known
func (r *OperatorRepository) Exists(ctx context.Context, operatorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.client.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM operators WHERE id = $1)`, operatorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check operator existence: %w", err)
	}
	return exists, nil
}

// List returns one page of operators, optionally filtered by status
func (r *OperatorRepository) List(ctx context.Context, status *domain.OperatorStatus, offset, limit int) ([]domain.Operator, int64, error) {
	where := "1=1"
	args := []any{}
	if status != nil {
		args = append(args, *status)
		where = "status = $1"
	}

	var total int64
	err := r.client.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM operators WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count operators: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.client.Pool().Query(ctx,
		fmt.Sprintf(`SELECT `+operatorColumns+`
		 FROM operators WHERE %s
		 ORDER BY name ASC
		 LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list operators: %w", err)
	}
	defer rows.Close()

	var operators []domain.Operator
	for rows.Next() {
		operator, err := scanOperator(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan operator: %w", err)
		}
		operators = append(operators, *operator)
	}
	return operators, total, rows.Err()
}

// ListAll loads every operator; used by the daily metrics aggregator
func (r *OperatorRepository) ListAll(ctx context.Context, tx pgx.Tx) ([]domain.Operator, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+operatorColumns+` FROM operators ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list all operators: %w", err)
	}
	defer rows.Close()

	var operators []domain.Operator
	for rows.Next() {
		operator, err := scanOperator(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operator: %w", err)
		}
		operators = append(operators, *operator)
	}
	return operators, rows.Err()
}

// UpdateStatus sets an operator's availability status
func (r *OperatorRepository) UpdateStatus(ctx context.Context, operatorID uuid.UUID, status domain.OperatorStatus) (*domain.Operator, error) {
	row := r.client.Pool().QueryRow(ctx,
		`UPDATE operators
		 SET status = $1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING `+operatorColumns,
		status, operatorID)

	operator, err := scanOperator(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOperatorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update operator status: %w", err)
	}
	return operator, nil
}

// CountAvailable counts operators that are available and hold no active task
func (r *OperatorRepository) CountAvailable(ctx context.Context, tx pgx.Tx) (int, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM operators o
		 WHERE o.status = $1
		   AND NOT EXISTS (
		     SELECT 1 FROM tasks t
		     WHERE t.assigned_operator_id = o.id
		       AND t.status = ANY($2)
		   )`,
		domain.OperatorStatusAvailable, activeStatusStrings()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count available operators: %w", err)
	}
	return count, nil
}

// BestAvailableForZone picks and locks the best operator for a zone:
// linked to the zone, available, no active task, least completed work
// today, then highest performance score, then seniority. Operators locked
// by a concurrent assigner are skipped.
func (r *OperatorRepository) BestAvailableForZone(ctx context.Context, tx pgx.Tx, zoneID uuid.UUID) (*domain.Operator, error) {
	row := tx.QueryRow(ctx,
		`SELECT o.id, o.name, o.role, o.status, o.shift_start, o.shift_end,
		        o.performance_score, o.created_at, o.updated_at
		 FROM operators o
		 JOIN operator_zones oz ON oz.operator_id = o.id AND oz.zone_id = $1
		 LEFT JOIN LATERAL (
		   SELECT COUNT(*) AS completed_today
		   FROM tasks t
		   WHERE t.assigned_operator_id = o.id
		     AND t.status = $2
		     AND t.completed_at >= date_trunc('day', NOW())
		 ) tc ON TRUE
		 WHERE o.status = $3
		   AND NOT EXISTS (
		     SELECT 1 FROM tasks a
		     WHERE a.assigned_operator_id = o.id
		       AND a.status = ANY($4)
		   )
		 ORDER BY tc.completed_today ASC, o.performance_score DESC, o.created_at ASC
		 LIMIT 1
		 FOR UPDATE OF o SKIP LOCKED`,
		zoneID, domain.TaskStatusCompleted, domain.OperatorStatusAvailable, activeStatusStrings())

	operator, err := scanOperator(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick operator for zone: %w", err)
	}
	return operator, nil
}

func activeStatusStrings() []string {
	statuses := domain.ActiveStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
