package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/task-service/internal/domain"
	pgrepo "github.com/wms-platform/task-service/internal/infrastructure/postgres"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
)

// LaborOverview summarizes one day's workload and stored metrics
type LaborOverview struct {
	Date               string                       `json:"date"`
	TaskCounts         map[domain.TaskStatus]int64 `json:"taskCounts"`
	OperatorsReported  int                          `json:"operatorsReported"`
	TasksCompleted     int                          `json:"tasksCompleted"`
	UnitsProcessed     int                          `json:"unitsProcessed"`
	AvgTaskTimeSeconds float64                      `json:"avgTaskTimeSeconds"`
	AvgUtilization     float64                      `json:"avgUtilizationPercent"`
}

// LaborQueryService serves the labor read API
type LaborQueryService struct {
	labor *pgrepo.LaborRepository
	tasks domain.TaskRepository
}

// NewLaborQueryService creates the labor query service
func NewLaborQueryService(labor *pgrepo.LaborRepository, tasks domain.TaskRepository) *LaborQueryService {
	return &LaborQueryService{labor: labor, tasks: tasks}
}

// Overview returns task counts by status plus the stored metric averages
// for the given date.
func (s *LaborQueryService) Overview(ctx context.Context, date time.Time) (*LaborOverview, error) {
	counts, err := s.tasks.CountByStatus(ctx, &date)
	if err != nil {
		return nil, apperrors.ErrInternal("").Wrap(err)
	}

	averages, err := s.labor.MetricAveragesForDate(ctx, date)
	if err != nil {
		return nil, apperrors.ErrInternal("").Wrap(err)
	}

	return &LaborOverview{
		Date:               date.Format("2006-01-02"),
		TaskCounts:         counts,
		OperatorsReported:  averages.OperatorsWithMetrics,
		TasksCompleted:     averages.TasksCompleted,
		UnitsProcessed:     averages.UnitsProcessed,
		AvgTaskTimeSeconds: averages.AvgTaskTimeSeconds,
		AvgUtilization:     averages.AvgUtilization,
	}, nil
}

// OperatorPerformance returns one page of operators with their daily
// metric and current active task.
func (s *LaborQueryService) OperatorPerformance(ctx context.Context, date time.Time, page, limit int) ([]pgrepo.OperatorDailyPerformance, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	results, total, err := s.labor.OperatorPerformance(ctx, date, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, apperrors.ErrInternal("").Wrap(err)
	}
	return results, total, nil
}

// ZoneWorkload returns one page of zones with their task breakdown
func (s *LaborQueryService) ZoneWorkload(ctx context.Context, warehouseID *uuid.UUID, page, limit int) ([]pgrepo.ZoneWorkload, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	results, total, err := s.labor.ZoneWorkloads(ctx, warehouseID, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, apperrors.ErrInternal("").Wrap(err)
	}
	return results, total, nil
}
