package laborstats

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wms-platform/task-service/internal/domain"
	pgrepo "github.com/wms-platform/task-service/internal/infrastructure/postgres"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
)

// Config holds the daily scheduler tunables
type Config struct {
	RunHour      int
	RunMinute    int
	RunOnStartup bool
}

// DefaultConfig runs the aggregation just before midnight
func DefaultConfig() Config {
	return Config{RunHour: 23, RunMinute: 59}
}

// CycleStats reports one aggregation cycle
type CycleStats struct {
	Date                      string  `json:"date"`
	OperatorsProcessed        int     `json:"operatorsProcessed"`
	InsertedCount             int     `json:"insertedCount"`
	UpdatedCount              int     `json:"updatedCount"`
	TotalTasksCompleted       int     `json:"totalTasksCompleted"`
	TotalUnitsProcessed       int     `json:"totalUnitsProcessed"`
	AverageTaskTimeSeconds    float64 `json:"averageTaskTimeSeconds"`
	AverageUtilizationPercent float64 `json:"averageUtilizationPercent"`
}

// Aggregator computes per-operator daily labor metrics on a wall-clock
// schedule. One cycle reads operators, derives completed-task statistics
// and upserts one metric row per operator, all in a single transaction.
type Aggregator struct {
	labor     *pgrepo.LaborRepository
	operators *pgrepo.OperatorRepository
	metrics   *metrics.Metrics
	logger    *logging.Logger
	config    Config

	wg sync.WaitGroup
}

// NewAggregator creates the labor metrics aggregator
func NewAggregator(
	labor *pgrepo.LaborRepository,
	operators *pgrepo.OperatorRepository,
	m *metrics.Metrics,
	logger *logging.Logger,
	config Config,
) *Aggregator {
	return &Aggregator{
		labor:     labor,
		operators: operators,
		metrics:   m,
		logger:    logger.WithComponent("labor-aggregator"),
		config:    config,
	}
}

// Start schedules the daily run until ctx is cancelled
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		a.logger.Info("Labor aggregator started",
			"runAt", time.Date(0, 1, 1, a.config.RunHour, a.config.RunMinute, 0, 0, time.UTC).Format("15:04"),
			"runOnStartup", a.config.RunOnStartup,
		)

		if a.config.RunOnStartup {
			a.run(ctx)
		}

		for {
			next := a.nextRunAfter(time.Now())
			timer := time.NewTimer(time.Until(next))

			select {
			case <-ctx.Done():
				timer.Stop()
				a.logger.Info("Labor aggregator stopping")
				return
			case <-timer.C:
				a.run(ctx)
			}
		}
	}()
}

// Stop waits for the scheduler and any in-flight cycle to finish
func (a *Aggregator) Stop() {
	a.wg.Wait()
}

// nextRunAfter computes the next run instant in local time. A run time
// already past today advances by 24 hours.
func (a *Aggregator) nextRunAfter(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(),
		a.config.RunHour, a.config.RunMinute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

func (a *Aggregator) run(ctx context.Context) {
	start := time.Now()
	today := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := a.RunForDate(ctx, today)
	if err != nil {
		a.logger.WithError(err).Error("Labor metrics cycle failed")
		return
	}

	a.metrics.MetricsCyclesTotal.Inc()
	a.metrics.MetricsRowsUpserted.WithLabelValues("task-service", "inserted").Add(float64(stats.InsertedCount))
	a.metrics.MetricsRowsUpserted.WithLabelValues("task-service", "updated").Add(float64(stats.UpdatedCount))
	a.metrics.MetricsCycleDuration.Observe(time.Since(start).Seconds())

	a.logger.WorkerCycle(ctx, "labor-metrics", time.Since(start), true, map[string]any{
		"date":                stats.Date,
		"operatorsProcessed":  stats.OperatorsProcessed,
		"inserted":            stats.InsertedCount,
		"updated":             stats.UpdatedCount,
		"totalTasksCompleted": stats.TotalTasksCompleted,
		"totalUnitsProcessed": stats.TotalUnitsProcessed,
	})
}

// RunForDate aggregates metrics for every operator over [date, date+1)
func (a *Aggregator) RunForDate(ctx context.Context, date time.Time) (*CycleStats, error) {
	stats := &CycleStats{Date: date.Format("2006-01-02")}
	dayStart := date
	dayEnd := date.Add(24 * time.Hour)

	var taskTimeSum float64
	var utilizationSum float64

	err := a.labor.Client().WithTx(ctx, func(tx pgx.Tx) error {
		operators, err := a.operators.ListAll(ctx, tx)
		if err != nil {
			return err
		}

		for _, operator := range operators {
			taskStats, err := a.labor.CompletedTaskStats(ctx, tx, operator.ID, dayStart, dayEnd)
			if err != nil {
				return err
			}

			metric := buildMetric(&operator, taskStats, date, a.logger)

			inserted, err := a.labor.UpsertDailyMetric(ctx, tx, metric)
			if err != nil {
				return err
			}

			if inserted {
				stats.InsertedCount++
			} else {
				stats.UpdatedCount++
			}
			stats.OperatorsProcessed++
			stats.TotalTasksCompleted += metric.TasksCompleted
			stats.TotalUnitsProcessed += metric.UnitsProcessed
			taskTimeSum += metric.AvgTaskTimeSeconds
			utilizationSum += metric.UtilizationPercent
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stats.OperatorsProcessed > 0 {
		stats.AverageTaskTimeSeconds = taskTimeSum / float64(stats.OperatorsProcessed)
		stats.AverageUtilizationPercent = utilizationSum / float64(stats.OperatorsProcessed)
	}
	return stats, nil
}

// buildMetric derives one operator's daily metric row from its completed
// tasks and shift window.
func buildMetric(operator *domain.Operator, taskStats []pgrepo.CompletedTaskStat, date time.Time, logger *logging.Logger) *domain.LaborDailyMetric {
	totalActive := 0
	units := 0
	for _, s := range taskStats {
		totalActive += domain.TaskActiveSeconds(s.ActualSeconds, s.StartedAt, s.CompletedAt)
		units += s.Units
	}

	avgTaskTime := 0.0
	if len(taskStats) > 0 {
		avgTaskTime = float64(totalActive) / float64(len(taskStats))
	}

	shiftDuration, err := domain.ShiftDurationSeconds(operator.ShiftStart, operator.ShiftEnd)
	if err != nil {
		// A malformed shift window yields zero utilization rather than
		// dropping the operator from the day's metrics.
		logger.WithError(err).Warn("Invalid shift window", "operatorId", operator.ID)
		shiftDuration = 0
	}

	return &domain.LaborDailyMetric{
		OperatorID:         operator.ID,
		MetricDate:         date,
		TasksCompleted:     len(taskStats),
		UnitsProcessed:     units,
		AvgTaskTimeSeconds: avgTaskTime,
		UtilizationPercent: domain.UtilizationPercent(totalActive, shiftDuration),
	}
}
