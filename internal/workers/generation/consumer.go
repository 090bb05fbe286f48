package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/wms-platform/task-service/internal/application"
	"github.com/wms-platform/task-service/internal/domain/taskgen"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
)

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = time.Second
	keptRecords        = 50
)

// EventProcessor turns one normalized event into tasks
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *taskgen.NormalizedEvent) (*application.GenerationResult, error)
}

// JobRecord keeps the outcome of one queue job for inspection
type JobRecord struct {
	EventKey   string    `json:"eventKey"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	Skipped    bool      `json:"skipped"`
	TasksMade  int       `json:"tasksMade"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Consumer drains the task-generation queue. Transient failures retry
// with exponential backoff; invalid events are dropped after recording.
// The generation service's idempotency gate makes redelivery harmless.
type Consumer struct {
	service     EventProcessor
	metrics     *metrics.Metrics
	logger      *logging.Logger
	maxAttempts int
	baseBackoff time.Duration

	mu        sync.Mutex
	failed    []JobRecord
	completed []JobRecord
}

// NewConsumer creates the queue consumer
func NewConsumer(service EventProcessor, m *metrics.Metrics, logger *logging.Logger) *Consumer {
	return &Consumer{
		service:     service,
		metrics:     m,
		logger:      logger.WithComponent("taskgen-consumer"),
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}
}

// Handle processes one queue message. It returns nil so the message is
// committed: exhausted retries and invalid events are recorded rather than
// redelivered forever. The one exception is a context cancelled during a
// backoff wait, which returns the context error and leaves the message
// uncommitted.
func (c *Consumer) Handle(ctx context.Context, msg kafkago.Message) error {
	var event taskgen.NormalizedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.WithError(err).Error("Dropping unparseable generation job", "offset", msg.Offset)
		c.metrics.QueueJobsProcessed.WithLabelValues("task-service", "malformed").Inc()
		return nil
	}

	ctx = logging.ContextWithEventKey(ctx, event.EventKey)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result, err := c.service.ProcessEvent(ctx, &event)
		if err == nil {
			c.record(&c.completed, JobRecord{
				EventKey:   event.EventKey,
				Attempts:   attempt,
				Skipped:    result.Skipped,
				TasksMade:  len(result.Tasks),
				FinishedAt: time.Now().UTC(),
			})
			c.metrics.QueueJobsProcessed.WithLabelValues("task-service", outcome(result.Skipped)).Inc()
			return nil
		}

		lastErr = err

		// Validation failures are permanent; retrying cannot fix the payload.
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.HTTPStatus == http.StatusBadRequest {
			c.logger.WithError(err).Warn("Dropping invalid generation job", "eventKey", event.EventKey)
			c.record(&c.failed, JobRecord{
				EventKey:   event.EventKey,
				Attempts:   attempt,
				Error:      err.Error(),
				FinishedAt: time.Now().UTC(),
			})
			c.metrics.QueueJobsProcessed.WithLabelValues("task-service", "invalid").Inc()
			return nil
		}

		if attempt < c.maxAttempts {
			backoff := c.baseBackoff << (attempt - 1)
			c.logger.WithError(err).Warn("Generation job failed, retrying",
				"eventKey", event.EventKey,
				"attempt", attempt,
				"backoff", backoff.String(),
			)
			c.metrics.QueueJobRetries.Inc()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	c.logger.WithError(lastErr).Error("Generation job failed permanently",
		"eventKey", event.EventKey,
		"attempts", c.maxAttempts,
	)
	c.record(&c.failed, JobRecord{
		EventKey:   event.EventKey,
		Attempts:   c.maxAttempts,
		Error:      lastErr.Error(),
		FinishedAt: time.Now().UTC(),
	})
	c.metrics.QueueJobsProcessed.WithLabelValues("task-service", "failed").Inc()
	return nil
}

// FailedJobs returns the retained failed job records, newest last
func (c *Consumer) FailedJobs() []JobRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]JobRecord, len(c.failed))
	copy(out, c.failed)
	return out
}

// CompletedJobs returns the retained completed job records, newest last
func (c *Consumer) CompletedJobs() []JobRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]JobRecord, len(c.completed))
	copy(out, c.completed)
	return out
}

func (c *Consumer) record(bucket *[]JobRecord, record JobRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*bucket = append(*bucket, record)
	if len(*bucket) > keptRecords {
		*bucket = (*bucket)[len(*bucket)-keptRecords:]
	}
}

func outcome(skipped bool) string {
	if skipped {
		return "duplicate"
	}
	return "generated"
}
