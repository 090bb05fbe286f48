package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wms-platform/task-service/internal/domain/taskgen"
	pkgkafka "github.com/wms-platform/task-service/internal/pkg/kafka"
)

// TaskGenQueue is the durable queue carrying normalized order events to the
// generation worker. The message key is the event key, so re-submission of
// the same event lands on the same partition and the generation service's
// idempotency insert makes the duplicate a no-op.
type TaskGenQueue struct {
	producer *pkgkafka.Producer
}

// NewTaskGenQueue creates the queue producer side
func NewTaskGenQueue(producer *pkgkafka.Producer) *TaskGenQueue {
	return &TaskGenQueue{producer: producer}
}

// Name returns the queue's topic name
func (q *TaskGenQueue) Name() string {
	return pkgkafka.Topics.TaskGenJobs
}

// Enqueue publishes one normalized event as a job. The returned job id is
// the event key.
func (q *TaskGenQueue) Enqueue(ctx context.Context, event *taskgen.NormalizedEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal normalized event: %w", err)
	}

	if err := q.producer.Publish(ctx, pkgkafka.Topics.TaskGenJobs, event.EventKey, data); err != nil {
		return "", err
	}

	return event.EventKey, nil
}
