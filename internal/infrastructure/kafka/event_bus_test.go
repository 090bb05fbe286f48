package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wms-platform/task-service/internal/domain"
	pkgkafka "github.com/wms-platform/task-service/internal/pkg/kafka"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
)

// TestPublishRejectsUnknownType tests that validation happens before any
// broker interaction.
func TestPublishRejectsUnknownType(t *testing.T) {
	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test"})
	m := metrics.New(metrics.DefaultConfig("test"))
	publisher := NewEventPublisher(pkgkafka.NewProducer(pkgkafka.DefaultConfig()), m, logger)

	err := publisher.Publish(context.Background(), &domain.RealtimeEvent{
		Type:    "TASK_DELETED",
		Payload: map[string]any{"taskId": "t-1"},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidEventType)
}
