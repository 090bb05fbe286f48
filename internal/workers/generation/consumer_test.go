package generation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-service/internal/application"
	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/domain/taskgen"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
)

type stubProcessor struct {
	calls int
	fn    func(call int, event *taskgen.NormalizedEvent) (*application.GenerationResult, error)
}

func (s *stubProcessor) ProcessEvent(_ context.Context, event *taskgen.NormalizedEvent) (*application.GenerationResult, error) {
	s.calls++
	return s.fn(s.calls, event)
}

func testConsumer(processor *stubProcessor) *Consumer {
	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test"})
	consumer := NewConsumer(processor, metrics.New(metrics.DefaultConfig("test")), logger)
	consumer.baseBackoff = time.Millisecond
	return consumer
}

func jobMessage(t *testing.T, eventKey string) kafkago.Message {
	t.Helper()
	data, err := json.Marshal(&taskgen.NormalizedEvent{
		EventKey:         eventKey,
		EventType:        taskgen.EventTypeSalesOrderReady,
		SourceDocumentID: "SO:1001",
	})
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(eventKey), Value: data}
}

// TestHandleSuccess tests the happy path: one attempt, a completed record
func TestHandleSuccess(t *testing.T) {
	processor := &stubProcessor{
		fn: func(int, *taskgen.NormalizedEvent) (*application.GenerationResult, error) {
			return &application.GenerationResult{Tasks: []domain.Task{{}}}, nil
		},
	}
	consumer := testConsumer(processor)

	err := consumer.Handle(context.Background(), jobMessage(t, "job-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, processor.calls)

	completed := consumer.CompletedJobs()
	require.Len(t, completed, 1)
	assert.Equal(t, "job-1", completed[0].EventKey)
	assert.Equal(t, 1, completed[0].Attempts)
	assert.Equal(t, 1, completed[0].TasksMade)
	assert.False(t, completed[0].Skipped)
	assert.Empty(t, consumer.FailedJobs())
}

// TestHandleRetriesTransientFailures tests backoff-retry until success
func TestHandleRetriesTransientFailures(t *testing.T) {
	processor := &stubProcessor{
		fn: func(call int, _ *taskgen.NormalizedEvent) (*application.GenerationResult, error) {
			if call < 3 {
				return nil, errors.New("connection reset")
			}
			return &application.GenerationResult{Skipped: true, Reason: "duplicate_event"}, nil
		},
	}
	consumer := testConsumer(processor)

	err := consumer.Handle(context.Background(), jobMessage(t, "job-2"))
	require.NoError(t, err)
	assert.Equal(t, 3, processor.calls)

	completed := consumer.CompletedJobs()
	require.Len(t, completed, 1)
	assert.Equal(t, 3, completed[0].Attempts)
	assert.True(t, completed[0].Skipped)
}

// TestHandleExhaustsAttempts tests the permanent-failure path: five
// attempts, then a failed record and a committed message.
func TestHandleExhaustsAttempts(t *testing.T) {
	processor := &stubProcessor{
		fn: func(int, *taskgen.NormalizedEvent) (*application.GenerationResult, error) {
			return nil, errors.New("database down")
		},
	}
	consumer := testConsumer(processor)

	err := consumer.Handle(context.Background(), jobMessage(t, "job-3"))
	require.NoError(t, err, "exhausted jobs are recorded, not redelivered")
	assert.Equal(t, defaultMaxAttempts, processor.calls)

	failed := consumer.FailedJobs()
	require.Len(t, failed, 1)
	assert.Equal(t, defaultMaxAttempts, failed[0].Attempts)
	assert.Contains(t, failed[0].Error, "database down")
	assert.Empty(t, consumer.CompletedJobs())
}

// TestHandleDropsInvalidEvents tests that validation failures are
// permanent: no retry, recorded as failed.
func TestHandleDropsInvalidEvents(t *testing.T) {
	processor := &stubProcessor{
		fn: func(int, *taskgen.NormalizedEvent) (*application.GenerationResult, error) {
			return nil, apperrors.ErrValidation("locations without zone mapping: [12]")
		},
	}
	consumer := testConsumer(processor)

	err := consumer.Handle(context.Background(), jobMessage(t, "job-4"))
	require.NoError(t, err)
	assert.Equal(t, 1, processor.calls, "validation failures must not retry")

	failed := consumer.FailedJobs()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Attempts)
}

// TestHandleDropsMalformedMessages tests unparseable payloads
func TestHandleDropsMalformedMessages(t *testing.T) {
	processor := &stubProcessor{
		fn: func(int, *taskgen.NormalizedEvent) (*application.GenerationResult, error) {
			t.Fatal("processor must not be called for malformed payloads")
			return nil, nil
		},
	}
	consumer := testConsumer(processor)

	err := consumer.Handle(context.Background(), kafkago.Message{Value: []byte("{not json")})
	require.NoError(t, err)
	assert.Equal(t, 0, processor.calls)
}

// TestHandleRespectsCancellation tests that a cancelled context stops
// the retry loop between attempts.
func TestHandleRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	processor := &stubProcessor{
		fn: func(int, *taskgen.NormalizedEvent) (*application.GenerationResult, error) {
			cancel()
			return nil, errors.New("transient")
		},
	}
	consumer := testConsumer(processor)
	consumer.baseBackoff = time.Minute // cancellation must win, not the timer

	err := consumer.Handle(ctx, jobMessage(t, "job-5"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, processor.calls)
}
