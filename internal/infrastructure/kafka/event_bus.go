package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/wms-platform/task-service/internal/domain"
	pkgkafka "github.com/wms-platform/task-service/internal/pkg/kafka"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
	"github.com/wms-platform/task-service/internal/pkg/resilience"
)

// EventPublisher is the write side of the realtime event bus. All processes
// publish to the single shared channel; the subscriber side fans out.
type EventPublisher struct {
	producer *pkgkafka.Producer
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewEventPublisher creates a realtime event publisher
func NewEventPublisher(producer *pkgkafka.Producer, m *metrics.Metrics, logger *logging.Logger) *EventPublisher {
	breaker := resilience.NewCircuitBreaker(
		resilience.DefaultCircuitBreakerConfig("realtime-publisher"),
		logger.Logger,
	)

	return &EventPublisher{
		producer: producer,
		breaker:  breaker,
		metrics:  m,
		logger:   logger,
	}
}

// Publish validates the event type, stamps occurredAt when missing, and
// writes the envelope to the shared channel.
func (p *EventPublisher) Publish(ctx context.Context, event *domain.RealtimeEvent) error {
	if _, err := domain.ParseRealtimeEventType(string(event.Type)); err != nil {
		return fmt.Errorf("%w: %q", err, event.Type)
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime event: %w", err)
	}

	// Key by operator when present so one operator's events stay ordered.
	key := string(event.Type)
	if operatorID, ok := event.OperatorID(); ok {
		key = operatorID
	}

	start := time.Now()
	_, err = p.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, p.producer.Publish(ctx, pkgkafka.Topics.RealtimeEvents, key, data)
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RealtimeEventsPublished.WithLabelValues("task-service", string(event.Type), status).Inc()
	p.logger.EventPublish(ctx, pkgkafka.Topics.RealtimeEvents, string(event.Type), err == nil, time.Since(start))

	return err
}

// EventHandler receives every event seen on the shared channel
type EventHandler func(event *domain.RealtimeEvent)

// EventSubscriber is the read side of the bus: a single process-local
// consumer that parses the channel and dispatches to in-process handlers.
type EventSubscriber struct {
	consumer *pkgkafka.Consumer
	logger   *logging.Logger

	mu       sync.RWMutex
	handlers []EventHandler
}

// NewEventSubscriber creates a realtime event subscriber
func NewEventSubscriber(consumer *pkgkafka.Consumer, logger *logging.Logger) *EventSubscriber {
	return &EventSubscriber{
		consumer: consumer,
		logger:   logger,
	}
}

// RegisterHandler adds an in-process handler. Handlers must be registered
// before Start.
func (s *EventSubscriber) RegisterHandler(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Start subscribes to the shared channel and blocks until ctx is cancelled
func (s *EventSubscriber) Start(ctx context.Context) error {
	s.consumer.Subscribe(pkgkafka.Topics.RealtimeEvents, s.dispatch)
	return s.consumer.Start(ctx)
}

// dispatch parses one message and hands it to every handler. A panicking
// handler is logged and does not affect the others.
func (s *EventSubscriber) dispatch(ctx context.Context, msg kafkago.Message) error {
	var event domain.RealtimeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		s.logger.WithError(err).Error("Failed to parse realtime event", "offset", msg.Offset)
		// Malformed payloads are not retriable; commit and move on.
		return nil
	}

	s.mu.RLock()
	handlers := make([]EventHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Panic(ctx, r)
				}
			}()
			handler(&event)
		}()
	}

	return nil
}

// Close closes the underlying consumer
func (s *EventSubscriber) Close() error {
	return s.consumer.Close()
}
