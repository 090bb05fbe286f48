package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wms-platform/task-service/internal/domain"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
)

// OperatorService serves operator reads and status changes
type OperatorService struct {
	operators domain.OperatorRepository
	publisher RealtimePublisher
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewOperatorService creates the operator service
func NewOperatorService(
	operators domain.OperatorRepository,
	publisher RealtimePublisher,
	m *metrics.Metrics,
	logger *logging.Logger,
) *OperatorService {
	return &OperatorService{
		operators: operators,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent("operator-service"),
	}
}

// GetOperator loads one operator with its zone links
func (s *OperatorService) GetOperator(ctx context.Context, operatorID uuid.UUID) (*domain.Operator, error) {
	operator, err := s.operators.Get(ctx, operatorID)
	if errors.Is(err, domain.ErrOperatorNotFound) {
		return nil, apperrors.ErrNotFoundWithID("operator", operatorID.String())
	}
	if err != nil {
		return nil, apperrors.ErrInternal("").Wrap(err)
	}
	return operator, nil
}

// ListOperators returns one page of operators, optionally by status
func (s *OperatorService) ListOperators(ctx context.Context, status *domain.OperatorStatus, page, limit int) ([]domain.Operator, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	operators, total, err := s.operators.List(ctx, status, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, apperrors.ErrInternal("").Wrap(err)
	}
	return operators, total, nil
}

// UpdateStatus sets an operator's availability and publishes the change
func (s *OperatorService) UpdateStatus(ctx context.Context, operatorID uuid.UUID, status domain.OperatorStatus) (*domain.Operator, error) {
	if _, err := domain.ParseOperatorStatus(string(status)); err != nil {
		return nil, apperrors.ErrValidation(fmt.Sprintf("invalid operator status %q", status))
	}

	operator, err := s.operators.UpdateStatus(ctx, operatorID, status)
	if errors.Is(err, domain.ErrOperatorNotFound) {
		return nil, apperrors.ErrNotFoundWithID("operator", operatorID.String())
	}
	if err != nil {
		return nil, apperrors.ErrInternal("").Wrap(err)
	}

	if pubErr := s.publisher.Publish(ctx, &domain.RealtimeEvent{
		Type: domain.EventOperatorStatusUpdated,
		Payload: map[string]any{
			"operatorId": operator.ID.String(),
			"status":     string(operator.Status),
		},
	}); pubErr != nil {
		s.metrics.RealtimePublishFailures.Inc()
		s.logger.WithError(pubErr).Warn("Failed to publish OPERATOR_STATUS_UPDATED",
			"operatorId", operator.ID)
	}

	return operator, nil
}
