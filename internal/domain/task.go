package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrInvalidTaskStatus     = errors.New("invalid task status value")
	ErrInvalidTaskType       = errors.New("invalid task type value")
	ErrInvalidTransition     = errors.New("invalid task status transition")
	ErrVersionMismatch       = errors.New("task version mismatch")
	ErrTaskNotFound          = errors.New("task not found")
)

// TaskStatus represents the lifecycle status of a task
type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "created"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusPaused     TaskStatus = "paused"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
	TaskStatusFailed     TaskStatus = "failed"
)

// ParseTaskStatus validates a raw status string
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case TaskStatusCreated, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusPaused, TaskStatusCompleted, TaskStatusCancelled, TaskStatusFailed:
		return TaskStatus(s), nil
	default:
		return "", ErrInvalidTaskStatus
	}
}

// IsTerminal returns true for statuses with no outgoing transitions
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled || s == TaskStatusFailed
}

// IsActive reports whether a task in this status occupies its operator.
// An operator has at most one active task at any time.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusAssigned || s == TaskStatusInProgress || s == TaskStatusPaused
}

// taskTransitions is the task state machine. A task can additionally be
// cancelled from any non-terminal state; self-transitions are rejected.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusCreated:    {TaskStatusAssigned},
	TaskStatusAssigned:   {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusPaused, TaskStatusCancelled},
	TaskStatusPaused:     {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusCompleted:  {},
	TaskStatusCancelled:  {},
	TaskStatusFailed:     {},
}

// CanTransitionTo checks if this status can transition to the target status
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	if s == target {
		return false
	}
	if target == TaskStatusCancelled {
		return !s.IsTerminal()
	}
	for _, allowed := range taskTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ActiveStatuses lists the statuses that count as active
func ActiveStatuses() []TaskStatus {
	return []TaskStatus{TaskStatusAssigned, TaskStatusInProgress, TaskStatusPaused}
}

// TaskType represents the kind of warehouse work a task carries
type TaskType string

const (
	TaskTypePick      TaskType = "pick"
	TaskTypePutaway   TaskType = "putaway"
	TaskTypeReplenish TaskType = "replenish"
	TaskTypeCount     TaskType = "count"
)

// ParseTaskType validates a raw task type string
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(s) {
	case TaskTypePick, TaskTypePutaway, TaskTypeReplenish, TaskTypeCount:
		return TaskType(s), nil
	default:
		return "", ErrInvalidTaskType
	}
}

// Task is the aggregate root of the task lifecycle
type Task struct {
	ID                 uuid.UUID  `json:"id"`
	Type               TaskType   `json:"type"`
	Priority           int        `json:"priority"`
	Status             TaskStatus `json:"status"`
	ZoneID             uuid.UUID  `json:"zoneId"`
	AssignedOperatorID *uuid.UUID `json:"assignedOperatorId"`
	SourceDocumentID   string     `json:"sourceDocumentId"`
	EstimatedSeconds   int        `json:"estimatedTimeSeconds"`
	ActualSeconds      *int       `json:"actualTimeSeconds"`
	Version            int        `json:"version"`
	StartedAt          *time.Time `json:"startedAt"`
	CompletedAt        *time.Time `json:"completedAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// TaskLineStatus mirrors the task status enumeration minus assignment states
type TaskLineStatus string

const (
	TaskLineStatusCreated    TaskLineStatus = "created"
	TaskLineStatusInProgress TaskLineStatus = "in_progress"
	TaskLineStatusCompleted  TaskLineStatus = "completed"
	TaskLineStatusCancelled  TaskLineStatus = "cancelled"
	TaskLineStatusFailed     TaskLineStatus = "failed"
)

// TaskLine belongs to exactly one task and shares its lifetime
type TaskLine struct {
	ID             uuid.UUID      `json:"id"`
	TaskID         uuid.UUID      `json:"taskId"`
	ProductID      int64          `json:"productId"`
	FromLocationID *int64         `json:"fromLocationId"`
	ToLocationID   *int64         `json:"toLocationId"`
	Quantity       int            `json:"quantity"`
	Status         TaskLineStatus `json:"status"`

	// Denormalized read-side fields, populated by joined queries
	ProductSKU       string `json:"productSku,omitempty"`
	ProductName      string `json:"productName,omitempty"`
	FromLocationCode string `json:"fromLocationCode,omitempty"`
	ToLocationCode   string `json:"toLocationCode,omitempty"`
}

// TaskStatusLog is an append-only audit record of one status transition
type TaskStatusLog struct {
	ID                  int64      `json:"id"`
	TaskID              uuid.UUID  `json:"taskId"`
	FromStatus          TaskStatus `json:"fromStatus"`
	ToStatus            TaskStatus `json:"toStatus"`
	TaskVersion         int        `json:"taskVersion"`
	ChangedByOperatorID *uuid.UUID `json:"changedByOperatorId"`
	ChangedAt           time.Time  `json:"changedAt"`
}

// TaskDetail is a task with its zone summary and ordered lines
type TaskDetail struct {
	Task
	ZoneCode      string     `json:"zoneCode"`
	ZoneName      string     `json:"zoneName"`
	Lines         []TaskLine `json:"lines"`
	TotalQuantity int        `json:"totalQuantity"`
}

// TaskSpec is one task to be created from a generation event
type TaskSpec struct {
	Type             TaskType
	Priority         int
	ZoneID           uuid.UUID
	SourceDocumentID string
	EstimatedSeconds int
	Lines            []LineSpec
}

// LineSpec is one task line to be created
type LineSpec struct {
	SKUID          int64
	FromLocationID *int64
	ToLocationID   *int64
	Quantity       int
	Status         TaskLineStatus
}
