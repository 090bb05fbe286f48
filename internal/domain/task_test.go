package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParseTaskStatus tests status validation
func TestParseTaskStatus(t *testing.T) {
	for _, valid := range []string{"created", "assigned", "in_progress", "paused", "completed", "cancelled", "failed"} {
		status, err := ParseTaskStatus(valid)
		assert.NoError(t, err)
		assert.Equal(t, TaskStatus(valid), status)
	}

	for _, invalid := range []string{"", "done", "CREATED", "in-progress"} {
		_, err := ParseTaskStatus(invalid)
		assert.ErrorIs(t, err, ErrInvalidTaskStatus, "status %q", invalid)
	}
}

// TestTaskStatusTransitions tests the full transition closure: exactly the
// enumerated transitions are allowed, everything else is rejected.
func TestTaskStatusTransitions(t *testing.T) {
	all := []TaskStatus{
		TaskStatusCreated, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusPaused, TaskStatusCompleted, TaskStatusCancelled, TaskStatusFailed,
	}

	allowed := map[TaskStatus][]TaskStatus{
		TaskStatusCreated:    {TaskStatusAssigned, TaskStatusCancelled},
		TaskStatusAssigned:   {TaskStatusInProgress, TaskStatusCancelled},
		TaskStatusInProgress: {TaskStatusCompleted, TaskStatusPaused, TaskStatusCancelled},
		TaskStatusPaused:     {TaskStatusInProgress, TaskStatusCancelled},
		TaskStatusCompleted:  {},
		TaskStatusCancelled:  {},
		TaskStatusFailed:     {},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

// TestTaskStatusSelfTransition tests that self-transitions are rejected
func TestTaskStatusSelfTransition(t *testing.T) {
	for _, status := range []TaskStatus{
		TaskStatusCreated, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusPaused, TaskStatusCompleted, TaskStatusCancelled, TaskStatusFailed,
	} {
		assert.False(t, status.CanTransitionTo(status), "self-transition %s", status)
	}
}

// TestTaskStatusIsActive tests the active-status predicate
func TestTaskStatusIsActive(t *testing.T) {
	assert.True(t, TaskStatusAssigned.IsActive())
	assert.True(t, TaskStatusInProgress.IsActive())
	assert.True(t, TaskStatusPaused.IsActive())

	assert.False(t, TaskStatusCreated.IsActive())
	assert.False(t, TaskStatusCompleted.IsActive())
	assert.False(t, TaskStatusCancelled.IsActive())
	assert.False(t, TaskStatusFailed.IsActive())
}

// TestTaskStatusIsTerminal tests terminal states
func TestTaskStatusIsTerminal(t *testing.T) {
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusCancelled.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())

	assert.False(t, TaskStatusCreated.IsTerminal())
	assert.False(t, TaskStatusAssigned.IsTerminal())
	assert.False(t, TaskStatusInProgress.IsTerminal())
	assert.False(t, TaskStatusPaused.IsTerminal())
}

// TestParseTaskType tests task type validation
func TestParseTaskType(t *testing.T) {
	for _, valid := range []string{"pick", "putaway", "replenish", "count"} {
		taskType, err := ParseTaskType(valid)
		assert.NoError(t, err)
		assert.Equal(t, TaskType(valid), taskType)
	}

	_, err := ParseTaskType("ship")
	assert.ErrorIs(t, err, ErrInvalidTaskType)
}
