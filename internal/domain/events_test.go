package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParseRealtimeEventType tests the closed event-type set
func TestParseRealtimeEventType(t *testing.T) {
	for _, valid := range []string{
		"TASK_ASSIGNED", "TASK_UPDATED", "OPERATOR_STATUS_UPDATED",
		"USER_PRESENCE_UPDATED", "USER_LIST_UPDATED",
	} {
		eventType, err := ParseRealtimeEventType(valid)
		assert.NoError(t, err)
		assert.Equal(t, RealtimeEventType(valid), eventType)
	}

	for _, invalid := range []string{"", "task_updated", "TASK_DELETED"} {
		_, err := ParseRealtimeEventType(invalid)
		assert.ErrorIs(t, err, ErrInvalidEventType, "type %q", invalid)
	}
}

// TestRealtimeEventOperatorID tests operator extraction from payloads
// that use any of the accepted keys.
func TestRealtimeEventOperatorID(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		expected string
		found    bool
	}{
		{name: "camelCase key", payload: map[string]any{"operatorId": "op-1"}, expected: "op-1", found: true},
		{name: "snake_case key", payload: map[string]any{"operator_id": "op-2"}, expected: "op-2", found: true},
		{name: "assignment key", payload: map[string]any{"assignedOperatorId": "op-3"}, expected: "op-3", found: true},
		{name: "first key wins", payload: map[string]any{"operatorId": "op-1", "assignedOperatorId": "op-3"}, expected: "op-1", found: true},
		{name: "empty value skipped", payload: map[string]any{"operatorId": "", "operator_id": "op-2"}, expected: "op-2", found: true},
		{name: "non-string ignored", payload: map[string]any{"operatorId": 42}, found: false},
		{name: "absent", payload: map[string]any{"taskId": "t-1"}, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &RealtimeEvent{Type: EventTaskUpdated, Payload: tt.payload}
			id, ok := event.OperatorID()
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, id)
		})
	}
}

// TestRealtimeEventManagerOnly tests the manager-only routing flag
func TestRealtimeEventManagerOnly(t *testing.T) {
	assert.True(t, (&RealtimeEvent{Type: EventUserPresenceUpdated}).ManagerOnly())
	assert.True(t, (&RealtimeEvent{Type: EventUserListUpdated}).ManagerOnly())

	assert.False(t, (&RealtimeEvent{Type: EventTaskAssigned}).ManagerOnly())
	assert.False(t, (&RealtimeEvent{Type: EventTaskUpdated}).ManagerOnly())
	assert.False(t, (&RealtimeEvent{Type: EventOperatorStatusUpdated}).ManagerOnly())
}
