package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidEventType = errors.New("invalid realtime event type")

// RealtimeEventType enumerates the closed set of events the bus accepts
type RealtimeEventType string

const (
	EventTaskAssigned          RealtimeEventType = "TASK_ASSIGNED"
	EventTaskUpdated           RealtimeEventType = "TASK_UPDATED"
	EventOperatorStatusUpdated RealtimeEventType = "OPERATOR_STATUS_UPDATED"
	EventUserPresenceUpdated   RealtimeEventType = "USER_PRESENCE_UPDATED"
	EventUserListUpdated       RealtimeEventType = "USER_LIST_UPDATED"
)

// ParseRealtimeEventType validates a raw event type string
func ParseRealtimeEventType(s string) (RealtimeEventType, error) {
	switch RealtimeEventType(s) {
	case EventTaskAssigned, EventTaskUpdated, EventOperatorStatusUpdated,
		EventUserPresenceUpdated, EventUserListUpdated:
		return RealtimeEventType(s), nil
	default:
		return "", ErrInvalidEventType
	}
}

// RealtimeEvent is the envelope published on the shared pub/sub channel
type RealtimeEvent struct {
	Type       RealtimeEventType `json:"type"`
	Payload    map[string]any    `json:"payload"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// OperatorID extracts an operator identifier from the payload, if present.
// Publishers are not consistent about the key they use.
func (e *RealtimeEvent) OperatorID() (string, bool) {
	for _, key := range []string{"operatorId", "operator_id", "assignedOperatorId"} {
		if v, ok := e.Payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// ManagerOnly reports whether the event is restricted to the manager room
func (e *RealtimeEvent) ManagerOnly() bool {
	return e.Type == EventUserPresenceUpdated || e.Type == EventUserListUpdated
}

// TaskGenerationEvent records one processed inbound order event.
// The event key is the idempotency boundary: at most one row per key.
type TaskGenerationEvent struct {
	ID               uuid.UUID       `json:"id"`
	EventKey         string          `json:"eventKey"`
	EventType        string          `json:"eventType"`
	SourceDocumentID string          `json:"sourceDocumentId"`
	Payload          json.RawMessage `json:"payload"`
	ProcessedAt      time.Time       `json:"processedAt"`
}
