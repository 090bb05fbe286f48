package taskgen

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
)

// Event types accepted from the order-event ingress
const (
	EventTypeSalesOrderReady      = "sales_order_ready_for_pick"
	EventTypePurchaseOrderReceived = "purchase_order_received"
)

// NormalizedEvent is the validated, typed form of an inbound order event.
// It is what travels on the task-generation queue.
type NormalizedEvent struct {
	EventKey         string           `json:"eventKey"`
	EventType        string           `json:"eventType"`
	SourceDocumentID string           `json:"sourceDocumentId"`
	ShipDate         *time.Time       `json:"shipDate,omitempty"`
	Lines            []NormalizedLine `json:"lines"`
	RawPayload       json.RawMessage  `json:"rawPayload"`
}

// NormalizedLine is one validated order line
type NormalizedLine struct {
	SKUID                 int64  `json:"skuId"`
	Quantity              int    `json:"quantity"`
	PickLocationID        int64  `json:"pickLocationId,omitempty"`
	DestinationLocationID int64  `json:"destinationLocationId,omitempty"`
	FromLocationID        *int64 `json:"fromLocationId,omitempty"`
}

// NormalizeEvent validates a raw order-event payload and returns its
// normalized form. Malformed input fails with a validation error.
func NormalizeEvent(payload map[string]any) (*NormalizedEvent, error) {
	eventType, _ := stringField(payload, "eventType")

	switch eventType {
	case EventTypeSalesOrderReady:
		return normalizeSalesOrder(payload)
	case EventTypePurchaseOrderReceived:
		return normalizePurchaseOrder(payload)
	default:
		return nil, apperrors.ErrValidation(fmt.Sprintf("unsupported event type %q", eventType))
	}
}

func normalizeSalesOrder(payload map[string]any) (*NormalizedEvent, error) {
	salesOrderID, ok := stringField(payload, "salesOrderId")
	if !ok || salesOrderID == "" {
		return nil, apperrors.ErrValidation("salesOrderId is required")
	}

	shipDateRaw, ok := stringField(payload, "shipDate")
	if !ok || shipDateRaw == "" {
		return nil, apperrors.ErrValidation("shipDate is required")
	}
	shipDate, err := time.Parse(time.RFC3339, shipDateRaw)
	if err != nil {
		return nil, apperrors.ErrValidation(fmt.Sprintf("shipDate %q is not a valid timestamp", shipDateRaw))
	}

	rawLines, ok := payload["lines"].([]any)
	if !ok || len(rawLines) == 0 {
		return nil, apperrors.ErrValidation("at least one line is required")
	}

	lines := make([]NormalizedLine, 0, len(rawLines))
	for i, raw := range rawLines {
		lineMap, ok := raw.(map[string]any)
		if !ok {
			return nil, apperrors.ErrValidation(fmt.Sprintf("line %d is not an object", i))
		}

		skuID, ok := positiveIntField(lineMap, "skuId")
		if !ok {
			return nil, apperrors.ErrValidation(fmt.Sprintf("line %d: skuId must be a positive integer", i))
		}
		quantity, ok := positiveIntField(lineMap, "quantity")
		if !ok {
			return nil, apperrors.ErrValidation(fmt.Sprintf("line %d: quantity must be positive", i))
		}
		pickLocationID, ok := positiveIntField(lineMap, "pickLocationId")
		if !ok {
			// fromLocationId is an accepted alias for the pick location
			pickLocationID, ok = positiveIntField(lineMap, "fromLocationId")
			if !ok {
				return nil, apperrors.ErrValidation(fmt.Sprintf("line %d: pickLocationId must be positive", i))
			}
		}

		lines = append(lines, NormalizedLine{
			SKUID:          skuID,
			Quantity:       int(quantity),
			PickLocationID: pickLocationID,
		})
	}

	sourceDocumentID := "SO:" + salesOrderID
	rawJSON, _ := json.Marshal(payload)

	return &NormalizedEvent{
		EventKey:         eventKeyFor(payload, EventTypeSalesOrderReady, sourceDocumentID),
		EventType:        EventTypeSalesOrderReady,
		SourceDocumentID: sourceDocumentID,
		ShipDate:         &shipDate,
		Lines:            lines,
		RawPayload:       rawJSON,
	}, nil
}

func normalizePurchaseOrder(payload map[string]any) (*NormalizedEvent, error) {
	purchaseOrderID, ok := stringField(payload, "purchaseOrderId")
	if !ok || purchaseOrderID == "" {
		return nil, apperrors.ErrValidation("purchaseOrderId is required")
	}

	rawLines, ok := payload["lines"].([]any)
	if !ok || len(rawLines) == 0 {
		return nil, apperrors.ErrValidation("at least one line is required")
	}

	lines := make([]NormalizedLine, 0, len(rawLines))
	for i, raw := range rawLines {
		lineMap, ok := raw.(map[string]any)
		if !ok {
			return nil, apperrors.ErrValidation(fmt.Sprintf("line %d is not an object", i))
		}

		skuID, ok := positiveIntField(lineMap, "skuId")
		if !ok {
			return nil, apperrors.ErrValidation(fmt.Sprintf("line %d: skuId must be a positive integer", i))
		}
		quantity, ok := positiveIntField(lineMap, "quantity")
		if !ok {
			return nil, apperrors.ErrValidation(fmt.Sprintf("line %d: quantity must be positive", i))
		}
		destinationID, ok := positiveIntField(lineMap, "destinationLocationId")
		if !ok {
			// toLocationId is an accepted alias for the destination
			destinationID, ok = positiveIntField(lineMap, "toLocationId")
			if !ok {
				return nil, apperrors.ErrValidation(fmt.Sprintf("line %d: destinationLocationId must be positive", i))
			}
		}

		line := NormalizedLine{
			SKUID:                 skuID,
			Quantity:              int(quantity),
			DestinationLocationID: destinationID,
		}

		// Optional source location; null is accepted, a present value must be positive.
		if v, present := lineMap["fromLocationId"]; present && v != nil {
			fromID, ok := positiveIntField(lineMap, "fromLocationId")
			if !ok {
				return nil, apperrors.ErrValidation(fmt.Sprintf("line %d: fromLocationId must be positive when set", i))
			}
			line.FromLocationID = &fromID
		}

		lines = append(lines, line)
	}

	sourceDocumentID := "PO:" + purchaseOrderID
	rawJSON, _ := json.Marshal(payload)

	return &NormalizedEvent{
		EventKey:         eventKeyFor(payload, EventTypePurchaseOrderReceived, sourceDocumentID),
		EventType:        EventTypePurchaseOrderReceived,
		SourceDocumentID: sourceDocumentID,
		Lines:            lines,
		RawPayload:       rawJSON,
	}, nil
}

// eventKeyFor uses a caller-supplied key verbatim, otherwise composes a
// fresh one. Callers supplying a stable key opt in to idempotency.
func eventKeyFor(payload map[string]any, eventType, sourceDocumentID string) string {
	if key, ok := stringField(payload, "eventKey"); ok && key != "" {
		return key
	}
	return fmt.Sprintf("%s:%s:%s", eventType, sourceDocumentID, uuid.NewString())
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// positiveIntField reads a JSON number or numeric string as a positive
// integer. JSON decoding hands numbers over as float64.
func positiveIntField(m map[string]any, key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		if n <= 0 || n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int:
		if n <= 0 {
			return 0, false
		}
		return int64(n), true
	case int64:
		if n <= 0 {
			return 0, false
		}
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i <= 0 {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
