package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	EventOrderCompleted = "order.completed"
	EventRecordDeleted  = "record.deleted"
)

// ErrUnknownEventType marks an entry whose event type has no handler. It is
// a programming error, never retried.
var ErrUnknownEventType = errors.New("unknown_event_type")

// Event is the decoded form of an entry payload. The concrete types below
// are the only members; the dispatcher switches over them exhaustively so a
// new event type cannot be added without a handler.
type Event interface {
	isEvent()
}

// ProvisionItem is one interactive order item awaiting an external record.
type ProvisionItem struct {
	OrderItemID       string         `json:"order_item_id"`
	TemplateID        string         `json:"template_id"`
	TemplateType      string         `json:"template_type"`
	TemplateStructure map[string]any `json:"template_structure"`
}

// OrderCompleted asks the dispatcher to provision external records for the
// interactive items of a paid order.
type OrderCompleted struct {
	UserID string          `json:"user_id"`
	Items  []ProvisionItem `json:"items"`
}

func (OrderCompleted) isEvent() {}

// RecordDeleted asks the dispatcher to remove one external record.
type RecordDeleted struct {
	RecordID string `json:"record_id"`
}

func (RecordDeleted) isEvent() {}

// DecodeEvent turns a persisted entry back into its typed event.
func DecodeEvent(entry Entry) (Event, error) {
	switch entry.EventType {
	case EventOrderCompleted:
		var event OrderCompleted
		if err := json.Unmarshal(entry.Payload, &event); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", entry.EventType, err)
		}
		return event, nil
	case EventRecordDeleted:
		var event RecordDeleted
		if err := json.Unmarshal(entry.Payload, &event); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", entry.EventType, err)
		}
		return event, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, entry.EventType)
	}
}

// EncodePayload serializes an event for storage on an entry.
func EncodePayload(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// EventTypeOf names the persisted event type for a typed event.
func EventTypeOf(event Event) string {
	switch event.(type) {
	case OrderCompleted:
		return EventOrderCompleted
	case RecordDeleted:
		return EventRecordDeleted
	default:
		return ""
	}
}
