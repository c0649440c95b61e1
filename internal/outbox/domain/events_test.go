package domain

import (
	"errors"
	"testing"
)

func TestDecodeEventOrderCompleted(t *testing.T) {
	entry := Entry{
		EventType: EventOrderCompleted,
		Payload:   []byte(`{"user_id":"user_1","items":[{"order_item_id":"1","template_id":"2","template_type":"interactive","template_structure":{"fields":[]}}]}`),
	}

	event, err := DecodeEvent(entry)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	completed, ok := event.(OrderCompleted)
	if !ok {
		t.Fatalf("expected OrderCompleted, got %T", event)
	}
	if completed.UserID != "user_1" || len(completed.Items) != 1 {
		t.Fatalf("unexpected payload: %+v", completed)
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	_, err := DecodeEvent(Entry{EventType: "order.shipped", Payload: []byte(`{}`)})
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestEventTypeOfMatchesDecode(t *testing.T) {
	events := []Event{
		OrderCompleted{UserID: "user_1"},
		RecordDeleted{RecordID: "rec_1"},
	}
	for _, event := range events {
		payload, err := EncodePayload(event)
		if err != nil {
			t.Fatalf("encode %T: %v", event, err)
		}
		decoded, err := DecodeEvent(Entry{EventType: EventTypeOf(event), Payload: payload})
		if err != nil {
			t.Fatalf("decode %T: %v", event, err)
		}
		if EventTypeOf(decoded) != EventTypeOf(event) {
			t.Fatalf("round trip changed event type: %T -> %T", event, decoded)
		}
	}
}

func TestEntryExhausted(t *testing.T) {
	if (Entry{Attempts: 2, MaxAttempts: 3}).Exhausted() {
		t.Fatal("expected budget remaining")
	}
	if !(Entry{Attempts: 3, MaxAttempts: 3}).Exhausted() {
		t.Fatal("expected exhausted at max attempts")
	}
}
