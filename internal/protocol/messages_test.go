package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEventAssistantDelta(t *testing.T) {
	raw := []byte(`{"type":"assistant_text_delta","conversation_id":"c1","turn_id":"t1","message_id":"m1","seq":3,"text_delta":"hel"}`)
	msg, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}

	delta, ok := msg.(AssistantTextDelta)
	if !ok {
		t.Fatalf("event type = %T, want AssistantTextDelta", msg)
	}
	if delta.ConversationID != "c1" || delta.Seq != 3 || delta.TextDelta != "hel" {
		t.Fatalf("unexpected delta: %+v", delta)
	}
}

func TestParseEventRejectsUnknownType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseEventTurnFailedRoundTrip(t *testing.T) {
	failed := TurnFailed{
		Type:               TypeTurnFailed,
		ConversationID:     "c1",
		TurnID:             "t9",
		ErrorMessage:       "provider unreachable",
		UserMessageID:      "u1",
		UserMessageContent: "hello",
		AssistantMessageID: "a1",
		ModelName:          "sol-9b",
	}
	raw, err := json.Marshal(failed)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	msg, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	got, ok := msg.(TurnFailed)
	if !ok {
		t.Fatalf("event type = %T, want TurnFailed", msg)
	}
	if got != failed {
		t.Fatalf("round trip = %+v, want %+v", got, failed)
	}
}

func TestParseEventOmitsEmptyAssistantID(t *testing.T) {
	raw, err := json.Marshal(TurnFailed{Type: TypeTurnFailed, ConversationID: "c1"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, present := decoded["assistant_message_id"]; present {
		t.Fatalf("assistant_message_id serialized for never-created placeholder: %s", raw)
	}
}
