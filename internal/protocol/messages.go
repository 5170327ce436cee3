// Package protocol defines the event payloads a turn pipeline publishes to
// its observers. Events form an append-only incremental stream: assistant
// text arrives as deltas that extend the in-flight message, never as
// replacement snapshots.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies turn event payload variants.
type EventType string

const (
	TypeTurnState          EventType = "turn_state"
	TypeUserMessageCreated EventType = "user_message_created"
	TypeAssistantTextDelta EventType = "assistant_text_delta"
	TypeAssistantFinal     EventType = "assistant_message_final"
	TypeTurnFailed         EventType = "turn_failed"
	TypeSystemEvent        EventType = "system_event"
)

var ErrUnsupportedType = errors.New("unsupported event type")

type Envelope struct {
	Type EventType `json:"type"`
}

// TurnState announces a pipeline state transition.
type TurnState struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	TurnID         string    `json:"turn_id"`
	State          string    `json:"state"`
}

// UserMessageCreated confirms the user message was persisted and the turn is
// under way.
type UserMessageCreated struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	TurnID         string    `json:"turn_id"`
	MessageID      string    `json:"message_id"`
	Content        string    `json:"content"`
}

// AssistantTextDelta carries one streamed fragment of the growing assistant
// message. Seq increases by one per delta within a turn.
type AssistantTextDelta struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	TurnID         string    `json:"turn_id"`
	MessageID      string    `json:"message_id"`
	Seq            int       `json:"seq"`
	TextDelta      string    `json:"text_delta"`
}

// AssistantFinal signals the assistant message was finalized and persisted.
type AssistantFinal struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	TurnID         string    `json:"turn_id"`
	MessageID      string    `json:"message_id"`
	Content        string    `json:"content"`
	ModelName      string    `json:"model_name,omitempty"`
}

// TurnFailed carries the recoverable error state awaiting a retry/cancel
// decision. AssistantMessageID is set only when the placeholder assistant
// message reached storage before the failure.
type TurnFailed struct {
	Type               EventType `json:"type"`
	ConversationID     string    `json:"conversation_id"`
	TurnID             string    `json:"turn_id"`
	ErrorMessage       string    `json:"error_message"`
	UserMessageID      string    `json:"user_message_id"`
	UserMessageContent string    `json:"user_message_content"`
	AssistantMessageID string    `json:"assistant_message_id,omitempty"`
	ModelName          string    `json:"model_name,omitempty"`
}

// SystemEvent carries out-of-band signals such as scroll_to_latest.
type SystemEvent struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	Code           string    `json:"code"`
	Detail         string    `json:"detail,omitempty"`
}

// ParseEvent decodes a serialized event back into its concrete type. Used by
// host processes that relay the SSE stream.
func ParseEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeTurnState:
		var msg TurnState
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeUserMessageCreated:
		var msg UserMessageCreated
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeAssistantTextDelta:
		var msg AssistantTextDelta
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeAssistantFinal:
		var msg AssistantFinal
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeTurnFailed:
		var msg TurnFailed
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeSystemEvent:
		var msg SystemEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
