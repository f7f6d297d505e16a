// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Journal event kinds written alongside history appends.
const (
	EventUserMessage      = "user_message"
	EventAssistantMessage = "assistant_message"
	EventToolCall         = "tool_call"
	EventToolResult       = "tool_result"
	EventAction           = "action"
	EventHistory          = "history"
	EventError            = "error"
)

type Event struct {
	ID        EventID         `json:"id"`
	SessionID SessionID       `json:"session_id"`
	TurnID    TurnID          `json:"turn_id,omitempty"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	At        time.Time       `json:"at"`
	Payload   json.RawMessage `json:"payload"`
}

type SessionIndex struct {
	SessionID    SessionID  `json:"session_id"`
	SessionKey   SessionKey `json:"session_key"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastTurnID   TurnID     `json:"last_turn_id,omitempty"`
	LastEventSeq int64      `json:"last_event_seq"`
}

type InboundMessage struct {
	Source     string          `json:"source"`
	SessionKey SessionKey      `json:"session_key"`
	UserID     string          `json:"user_id"`
	Text       string          `json:"text"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}
