package model

import "time"

// EventType is drawn from a closed set across five categories: agent
// activity, session lifecycle, harness interventions, user interaction,
// and system observations.
type EventType string

const (
	EventAgentText       EventType = "agent:text"
	EventAgentThinking   EventType = "agent:thinking"
	EventAgentToolCall   EventType = "agent:tool_call"
	EventAgentToolResult EventType = "agent:tool_result"

	EventSessionInit       EventType = "session:init"
	EventSessionCompaction EventType = "session:compaction"
	EventSessionRateLimit  EventType = "session:rate_limit"
	EventSessionComplete   EventType = "session:complete"

	EventHarnessWarning EventType = "harness:warning"
	EventHarnessKill    EventType = "harness:kill"

	EventUserCancel EventType = "user:cancel"

	EventSystemFilesPersisted EventType = "system:files_persisted"
	EventSystemHook           EventType = "system:hook"
	EventSystemStatus         EventType = "system:status"
)

// ToolCallData is the payload of an agent:tool_call event.
type ToolCallData struct {
	CorrelationID string                 `json:"correlationId"`
	Tool          string                 `json:"tool"`
	Target        string                 `json:"target,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ToolResultData is the payload of an agent:tool_result event.
type ToolResultData struct {
	CorrelationID string        `json:"correlationId"`
	Status        string        `json:"status"` // "completed" | "error"
	Duration      time.Duration `json:"duration,omitempty"`
	ErrorSnippet  string        `json:"errorSnippet,omitempty"`
}

// Event is a time-sortable, append-only record within one dispatch's
// event sequence.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}
