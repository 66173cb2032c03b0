package runtypes

import "encoding/json"

// EventType tags a frame in the thread.stream event stream (§6).
type EventType string

const (
	EventTextDelta      EventType = "text-delta"
	EventReasoningDelta EventType = "reasoning-delta"
	EventToolCall       EventType = "tool-call"
	EventToolProgress   EventType = "tool-progress"
	EventToolResult     EventType = "tool-result"
	EventMessageStart   EventType = "message-start"
	EventMessageFinish  EventType = "message-finish"
	EventTitleUpdate    EventType = "data-agentstart-title_update"
	EventSuggestions    EventType = "data-agentstart-suggestions"
	EventError          EventType = "error"
)

// StreamEvent is one frame of the thread.stream SSE response. Only the
// fields relevant to Type are populated.
type StreamEvent struct {
	Type EventType `json:"type"`

	// EventTextDelta / EventReasoningDelta
	Delta string `json:"delta,omitempty"`

	// EventToolCall
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`

	// EventToolProgress
	Progress string `json:"progress,omitempty"`

	// EventToolResult
	ToolOutput json.RawMessage `json:"toolOutput,omitempty"`
	IsError    bool            `json:"isError,omitempty"`

	// EventMessageStart / EventMessageFinish
	MessageID string `json:"messageId,omitempty"`

	// EventTitleUpdate
	Title string `json:"title,omitempty"`

	// EventSuggestions
	Prompts []string `json:"prompts,omitempty"`

	// EventError
	Message string `json:"message,omitempty"`
}

// Transient reports whether this frame must never be persisted to the
// thread's stored history (§3).
func (e StreamEvent) Transient() bool {
	return e.Type == EventTitleUpdate || e.Type == EventSuggestions
}
