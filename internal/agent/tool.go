package agent

import (
	"context"
	"encoding/json"
)

// ToolStatus tags one event in a tool execution's status stream (§4.3).
type ToolStatus string

const (
	StatusPending ToolStatus = "pending"
	StatusDone    ToolStatus = "done"
	StatusError   ToolStatus = "error"
)

// ToolEvent is one event an executing tool emits. Every execution
// yields exactly one pending event immediately, zero or more further
// pending updates, and exactly one terminal done/error event.
type ToolEvent struct {
	Status   ToolStatus
	Prompt   string
	Metadata map[string]any
	Err      *ToolResultError
}

// ToolResultError is the error envelope a failed tool reports (§4.3, §7).
type ToolResultError struct {
	Message string
}

func (e *ToolResultError) Error() string { return e.Message }

// Terminal reports whether this event ends the tool's event stream.
func (e ToolEvent) Terminal() bool {
	return e.Status == StatusDone || e.Status == StatusError
}

// Tool is one entry in the Tool Registry (§4.3). Execute returns a
// channel the caller drains until it closes; the channel's last value
// is always a terminal ToolEvent. Implementations MUST close the
// channel after sending the terminal event — this doubles as the
// "async generator complete" signal described in the design notes.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	OutputSchema() json.RawMessage
	Execute(ctx context.Context, rc *RuntimeContext, input json.RawMessage) <-chan ToolEvent
	// ToModelOutput projects a terminal ToolEvent's metadata into the
	// structured payload fed back to the model as a tool-result part.
	ToModelOutput(event ToolEvent) json.RawMessage
}

// RunToCompletion drains a tool's event channel, returning the terminal
// event. Intermediate pending events are discarded; callers that need
// progress streaming should range over Execute's channel directly.
func RunToCompletion(ch <-chan ToolEvent) ToolEvent {
	var last ToolEvent
	for ev := range ch {
		last = ev
	}
	return last
}
