package agent

import (
	"context"
	"encoding/json"

	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

// CompletionMessage is one provider-agnostic message the Agent Loop
// sends to an LLMProvider. Assembled from runtypes.Message by the
// Message Assembler (§4.4).
type CompletionMessage struct {
	Role       runtypes.Role
	Text       string
	ToolCalls  []ToolCall
	ToolResult *ToolCallResult
	// CacheControl marks this message as a cache breakpoint for
	// providers that support prompt caching (§4.4 addProviderOptionsToMessages).
	CacheControl bool
}

// ToolCall is a model-requested invocation of a registered tool.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolCallResult answers a ToolCall by correlation id.
type ToolCallResult struct {
	ToolCallID string
	Output     json.RawMessage
	IsError    bool
}

// FinishReason classifies why a model call stopped producing tokens.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool-calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// CompletionRequest is what the Agent Loop hands an LLMProvider on
// every step.
type CompletionRequest struct {
	Model    string
	System   string
	Messages []CompletionMessage
	Tools    []ToolSpec
}

// ToolSpec is the model-facing declaration of one registered tool:
// name, prompt description, and JSON input schema.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// CompletionDelta is one streamed increment from a model call.
type CompletionDelta struct {
	TextDelta      string
	ReasoningDelta string
	ToolCalls      []ToolCall
	FinishReason   FinishReason
	Err            error
}

// LLMProvider is the model abstraction the Agent Loop depends on. A
// single call streams zero or more deltas and ends with a delta whose
// FinishReason is set (or whose Err is non-nil).
type LLMProvider interface {
	Stream(ctx context.Context, req CompletionRequest) (<-chan CompletionDelta, error)
	// Complete performs a single non-streaming completion, used for the
	// coordinator's title/suggestion generation (§4.6).
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
