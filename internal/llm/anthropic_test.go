package llm

import (
	"encoding/json"
	"testing"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

func TestAnthropicConvertMessages(t *testing.T) {
	tests := []struct {
		name    string
		in      []agent.CompletionMessage
		wantLen int
		wantErr bool
	}{
		{
			name: "user then assistant text",
			in: []agent.CompletionMessage{
				{Role: runtypes.RoleUser, Text: "hello"},
				{Role: runtypes.RoleAssistant, Text: "hi there"},
			},
			wantLen: 2,
		},
		{
			name: "assistant tool call",
			in: []agent.CompletionMessage{
				{Role: runtypes.RoleAssistant, ToolCalls: []agent.ToolCall{
					{ID: "call_1", Name: "read", Input: json.RawMessage(`{"path":"a.go"}`)},
				}},
			},
			wantLen: 1,
		},
		{
			name: "tool result becomes a user message",
			in: []agent.CompletionMessage{
				{Role: runtypes.RoleTool, ToolResult: &agent.ToolCallResult{
					ToolCallID: "call_1", Output: json.RawMessage(`"ok"`),
				}},
			},
			wantLen: 1,
		},
		{
			name: "invalid tool call input",
			in: []agent.CompletionMessage{
				{Role: runtypes.RoleAssistant, ToolCalls: []agent.ToolCall{
					{ID: "call_1", Name: "read", Input: json.RawMessage(`not json`)},
				}},
			},
			wantErr: true,
		},
		{
			name: "empty assistant message is skipped",
			in: []agent.CompletionMessage{
				{Role: runtypes.RoleAssistant},
			},
			wantLen: 0,
		},
	}

	p := &AnthropicProvider{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.convertMessages(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("convertMessages() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != tt.wantLen {
				t.Fatalf("got %d messages, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestAnthropicConvertToolsRejectsInvalidSchema(t *testing.T) {
	p := &AnthropicProvider{}
	_, err := p.convertTools([]agent.ToolSpec{
		{Name: "broken", InputSchema: json.RawMessage(`not json`)},
	})
	if err == nil {
		t.Fatal("expected an error for an invalid tool schema")
	}
}

func TestAnthropicConvertToolsAcceptsValidSchema(t *testing.T) {
	p := &AnthropicProvider{}
	got, err := p.convertTools([]agent.ToolSpec{
		{Name: "read", Description: "read a file", InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`)},
	})
	if err != nil {
		t.Fatalf("convertTools: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one converted tool, got %d", len(got))
	}
}

func TestAnthropicStopReasonMapping(t *testing.T) {
	cases := map[string]agent.FinishReason{
		"tool_use":      agent.FinishToolCalls,
		"end_turn":      agent.FinishStop,
		"stop_sequence": agent.FinishStop,
		"max_tokens":    agent.FinishLength,
		"unknown":       "",
	}
	for reason, want := range cases {
		if got := anthropicStopReason(reason); got != want {
			t.Errorf("anthropicStopReason(%q) = %q, want %q", reason, got, want)
		}
	}
}

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected an error when no API key is configured")
	}
}

func TestNewAnthropicProviderDefaults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	if p.defaultModel != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected default model: %q", p.defaultModel)
	}
	if p.model("claude-opus-4") != "claude-opus-4" {
		t.Fatal("expected an explicit model request to override the default")
	}
}
