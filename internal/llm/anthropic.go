// Package llm implements concrete agent.LLMProvider backends, grounded
// on the same Anthropic/OpenAI SDKs used for the built-in tool and
// coordinator wiring. Each provider converts the agent package's
// provider-agnostic CompletionRequest/CompletionDelta shapes to and
// from its vendor's wire format.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/internal/backoff"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxAttempts  int
}

// AnthropicProvider implements agent.LLMProvider against Claude's
// Messages streaming API.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxAttempts  int
}

func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(options...),
		defaultModel: cfg.DefaultModel,
		maxAttempts:  cfg.MaxAttempts,
	}, nil
}

func (p *AnthropicProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// SupportsPromptCaching reports that Anthropic's API honors
// cache_control breakpoints on messages.
func (p *AnthropicProvider) SupportsPromptCaching() bool { return true }

// Stream implements agent.LLMProvider.
func (p *AnthropicProvider) Stream(ctx context.Context, req agent.CompletionRequest) (<-chan agent.CompletionDelta, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	stream, err := backoff.RetryFunc(ctx, p.maxAttempts, func(attempt int) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
		s := p.client.Messages.NewStreaming(ctx, params)
		if err := s.Err(); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: stream request failed after retries: %w", err)
	}

	deltas := make(chan agent.CompletionDelta)
	go p.pump(stream, deltas)
	return deltas, nil
}

// Complete implements agent.LLMProvider: it drains a full Stream call
// into a single string, used by the coordinator's title/suggestion
// generation where streaming is unnecessary.
func (p *AnthropicProvider) Complete(ctx context.Context, req agent.CompletionRequest) (string, error) {
	deltas, err := p.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for d := range deltas {
		if d.Err != nil {
			return "", d.Err
		}
		out.WriteString(d.TextDelta)
	}
	return out.String(), nil
}

func (p *AnthropicProvider) pump(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- agent.CompletionDelta) {
	defer close(out)

	var toolID, toolName string
	var toolInput strings.Builder
	inTool := false

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				toolID, toolName = toolUse.ID, toolUse.Name
				toolInput.Reset()
				inTool = true
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- agent.CompletionDelta{TextDelta: delta.Text}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					out <- agent.CompletionDelta{ReasoningDelta: delta.Thinking}
				}
			case "input_json_delta":
				toolInput.WriteString(delta.PartialJSON)
			}
		case "content_block_stop":
			if inTool {
				out <- agent.CompletionDelta{ToolCalls: []agent.ToolCall{{
					ID: toolID, Name: toolName, Input: []byte(toolInput.String()),
				}}}
				inTool = false
			}
		case "message_delta":
			if reason := anthropicStopReason(event.AsMessageDelta().Delta.StopReason); reason != "" {
				out <- agent.CompletionDelta{FinishReason: reason}
			}
		case "message_stop":
			return
		case "error":
			out <- agent.CompletionDelta{Err: errors.New("anthropic: stream error event")}
			return
		}
	}
	if err := stream.Err(); err != nil {
		out <- agent.CompletionDelta{Err: err}
	}
}

func anthropicStopReason(reason string) agent.FinishReason {
	switch reason {
	case "tool_use":
		return agent.FinishToolCalls
	case "end_turn", "stop_sequence":
		return agent.FinishStop
	case "max_tokens":
		return agent.FinishLength
	default:
		return ""
	}
}

func (p *AnthropicProvider) buildParams(req agent.CompletionRequest) (anthropic.MessageNewParams, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req.Model)),
		MaxTokens: 8192,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func (p *AnthropicProvider) convertMessages(messages []agent.CompletionMessage) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case runtypes.RoleUser:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		case runtypes.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Text != "" {
				content = append(content, anthropic.NewTextBlock(msg.Text))
			}
			for _, call := range msg.ToolCalls {
				var input map[string]any
				if len(call.Input) > 0 {
					if err := json.Unmarshal(call.Input, &input); err != nil {
						return nil, fmt.Errorf("invalid tool call input for %s: %w", call.Name, err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(content) == 0 {
				continue
			}
			result = append(result, anthropic.NewAssistantMessage(content...))
		case runtypes.RoleTool:
			if msg.ToolResult == nil {
				continue
			}
			result = append(result, anthropic.NewUserMessage(anthropic.NewToolResultBlock(
				msg.ToolResult.ToolCallID, string(msg.ToolResult.Output), msg.ToolResult.IsError,
			)))
		}
	}
	return result, nil
}

func (p *AnthropicProvider) convertTools(tools []agent.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, toolParam)
	}
	return result, nil
}
