package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/internal/backoff"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxAttempts  int
}

// OpenAIProvider implements agent.LLMProvider against the Chat
// Completions streaming API.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	maxAttempts  int
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
		maxAttempts:  cfg.MaxAttempts,
	}, nil
}

func (p *OpenAIProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// Stream implements agent.LLMProvider.
func (p *OpenAIProvider) Stream(ctx context.Context, req agent.CompletionRequest) (<-chan agent.CompletionDelta, error) {
	messages, err := p.convertMessages(req.Messages, req.System)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    p.model(req.Model),
		Messages: messages,
		Stream:   true,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
	}

	stream, err := backoff.RetryFunc(ctx, p.maxAttempts, func(attempt int) (*openai.ChatCompletionStream, error) {
		return p.client.CreateChatCompletionStream(ctx, chatReq)
	})
	if err != nil {
		return nil, fmt.Errorf("openai: stream request failed after retries: %w", err)
	}

	deltas := make(chan agent.CompletionDelta)
	go p.pump(stream, deltas)
	return deltas, nil
}

// Complete implements agent.LLMProvider.
func (p *OpenAIProvider) Complete(ctx context.Context, req agent.CompletionRequest) (string, error) {
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

func (p *OpenAIProvider) pump(stream *openai.ChatCompletionStream, out chan<- agent.CompletionDelta) {
	defer close(out)
	defer stream.Close()

	type pendingCall struct {
		id, name string
		input    strings.Builder
	}
	calls := map[int]*pendingCall{}
	var order []int

	flushCalls := func() {
		for _, idx := range order {
			c := calls[idx]
			if c.id == "" || c.name == "" {
				continue
			}
			out <- agent.CompletionDelta{ToolCalls: []agent.ToolCall{{
				ID: c.id, Name: c.name, Input: json.RawMessage(c.input.String()),
			}}}
		}
		calls = map[int]*pendingCall{}
		order = nil
	}

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flushCalls()
				out <- agent.CompletionDelta{FinishReason: agent.FinishStop}
				return
			}
			out <- agent.CompletionDelta{Err: err}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			out <- agent.CompletionDelta{TextDelta: delta.Content}
		}
		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			c, ok := calls[index]
			if !ok {
				c = &pendingCall{}
				calls[index] = c
				order = append(order, index)
			}
			if tc.ID != "" {
				c.id = tc.ID
			}
			if tc.Function.Name != "" {
				c.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				c.input.WriteString(tc.Function.Arguments)
			}
		}

		switch choice.FinishReason {
		case "tool_calls":
			flushCalls()
			out <- agent.CompletionDelta{FinishReason: agent.FinishToolCalls}
			return
		case "length":
			out <- agent.CompletionDelta{FinishReason: agent.FinishLength}
			return
		case "stop":
			out <- agent.CompletionDelta{FinishReason: agent.FinishStop}
			return
		}
	}
}

func (p *OpenAIProvider) convertMessages(messages []agent.CompletionMessage, system string) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case runtypes.RoleUser:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Text})
		case runtypes.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Text}
			if len(msg.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(tc.Input),
						},
					}
				}
			}
			result = append(result, oaiMsg)
		case runtypes.RoleTool:
			if msg.ToolResult == nil {
				continue
			}
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(msg.ToolResult.Output),
				ToolCallID: msg.ToolResult.ToolCallID,
			})
		}
	}
	return result, nil
}

func (p *OpenAIProvider) convertTools(tools []agent.ToolSpec) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.InputSchema, &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaMap,
			},
		}
	}
	return result
}
