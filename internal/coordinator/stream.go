package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/internal/assembler"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

// StreamRequest is the input to the public thread.stream entry point
// (§4.6): {threadId, message, model?}. UserID identifies the caller
// for the ownership check in step 1.
type StreamRequest struct {
	ThreadID string
	UserID   string
	Message  runtypes.Message
	Model    string
}

// Stream runs the thread.stream contract end to end, emitting every
// frame to emit as it is produced (§4.6).
func (c *Coordinator) Stream(ctx context.Context, req StreamRequest, emit Emitter) error {
	thread, err := c.Threads.Get(ctx, req.ThreadID, req.UserID)
	if err != nil {
		emit.Emit(runtypes.StreamEvent{Type: runtypes.EventError, Message: err.Error()})
		return err
	}

	sb, err := c.connectSandbox(ctx, thread)
	if err != nil {
		emit.Emit(runtypes.StreamEvent{Type: runtypes.EventError, Message: err.Error()})
		return err
	}

	history, err := c.Assembler.GetCompleteMessages(ctx, thread.ID, req.Message)
	if err != nil {
		emit.Emit(runtypes.StreamEvent{Type: runtypes.EventError, Message: err.Error()})
		return err
	}
	isFirstUserMessage := countUserMessages(history) == 1

	modelID := c.resolveModel(req.Model)
	provider, modelName, err := c.Models.Resolve(modelID)
	if err != nil {
		emit.Emit(runtypes.StreamEvent{Type: runtypes.EventError, Message: err.Error()})
		return err
	}
	providerName, _, _ := strings.Cut(modelID, "/")

	if isFirstUserMessage && c.Config.GenerateTitle.Model != "" {
		if err := c.generateTitle(ctx, thread, req.Message, emit); err != nil {
			emit.Emit(runtypes.StreamEvent{Type: runtypes.EventError, Message: err.Error()})
		}
	}

	system := c.composeSystemPrompt(sb)
	modelMessages := agentMessagesFromHistory(history, cacheCapable(provider))

	rc := &agent.RuntimeContext{
		ThreadID: thread.ID,
		Memory:   c.Memory,
		Sandbox:  sb,
		Writer:   &progressWriter{emit: emit},
		Metrics:  c.Metrics,
		Tracer:   c.Tracer,
	}

	loop := agent.NewAgenticLoop(agent.LoopConfig{
		Provider:     provider,
		ProviderName: providerName,
		Model:        modelName,
		Tools:        c.buildTools(c.Identity),
		StopWhen:     agent.StepCountIs(c.Config.StopWhen),
	})

	var assistantText strings.Builder
	wrappedEmit := func(ev runtypes.StreamEvent) {
		if ev.Type == runtypes.EventTextDelta {
			assistantText.WriteString(ev.Delta)
		}
		emit.Emit(ev)
	}

	result := loop.Run(ctx, rc, system, modelMessages, wrappedEmit)
	if result.Err != nil {
		if assistantText.Len() > 0 {
			if _, persistErr := c.persistAssistantMessage(ctx, thread.ID, result.Parts); persistErr != nil {
				return persistErr
			}
		}
		emit.Emit(runtypes.StreamEvent{Type: runtypes.EventError, Message: result.Err.Error()})
		return result.Err
	}

	assistantMsg, err := c.persistAssistantMessage(ctx, thread.ID, result.Parts)
	if err != nil {
		emit.Emit(runtypes.StreamEvent{Type: runtypes.EventError, Message: err.Error()})
		return err
	}

	if c.Config.GenerateSuggestions.Model != "" && assistantMsg.ID != "" {
		if err := c.generateSuggestions(ctx, req.Message, assistantMsg, emit); err != nil {
			emit.Emit(runtypes.StreamEvent{Type: runtypes.EventError, Message: err.Error()})
		}
	}

	return nil
}

// persistAssistantMessage upserts the assistant turn, skipping the
// write entirely when the loop produced no content (§4.6 step 6).
func (c *Coordinator) persistAssistantMessage(ctx context.Context, threadID string, parts []runtypes.Part) (runtypes.Message, error) {
	if len(parts) == 0 {
		return runtypes.Message{}, nil
	}
	return c.Assembler.UpsertMessage(ctx, runtypes.Message{
		ThreadID: threadID,
		Role:     runtypes.RoleAssistant,
		Parts:    parts,
	})
}

func (c *Coordinator) composeSystemPrompt(sb agent.SandboxFacade) string {
	var b strings.Builder
	b.WriteString(c.Config.Instructions)
	if c.Config.AgentsMDPrompt != "" {
		if data, err := sb.Fs().ReadFile("AGENTS.md"); err == nil {
			b.WriteString("\n\n")
			b.WriteString(c.Config.AgentsMDPrompt)
			b.WriteString("\n")
			b.Write(data)
		}
	}
	return b.String()
}

func (c *Coordinator) generateTitle(ctx context.Context, thread runtypes.Thread, message runtypes.Message, emit Emitter) error {
	provider, modelName, err := c.Models.Resolve(c.Config.GenerateTitle.Model)
	if err != nil {
		return err
	}
	title, err := provider.Complete(ctx, agent.CompletionRequest{
		Model:  modelName,
		System: c.Config.GenerateTitle.Instructions,
		Messages: []agent.CompletionMessage{
			{Role: runtypes.RoleUser, Text: firstTextPart(message.Parts)},
		},
	})
	if err != nil {
		return fmt.Errorf("coordinator: generate title: %w", err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	emit.Emit(runtypes.StreamEvent{Type: runtypes.EventTitleUpdate, Title: title})
	if _, err := c.Threads.Update(ctx, thread.ID, thread.UserID, &title, nil, nil); err != nil {
		return err
	}
	return nil
}

func (c *Coordinator) generateSuggestions(ctx context.Context, userMsg, assistantMsg runtypes.Message, emit Emitter) error {
	provider, modelName, err := c.Models.Resolve(c.Config.GenerateSuggestions.Model)
	if err != nil {
		return err
	}
	limit := c.Config.GenerateSuggestions.Limit
	if limit <= 0 {
		limit = 3
	}
	raw, err := provider.Complete(ctx, agent.CompletionRequest{
		Model:  modelName,
		System: c.Config.GenerateSuggestions.Instructions,
		Messages: []agent.CompletionMessage{
			{Role: runtypes.RoleUser, Text: firstTextPart(userMsg.Parts)},
			{Role: runtypes.RoleAssistant, Text: firstTextPart(assistantMsg.Parts)},
		},
	})
	if err != nil {
		return fmt.Errorf("coordinator: generate suggestions: %w", err)
	}
	prompts := splitSuggestions(raw, limit)
	if len(prompts) == 0 {
		return nil
	}
	emit.Emit(runtypes.StreamEvent{Type: runtypes.EventSuggestions, Prompts: prompts})
	return nil
}

func splitSuggestions(raw string, limit int) []string {
	var prompts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line == "" {
			continue
		}
		prompts = append(prompts, line)
		if len(prompts) >= limit {
			break
		}
	}
	return prompts
}

func firstTextPart(parts []runtypes.Part) string {
	for _, p := range parts {
		if p.Type == runtypes.PartText {
			return p.Text
		}
	}
	return ""
}

func countUserMessages(history []runtypes.Message) int {
	n := 0
	for _, m := range history {
		if m.Role == runtypes.RoleUser {
			n++
		}
	}
	return n
}

func agentMessagesFromHistory(history []runtypes.Message, cachable bool) []agent.CompletionMessage {
	out := assembler.ConvertToModelMessages(history, cachable)
	out = assembler.FixEmptyModelMessages(out)
	out = assembler.AddProviderOptionsToMessages(out, cachable)
	return out
}

// cacheCapable reports whether provider supports prompt caching, used
// both to decide whether reasoning parts are sent and whether cache
// breakpoints are worth annotating (§4.4). Anthropic is the only
// provider in this tree that benefits from either.
func cacheCapable(provider agent.LLMProvider) bool {
	_, ok := provider.(interface{ SupportsPromptCaching() bool })
	return ok
}
