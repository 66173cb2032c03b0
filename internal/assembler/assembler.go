// Package assembler implements the Message Assembler (§4.4): it
// converts persisted UI messages to and from provider-agnostic model
// messages, repairs malformed tool call/result pairing, and annotates
// messages with cache-control hints for providers that support prompt
// caching.
package assembler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/internal/memory"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

// Assembler is the Message Assembler, backed by the Memory Adapter.
type Assembler struct {
	mem memory.Adapter
}

func New(mem memory.Adapter) *Assembler {
	return &Assembler{mem: mem}
}

// LoadThread returns every message for threadID, ordered by createdAt
// ascending with insertion order breaking ties (§3 invariant).
func (a *Assembler) LoadThread(ctx context.Context, threadID string) ([]runtypes.Message, error) {
	rows, err := a.mem.FindMany(ctx, memory.ModelMessage,
		memory.Where{{Field: "threadId", Operator: memory.OpEq, Value: threadID}},
		&memory.SortOrder{Field: "createdAt"}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("assembler: load thread: %w", err)
	}
	msgs := make([]runtypes.Message, 0, len(rows))
	for _, row := range rows {
		msg := rowToMessage(row)
		msg.Parts, _ = RepairToolCallPairing(msg.Parts)
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// GetCompleteMessages returns the thread's history with incoming
// appended, unless incoming's id equals the last stored message's id —
// in which case the resend is idempotent and history is returned
// unchanged.
func (a *Assembler) GetCompleteMessages(ctx context.Context, threadID string, incoming runtypes.Message) ([]runtypes.Message, error) {
	history, err := a.LoadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 && incoming.ID != "" && history[len(history)-1].ID == incoming.ID {
		return history, nil
	}
	return append(history, incoming), nil
}

// UpsertMessage atomically inserts or replaces a message keyed by id
// (§4.4, §8 idempotence law: upsertMessage(m); upsertMessage(m) ≡
// upsertMessage(m)).
func (a *Assembler) UpsertMessage(ctx context.Context, msg runtypes.Message) (runtypes.Message, error) {
	if msg.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			msg.ID = uuid.NewString()
		} else {
			msg.ID = id.String()
		}
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	row := messageToRow(msg)
	result, err := a.mem.Upsert(ctx, memory.ModelMessage,
		memory.Where{{Field: "id", Operator: memory.OpEq, Value: msg.ID}},
		row, row)
	if err != nil {
		return runtypes.Message{}, fmt.Errorf("assembler: upsert message: %w", err)
	}
	return rowToMessage(result), nil
}

// ConvertToModelMessages projects UI messages into provider-agnostic
// CompletionMessages (§4.4): transient data-agentstart-* parts are
// dropped, and reasoning parts are included only when the provider
// supports them.
func ConvertToModelMessages(messages []runtypes.Message, includeReasoning bool) []agent.CompletionMessage {
	out := make([]agent.CompletionMessage, 0, len(messages))
	for _, m := range messages {
		for _, part := range runtypes.Persistable(m.Parts) {
			switch part.Type {
			case runtypes.PartText:
				out = append(out, agent.CompletionMessage{Role: m.Role, Text: part.Text})
			case runtypes.PartReasoning:
				if includeReasoning {
					out = append(out, agent.CompletionMessage{Role: m.Role, Text: part.Text})
				}
			case runtypes.PartToolCall:
				out = append(out, agent.CompletionMessage{
					Role:      runtypes.RoleAssistant,
					ToolCalls: []agent.ToolCall{{ID: part.ToolCallID, Name: part.ToolName, Input: part.ToolInput}},
				})
			case runtypes.PartToolResult:
				out = append(out, agent.CompletionMessage{
					Role: runtypes.RoleTool,
					ToolResult: &agent.ToolCallResult{
						ToolCallID: part.ToolCallID,
						Output:     part.ToolOutput,
						IsError:    part.IsError,
					},
				})
			}
		}
	}
	return out
}

// FixEmptyModelMessages replaces empty-string text with a single space
// to satisfy provider preconditions (§4.4).
func FixEmptyModelMessages(messages []agent.CompletionMessage) []agent.CompletionMessage {
	for i := range messages {
		if messages[i].Text == "" && len(messages[i].ToolCalls) == 0 && messages[i].ToolResult == nil {
			messages[i].Text = " "
		}
	}
	return messages
}

// AddProviderOptionsToMessages marks the last system, last tool, and
// last assistant/user message with an ephemeral cache-control hint
// (§4.4), used only when cacheCapable is true.
func AddProviderOptionsToMessages(messages []agent.CompletionMessage, cacheCapable bool) []agent.CompletionMessage {
	if !cacheCapable {
		return messages
	}
	lastSystem, lastTool, lastOther := -1, -1, -1
	for i, m := range messages {
		switch m.Role {
		case runtypes.RoleSystem:
			lastSystem = i
		case runtypes.RoleTool:
			lastTool = i
		case runtypes.RoleAssistant, runtypes.RoleUser:
			lastOther = i
		}
	}
	for _, idx := range []int{lastSystem, lastTool, lastOther} {
		if idx >= 0 {
			messages[idx].CacheControl = true
		}
	}
	return messages
}

func messageToRow(m runtypes.Message) memory.Row {
	return memory.Row{
		"id":          m.ID,
		"threadId":    m.ThreadID,
		"role":        string(m.Role),
		"parts":       partsToAny(m.Parts),
		"attachments": attachmentsToAny(m.Attachments),
		"metadata":    m.Metadata,
		"createdAt":   m.CreatedAt,
		"updatedAt":   m.UpdatedAt,
	}
}

func rowToMessage(row memory.Row) runtypes.Message {
	var m runtypes.Message
	if v, ok := row["id"].(string); ok {
		m.ID = v
	}
	if v, ok := row["threadId"].(string); ok {
		m.ThreadID = v
	}
	if v, ok := row["role"].(string); ok {
		m.Role = runtypes.Role(v)
	}
	if v, ok := row["parts"].([]any); ok {
		m.Parts = anyToParts(v)
	}
	if v, ok := row["metadata"].(map[string]any); ok {
		m.Metadata = v
	}
	if v, ok := row["createdAt"].(time.Time); ok {
		m.CreatedAt = v
	}
	if v, ok := row["updatedAt"].(time.Time); ok {
		m.UpdatedAt = v
	}
	return m
}

func partsToAny(parts []runtypes.Part) []any {
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = map[string]any{
			"type": string(p.Type), "text": p.Text,
			"toolCallId": p.ToolCallID, "toolName": p.ToolName, "toolInput": p.ToolInput,
			"toolOutput": p.ToolOutput, "isError": p.IsError,
			"dataTag": p.DataTag, "dataPayload": p.DataPayload, "transient": p.Transient,
		}
	}
	return out
}

func anyToParts(raw []any) []runtypes.Part {
	out := make([]runtypes.Part, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var p runtypes.Part
		if v, ok := m["type"].(string); ok {
			p.Type = runtypes.PartType(v)
		}
		if v, ok := m["text"].(string); ok {
			p.Text = v
		}
		if v, ok := m["toolCallId"].(string); ok {
			p.ToolCallID = v
		}
		if v, ok := m["toolName"].(string); ok {
			p.ToolName = v
		}
		if v, ok := m["toolInput"]; ok {
			p.ToolInput = toRawMessage(v)
		}
		if v, ok := m["toolOutput"]; ok {
			p.ToolOutput = toRawMessage(v)
		}
		if v, ok := m["isError"].(bool); ok {
			p.IsError = v
		}
		if v, ok := m["transient"].(bool); ok {
			p.Transient = v
		}
		if v, ok := m["dataTag"].(string); ok {
			p.DataTag = v
		}
		if v, ok := m["dataPayload"]; ok {
			p.DataPayload = toRawMessage(v)
		}
		out = append(out, p)
	}
	return out
}

func attachmentsToAny(atts []runtypes.Attachment) []any {
	out := make([]any, len(atts))
	for i, a := range atts {
		out[i] = map[string]any{
			"id": a.ID, "filename": a.Filename, "mimeType": a.MimeType,
			"size": a.Size, "url": a.URL,
		}
	}
	return out
}

// toRawMessage recovers a json.RawMessage from whatever shape a memory
// adapter handed back: an in-memory adapter returns the []byte/
// json.RawMessage unchanged, while a round trip through a real JSON
// column may surface it as a base64 string.
func toRawMessage(v any) json.RawMessage {
	switch t := v.(type) {
	case json.RawMessage:
		return t
	case []byte:
		return json.RawMessage(t)
	case string:
		if t == "" {
			return nil
		}
		if decoded, err := base64.StdEncoding.DecodeString(t); err == nil {
			return json.RawMessage(decoded)
		}
		return json.RawMessage(t)
	default:
		return nil
	}
}
