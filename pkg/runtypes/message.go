package runtypes

import (
	"encoding/json"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType tags the variant held by a Part.
type PartType string

const (
	PartText       PartType = "text"
	PartReasoning  PartType = "reasoning"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
	PartData       PartType = "data"
)

// Part is one element of a message's ordered content. It is a tagged
// union: exactly the fields matching Type are meaningful.
type Part struct {
	Type PartType `json:"type"`

	// PartText / PartReasoning
	Text string `json:"text,omitempty"`

	// PartToolCall
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`

	// PartToolResult (ToolCallID shared with the call it answers)
	ToolOutput json.RawMessage `json:"toolOutput,omitempty"`
	IsError    bool            `json:"isError,omitempty"`

	// PartData — transient agentstart-* frames. Tag is e.g.
	// "agentstart-title_update"; frames with Transient=true MUST NOT be
	// persisted by upsertMessage.
	DataTag   string          `json:"dataTag,omitempty"`
	DataPayload json.RawMessage `json:"dataPayload,omitempty"`
	Transient bool            `json:"transient,omitempty"`
}

// Attachment is a blob reference carried alongside a message.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// Message is one turn in a thread's ordered history.
type Message struct {
	ID          string         `json:"id"`
	ThreadID    string         `json:"threadId"`
	Role        Role           `json:"role"`
	Parts       []Part         `json:"parts"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Persistable returns a copy of parts with transient data frames removed,
// matching the upsertMessage persistence contract.
func Persistable(parts []Part) []Part {
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		if p.Type == PartData && p.Transient {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ToolCallIDs returns the correlation ids of every tool-call part in msg.
func (m *Message) ToolCallIDs() []string {
	var ids []string
	for _, p := range m.Parts {
		if p.Type == PartToolCall {
			ids = append(ids, p.ToolCallID)
		}
	}
	return ids
}
