package tools

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

const (
	lsRecursiveCap    = 500
	lsNonRecursiveCap = 100
)

var defaultIgnoredDirs = []string{"node_modules", ".git", "dist", "build", ".next", "vendor", "target"}

// LsTool implements the ls tool (§4.3): capped, dirs-first,
// alphabetically sorted directory listing.
type LsTool struct {
	schema *jsonschemaSchema
}

func NewLsTool() *LsTool {
	return &LsTool{schema: newSchema("ls.schema.json", mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string"},
			"recursive": map[string]any{"type": "boolean"},
			"ignore":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"path"},
	}))}
}

func (t *LsTool) Name() string                 { return "ls" }
func (t *LsTool) Description() string          { return "List a sandbox directory's entries." }
func (t *LsTool) InputSchema() json.RawMessage { return t.schema.raw }
func (t *LsTool) OutputSchema() json.RawMessage {
	return mustSchema(map[string]any{"type": "object", "properties": map[string]any{"entries": map[string]any{"type": "array"}}})
}

type lsInput struct {
	Path      string   `json:"path"`
	Recursive bool     `json:"recursive"`
	Ignore    []string `json:"ignore"`
}

func (t *LsTool) Execute(ctx context.Context, rc *agent.RuntimeContext, input json.RawMessage) <-chan agent.ToolEvent {
	ch := make(chan agent.ToolEvent, 4)
	go func() {
		defer close(ch)
		ch <- agent.ToolEvent{Status: agent.StatusPending, Prompt: "Listing directory"}

		if err := t.schema.validate(input); err != nil {
			ch <- errorEvent("ls", err)
			return
		}
		var in lsInput
		if err := json.Unmarshal(input, &in); err != nil {
			ch <- errorEvent("ls", err)
			return
		}

		ignores := append(append([]string(nil), defaultIgnoredDirs...), in.Ignore...)
		entries, err := rc.Sandbox.Fs().ReadDir(in.Path, in.Recursive, ignores)
		if err != nil {
			ch <- errorEvent("ls", err)
			return
		}

		sort.SliceStable(entries, func(i, j int) bool {
			di, dj := entries[i].Type == "dir", entries[j].Type == "dir"
			if di != dj {
				return di
			}
			return entries[i].Name < entries[j].Name
		})

		cap := lsNonRecursiveCap
		if in.Recursive {
			cap = lsRecursiveCap
		}
		truncated := false
		if len(entries) > cap {
			entries = entries[:cap]
			truncated = true
		}

		out := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			out = append(out, map[string]any{
				"name": e.Name, "path": e.Path, "parentPath": e.ParentPath,
				"type": e.Type, "size": e.Size, "modifiedTime": e.ModifiedTime,
			})
		}
		ch <- doneEvent(map[string]any{"entries": out, "truncated": truncated})
	}()
	return ch
}

func (t *LsTool) ToModelOutput(event agent.ToolEvent) json.RawMessage { return toModelOutput(event) }
