package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

// WriteTool implements the write tool (§4.3): writes an absolute path,
// creating missing parent directories, then runs the §4.3.1 auto-commit
// protocol.
type WriteTool struct {
	schema   *jsonschemaSchema
	identity GitIdentity
}

func NewWriteTool(identity GitIdentity) *WriteTool {
	return &WriteTool{identity: identity, schema: newSchema("write.schema.json", mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filePath": map[string]any{"type": "string"},
			"content":  map[string]any{"type": "string"},
		},
		"required": []string{"filePath", "content"},
	}))}
}

func (t *WriteTool) Name() string                 { return "write" }
func (t *WriteTool) Description() string          { return "Write a file in the sandbox workspace, creating parent directories as needed." }
func (t *WriteTool) InputSchema() json.RawMessage { return t.schema.raw }
func (t *WriteTool) OutputSchema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"commitHash": map[string]any{"type": "string"},
		},
	})
}

type writeInput struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

func (t *WriteTool) Execute(ctx context.Context, rc *agent.RuntimeContext, input json.RawMessage) <-chan agent.ToolEvent {
	ch := make(chan agent.ToolEvent, 4)
	go func() {
		defer close(ch)
		ch <- agent.ToolEvent{Status: agent.StatusPending, Prompt: "Writing file"}

		if err := t.schema.validate(input); err != nil {
			ch <- errorEvent("write", err)
			return
		}
		var in writeInput
		if err := json.Unmarshal(input, &in); err != nil {
			ch <- errorEvent("write", err)
			return
		}
		if !filepath.IsAbs(in.FilePath) {
			ch <- errorEvent("write", fmt.Errorf("filePath must be absolute: %s", in.FilePath))
			return
		}

		fs := rc.Sandbox.Fs()
		existed, _ := fs.Exists(in.FilePath)
		if err := fs.WriteFile(in.FilePath, []byte(in.Content), true); err != nil {
			ch <- errorEvent("write", err)
			return
		}

		meta := map[string]any{}
		if hasWorkingTreeChanges(rc.Sandbox.Git()) {
			op := "created"
			if existed {
				op = "overwritten"
			}
			desc := op
			if hash, err := autoCommit(rc.Sandbox.Git(), t.identity, in.FilePath, op, desc); err == nil && hash != "" {
				meta["commitHash"] = hash
			} else if err != nil {
				ch <- errorEvent("write", err)
				return
			}
		}
		ch <- doneEvent(meta)
	}()
	return ch
}

func (t *WriteTool) ToModelOutput(event agent.ToolEvent) json.RawMessage { return toModelOutput(event) }
