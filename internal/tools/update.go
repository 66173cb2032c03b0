package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

// UpdateTool implements the update tool (§4.3): exact-string replace,
// with oldString=="" creating a new file and a uniqueness check when
// replaceAll is false.
type UpdateTool struct {
	schema   *jsonschemaSchema
	identity GitIdentity
}

func NewUpdateTool(identity GitIdentity) *UpdateTool {
	return &UpdateTool{identity: identity, schema: newSchema("update.schema.json", mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filePath":    map[string]any{"type": "string"},
			"oldString":   map[string]any{"type": "string"},
			"newString":   map[string]any{"type": "string"},
			"replaceAll":  map[string]any{"type": "boolean"},
		},
		"required": []string{"filePath", "oldString", "newString"},
	}))}
}

func (t *UpdateTool) Name() string                 { return "update" }
func (t *UpdateTool) Description() string          { return "Replace an exact string within a sandbox file." }
func (t *UpdateTool) InputSchema() json.RawMessage { return t.schema.raw }
func (t *UpdateTool) OutputSchema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"commitHash":     map[string]any{"type": "string"},
			"replacements":   map[string]any{"type": "integer"},
		},
	})
}

type updateInput struct {
	FilePath   string `json:"filePath"`
	OldString  string `json:"oldString"`
	NewString  string `json:"newString"`
	ReplaceAll bool   `json:"replaceAll"`
}

func (t *UpdateTool) Execute(ctx context.Context, rc *agent.RuntimeContext, input json.RawMessage) <-chan agent.ToolEvent {
	ch := make(chan agent.ToolEvent, 4)
	go func() {
		defer close(ch)
		ch <- agent.ToolEvent{Status: agent.StatusPending, Prompt: "Updating file"}

		if err := t.schema.validate(input); err != nil {
			ch <- errorEvent("update", err)
			return
		}
		var in updateInput
		if err := json.Unmarshal(input, &in); err != nil {
			ch <- errorEvent("update", err)
			return
		}
		if !filepath.IsAbs(in.FilePath) {
			ch <- errorEvent("update", fmt.Errorf("filePath must be absolute: %s", in.FilePath))
			return
		}
		if in.OldString == in.NewString {
			ch <- errorEvent("update", fmt.Errorf("oldString and newString must differ"))
			return
		}

		fs := rc.Sandbox.Fs()
		op := "edited"
		var newContent string
		replacements := 1

		if in.OldString == "" {
			op = "created"
			newContent = in.NewString
		} else {
			existing, err := fs.ReadFile(in.FilePath)
			if err != nil {
				ch <- errorEvent("update", err)
				return
			}
			content := string(existing)
			count := strings.Count(content, in.OldString)
			if count == 0 {
				ch <- errorEvent("update", fmt.Errorf("oldString not found in %s", in.FilePath))
				return
			}
			if count > 1 && !in.ReplaceAll {
				ch <- errorEvent("update", fmt.Errorf("oldString is not unique: found %d occurrences; pass replaceAll to replace them all", count))
				return
			}
			if in.ReplaceAll {
				newContent = strings.ReplaceAll(content, in.OldString, in.NewString)
				replacements = count
			} else {
				newContent = strings.Replace(content, in.OldString, in.NewString, 1)
			}
		}

		if err := fs.WriteFile(in.FilePath, []byte(newContent), true); err != nil {
			ch <- errorEvent("update", err)
			return
		}

		meta := map[string]any{"replacements": replacements}
		if hasWorkingTreeChanges(rc.Sandbox.Git()) {
			if hash, err := autoCommit(rc.Sandbox.Git(), t.identity, in.FilePath, op, op); err == nil && hash != "" {
				meta["commitHash"] = hash
			} else if err != nil {
				ch <- errorEvent("update", err)
				return
			}
		}
		ch <- doneEvent(meta)
	}()
	return ch
}

func (t *UpdateTool) ToModelOutput(event agent.ToolEvent) json.RawMessage { return toModelOutput(event) }
