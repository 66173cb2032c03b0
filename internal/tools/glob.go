package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

var errRequiredPattern = errors.New("pattern or patterns is required")

// GlobTool implements the glob tool (§4.3): deterministic lexicographic
// ordering over one or more patterns.
type GlobTool struct {
	schema *jsonschemaSchema
}

func NewGlobTool() *GlobTool {
	return &GlobTool{schema: newSchema("glob.schema.json", mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern":  map[string]any{"type": "string"},
			"patterns": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"cwd":      map[string]any{"type": "string"},
			"exclude":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}))}
}

func (t *GlobTool) Name() string                 { return "glob" }
func (t *GlobTool) Description() string          { return "Find files in the sandbox matching glob patterns." }
func (t *GlobTool) InputSchema() json.RawMessage { return t.schema.raw }
func (t *GlobTool) OutputSchema() json.RawMessage {
	return mustSchema(map[string]any{"type": "object", "properties": map[string]any{"files": map[string]any{"type": "array"}}})
}

type globInput struct {
	Pattern  string   `json:"pattern"`
	Patterns []string `json:"patterns"`
	Cwd      string   `json:"cwd"`
	Exclude  []string `json:"exclude"`
}

func (t *GlobTool) Execute(ctx context.Context, rc *agent.RuntimeContext, input json.RawMessage) <-chan agent.ToolEvent {
	ch := make(chan agent.ToolEvent, 4)
	go func() {
		defer close(ch)
		ch <- agent.ToolEvent{Status: agent.StatusPending, Prompt: "Matching glob patterns"}

		if err := t.schema.validate(input); err != nil {
			ch <- errorEvent("glob", err)
			return
		}
		var in globInput
		if err := json.Unmarshal(input, &in); err != nil {
			ch <- errorEvent("glob", err)
			return
		}
		patterns := in.Patterns
		if in.Pattern != "" {
			patterns = append(patterns, in.Pattern)
		}
		if len(patterns) == 0 {
			ch <- errorEvent("glob", errRequiredPattern)
			return
		}

		files, err := rc.Sandbox.Fs().Glob(patterns, in.Cwd, in.Exclude)
		if err != nil {
			ch <- errorEvent("glob", err)
			return
		}
		sort.Strings(files)
		ch <- doneEvent(map[string]any{"files": files})
	}()
	return ch
}

func (t *GlobTool) ToModelOutput(event agent.ToolEvent) json.RawMessage { return toModelOutput(event) }
