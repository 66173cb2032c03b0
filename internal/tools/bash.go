package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

const (
	bashDefaultTimeoutMs = 120000
	bashMaxTimeoutMs     = 600000
	bashMaxOutputChars   = 30000
	truncationSentinel   = "\n... [output truncated]"
)

// BashTool implements the bash tool (§4.3): runs a shell command inside
// the sandbox, truncates oversized output, and auto-commits when the
// command left a detectable working-tree diff (§4.3.1).
type BashTool struct {
	schema   *jsonschemaSchema
	identity GitIdentity
}

func NewBashTool(identity GitIdentity) *BashTool {
	return &BashTool{identity: identity, schema: newSchema("bash.schema.json", mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command":     map[string]any{"type": "string"},
			"timeout":     map[string]any{"type": "integer"},
			"description": map[string]any{"type": "string"},
		},
		"required": []string{"command"},
	}))}
}

func (t *BashTool) Name() string                 { return "bash" }
func (t *BashTool) Description() string          { return "Run a shell command inside the sandbox workspace." }
func (t *BashTool) InputSchema() json.RawMessage { return t.schema.raw }
func (t *BashTool) OutputSchema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"exitCode":   map[string]any{"type": "integer"},
			"stdout":     map[string]any{"type": "string"},
			"stderr":     map[string]any{"type": "string"},
			"commitHash": map[string]any{"type": "string"},
		},
	})
}

type bashInput struct {
	Command     string `json:"command"`
	Timeout     int    `json:"timeout"`
	Description string `json:"description"`
}

func (t *BashTool) Execute(ctx context.Context, rc *agent.RuntimeContext, input json.RawMessage) <-chan agent.ToolEvent {
	ch := make(chan agent.ToolEvent, 4)
	go func() {
		defer close(ch)
		ch <- agent.ToolEvent{Status: agent.StatusPending, Prompt: "Running command"}

		if err := t.schema.validate(input); err != nil {
			ch <- errorEvent("bash", err)
			return
		}
		var in bashInput
		if err := json.Unmarshal(input, &in); err != nil {
			ch <- errorEvent("bash", err)
			return
		}

		timeout := in.Timeout
		if timeout <= 0 {
			timeout = bashDefaultTimeoutMs
		}
		if timeout > bashMaxTimeoutMs {
			timeout = bashMaxTimeoutMs
		}

		git := rc.Sandbox.Git()
		gitWasUsable := gitUsable(git)
		res, err := rc.Sandbox.Shell().Bash("", in.Command, nil, timeout)
		if err != nil {
			ch <- errorEvent("bash", err)
			return
		}

		meta := map[string]any{
			"exitCode": res.ExitCode,
			"stdout":   truncateOutput(res.Stdout),
			"stderr":   truncateOutput(res.Stderr),
		}

		if gitWasUsable && res.ExitCode == 0 && hasWorkingTreeChanges(git) {
			desc := in.Description
			if desc == "" {
				desc = in.Command
			}
			if hash, err := autoCommit(git, t.identity, ".", fmt.Sprintf("executed: %s", in.Command), desc); err == nil && hash != "" {
				meta["commitHash"] = hash
			}
		}

		ch <- doneEvent(meta)
	}()
	return ch
}

func (t *BashTool) ToModelOutput(event agent.ToolEvent) json.RawMessage { return toModelOutput(event) }

func truncateOutput(s string) string {
	if len(s) <= bashMaxOutputChars {
		return s
	}
	return s[:bashMaxOutputChars] + truncationSentinel
}

func gitUsable(git agent.GitFacade) bool {
	res := git.Run("rev-parse", "--is-inside-work-tree")
	return res.Success
}
