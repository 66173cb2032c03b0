package tools

import (
	"encoding/json"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

func errorEvent(prompt string, err error) agent.ToolEvent {
	return agent.ToolEvent{Status: agent.StatusError, Prompt: prompt, Err: &agent.ToolResultError{Message: err.Error()}}
}

func doneEvent(metadata map[string]any) agent.ToolEvent {
	return agent.ToolEvent{Status: agent.StatusDone, Metadata: metadata}
}

// toModelOutput is the default terminal-event-to-model-output
// projection shared by every tool: metadata is echoed back as JSON on
// success, and the error envelope on failure — matching §7's
// "wrapped into {status, error:{message}}" tool error contract.
func toModelOutput(event agent.ToolEvent) json.RawMessage {
	if event.Status == agent.StatusError {
		msg := ""
		if event.Err != nil {
			msg = event.Err.Message
		}
		b, _ := json.Marshal(map[string]any{
			"status": "error",
			"error":  map[string]any{"message": msg},
			"prompt": event.Prompt,
		})
		return b
	}
	b, _ := json.Marshal(map[string]any{
		"status":   "done",
		"metadata": event.Metadata,
		"prompt":   event.Prompt,
	})
	return b
}
