package assembler

import (
	"encoding/json"
	"fmt"

	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

// RepairReport summarizes the adjustments RepairToolCallPairing made to
// one message's parts.
type RepairReport struct {
	Added                 int
	DroppedDuplicateCount int
	DroppedOrphanCount    int
}

func (r RepairReport) Changed() bool {
	return r.Added > 0 || r.DroppedDuplicateCount > 0 || r.DroppedOrphanCount > 0
}

// RepairToolCallPairing rewrites a message's parts so every tool-call
// part is immediately followed by its matching tool-result part, in
// the order the calls were originally emitted. Duplicate results for
// the same call id are dropped, results with no matching call are
// dropped as orphans, and calls left unanswered get a synthetic error
// result appended so every call is paired before the message is handed
// back to the model.
func RepairToolCallPairing(parts []runtypes.Part) ([]runtypes.Part, RepairReport) {
	var report RepairReport

	callByID := map[string]runtypes.Part{}
	for _, p := range parts {
		if p.Type == runtypes.PartToolCall && p.ToolCallID != "" {
			callByID[p.ToolCallID] = p
		}
	}

	resultByID := map[string]runtypes.Part{}
	seenResult := map[string]bool{}
	for _, p := range parts {
		if p.Type != runtypes.PartToolResult || p.ToolCallID == "" {
			continue
		}
		if _, isCall := callByID[p.ToolCallID]; !isCall {
			report.DroppedOrphanCount++
			continue
		}
		if seenResult[p.ToolCallID] {
			report.DroppedDuplicateCount++
			continue
		}
		seenResult[p.ToolCallID] = true
		resultByID[p.ToolCallID] = p
	}

	out := make([]runtypes.Part, 0, len(parts)+len(callByID))
	emitted := map[string]bool{}
	for _, p := range parts {
		switch p.Type {
		case runtypes.PartToolResult:
			continue
		case runtypes.PartToolCall:
			if p.ToolCallID == "" || emitted[p.ToolCallID] {
				continue
			}
			emitted[p.ToolCallID] = true
			out = append(out, p)
			if res, ok := resultByID[p.ToolCallID]; ok {
				out = append(out, res)
			} else {
				out = append(out, makeMissingToolResult(p.ToolCallID, p.ToolName))
				report.Added++
			}
		default:
			out = append(out, p)
		}
	}

	return out, report
}

// makeMissingToolResult synthesizes an error result for a tool call
// that never received one, so the model always sees a paired sequence.
func makeMissingToolResult(toolCallID, toolName string) runtypes.Part {
	payload, _ := json.Marshal(map[string]any{
		"status": "error",
		"error":  map[string]any{"message": fmt.Sprintf("no result recorded for tool call %s", toolName)},
	})
	return runtypes.Part{
		Type:       runtypes.PartToolResult,
		ToolCallID: toolCallID,
		ToolOutput: payload,
		IsError:    true,
	}
}
