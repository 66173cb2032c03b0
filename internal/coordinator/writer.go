package coordinator

import "github.com/agentstart/agentstart-sub001/pkg/runtypes"

// Emitter is the UI-facing sink a Stream call writes frames to. The
// host's transport (SSE handler, websocket, etc.) implements this.
type Emitter interface {
	Emit(event runtypes.StreamEvent)
}

// EmitterFunc adapts a plain function to an Emitter.
type EmitterFunc func(runtypes.StreamEvent)

func (f EmitterFunc) Emit(event runtypes.StreamEvent) { f(event) }

// progressWriter adapts an Emitter to agent.ProgressWriter so tools can
// surface ad hoc progress notifications through the same stream (§4.6
// step 5: "tool-call starts, tool progress, tool results").
type progressWriter struct {
	emit Emitter
}

func (w *progressWriter) WriteProgress(toolCallID, message string) {
	w.emit.Emit(runtypes.StreamEvent{
		Type:       runtypes.EventToolProgress,
		ToolCallID: toolCallID,
		Progress:   message,
	})
}
