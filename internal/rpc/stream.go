package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/agentstart/agentstart-sub001/internal/coordinator"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

type streamThreadRequest struct {
	ThreadID string          `json:"threadId"`
	Message  runtypes.Message `json:"message"`
	Model    string          `json:"model"`
}

// handleThreadStream serves thread.stream as SSE: one JSON-encoded
// runtypes.StreamEvent per "data: " line, blank-line terminated, per §6.
func (s *Server) handleThreadStream(w http.ResponseWriter, r *http.Request) {
	var req streamThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errNoFlush)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := coordinator.EmitterFunc(func(ev runtypes.StreamEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(data)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	})

	_ = s.Coordinator.Stream(r.Context(), coordinator.StreamRequest{
		ThreadID: req.ThreadID,
		UserID:   userID(r),
		Message:  req.Message,
		Model:    req.Model,
	}, emit)
}

var errNoFlush = &streamingUnsupportedError{}

type streamingUnsupportedError struct{}

func (*streamingUnsupportedError) Error() string { return "rpc: response writer does not support streaming" }
