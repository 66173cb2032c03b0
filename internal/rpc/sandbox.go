package rpc

import "net/http"

// handleSandboxList connects the caller's thread to its sandbox and
// lists the working directory (§6 sandbox.list), without running the
// agent loop.
func (s *Server) handleSandboxList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	threadID := q.Get("threadId")
	path := q.Get("path")
	if path == "" {
		path = "."
	}
	recursive := q.Get("recursive") == "true"

	var ignores []string
	if raw := q.Get("ignore"); raw != "" {
		ignores = append(ignores, raw)
	}

	thread, err := s.Coordinator.Threads.Get(r.Context(), threadID, userID(r))
	if err != nil {
		writeThreadLookupError(w, err)
		return
	}
	sb, err := s.Coordinator.ConnectSandbox(r.Context(), thread)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	entries, err := sb.Fs().ReadDir(path, recursive, ignores)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
