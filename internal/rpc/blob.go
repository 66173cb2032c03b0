package rpc

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"strings"
)

type blobUploadFile struct {
	Name string `json:"name"`
	Data string `json:"data"`
	Type string `json:"type"`
}

type blobUploadRequest struct {
	ThreadID string           `json:"threadId"`
	Files    []blobUploadFile `json:"files"`
}

type uploadedBlob struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
	URL  string `json:"url"`
}

// handleBlobUpload validates files against the configured blob limits
// and writes them into the thread's sandbox workspace; the real object
// store is an external collaborator (§6 Non-goals) — only the
// RPC-facing contract and its limit enforcement live here.
func (s *Server) handleBlobUpload(w http.ResponseWriter, r *http.Request) {
	var req blobUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	blob := s.Config.Blob
	if blob.MaxFiles > 0 && len(req.Files) > blob.MaxFiles {
		writeError(w, http.StatusBadRequest, fmt.Errorf("blob.upload: %d files exceeds limit of %d", len(req.Files), blob.MaxFiles))
		return
	}

	thread, err := s.Coordinator.Threads.Get(r.Context(), req.ThreadID, userID(r))
	if err != nil {
		writeThreadLookupError(w, err)
		return
	}
	sb, err := s.Coordinator.ConnectSandbox(r.Context(), thread)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	uploaded := make([]uploadedBlob, 0, len(req.Files))
	for _, f := range req.Files {
		if !mimeAllowed(blob.AllowedMimeTypes, f.Type) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("blob.upload: mime type %q not allowed", f.Type))
			return
		}
		data, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("blob.upload: decode %s: %w", f.Name, err))
			return
		}
		if blob.MaxFileSize > 0 && int64(len(data)) > blob.MaxFileSize {
			writeError(w, http.StatusBadRequest, fmt.Errorf("blob.upload: %s exceeds max file size of %d bytes", f.Name, blob.MaxFileSize))
			return
		}
		dest := path.Join("uploads", f.Name)
		if err := sb.Fs().WriteFile(dest, data, true); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("blob.upload: write %s: %w", f.Name, err))
			return
		}
		uploaded = append(uploaded, uploadedBlob{Name: f.Name, Type: f.Type, Size: len(data), URL: "sandbox://" + dest})
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "files": uploaded})
}

func mimeAllowed(allowed []string, mime string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, mime) {
			return true
		}
	}
	return false
}
