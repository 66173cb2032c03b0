package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/agentstart/agentstart-sub001/internal/coordinator"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

type createThreadRequest struct {
	Title      string              `json:"title"`
	Visibility runtypes.Visibility `json:"visibility"`
}

func (s *Server) handleThreadCreate(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	thread, err := s.Coordinator.Threads.Create(r.Context(), userID(r), req.Title, req.Visibility)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) handleThreadGet(w http.ResponseWriter, r *http.Request) {
	thread, err := s.Coordinator.Threads.Get(r.Context(), r.URL.Query().Get("threadId"), userID(r))
	if err != nil {
		writeThreadLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) handleThreadList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	threads, info, err := s.Coordinator.Threads.List(r.Context(), userID(r), page, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads, "pageInfo": info})
}

type updateThreadRequest struct {
	ThreadID    string               `json:"threadId"`
	Title       *string              `json:"title"`
	Visibility  *runtypes.Visibility `json:"visibility"`
	LastContext map[string]any       `json:"lastContext"`
}

func (s *Server) handleThreadUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	thread, err := s.Coordinator.Threads.Update(r.Context(), req.ThreadID, userID(r), req.Title, req.Visibility, req.LastContext)
	if err != nil {
		writeThreadLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) handleThreadDelete(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("threadId")
	if err := s.Coordinator.Threads.Delete(r.Context(), threadID, userID(r)); err != nil {
		writeThreadLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleThreadLoadMessages(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("threadId")
	if _, err := s.Coordinator.Threads.Get(r.Context(), threadID, userID(r)); err != nil {
		writeThreadLookupError(w, err)
		return
	}
	messages, err := s.Coordinator.Assembler.LoadThread(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func writeThreadLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coordinator.ErrThreadNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, coordinator.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
