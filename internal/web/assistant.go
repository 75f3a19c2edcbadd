package web

import (
	"net/http"
	"strconv"

	"contentcal/internal/assistant"
	appLog "contentcal/internal/log"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply assistant.Message `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, ok := s.deps.Assistant.Reply(req.Message)
	if !ok {
		writeError(w, http.StatusBadRequest, "message is empty")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: msg})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, assistant.Suggestions())
}

func (s *Server) handleTimes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, assistant.OptimalTimes())
}

// POST /api/assistant/suggestions/{id}/use creates a draft from the
// suggestion, scheduled now.
func (s *Server) handleUseSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid suggestion id")
		return
	}
	sug, ok := assistant.SuggestionByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown suggestion")
		return
	}

	item, err := s.deps.Content.CreateContentItem(r.Context(), sug.Candidate(s.deps.Now()))
	if err != nil {
		appLog.Error("create from suggestion failed", err, "suggestion", id)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
