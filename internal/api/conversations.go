package api

import (
	"errors"
	"net/http"

	"github.com/snarg/parley/internal/ai"
	"github.com/snarg/parley/internal/database"
)

func (s *Server) ListConversations(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, _ := QueryString(r, "q")

	convs, err := s.db.ListConversations(r.Context(), q, p.Limit, p.Offset)
	if err != nil {
		s.log.Error().Err(err).Msg("listing conversations failed")
		WriteError(w, http.StatusInternalServerError, "could not list conversations")
		return
	}
	if convs == nil {
		convs = []database.Conversation{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	conv, err := s.db.GetConversation(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "could not load conversation")
		return
	}
	WriteJSON(w, http.StatusOK, conv)
}

func (s *Server) GetTranscript(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	text, ok, err := s.db.GetTranscription(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "could not load transcript")
		return
	}
	if !ok {
		WriteError(w, http.StatusNotFound, "no transcript yet")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "transcript": text})
}

// GetAudio serves the conversation audio: local blobs stream directly,
// S3-only blobs redirect to a presigned URL.
func (s *Server) GetAudio(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	conv, err := s.db.GetConversation(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if conv.AudioPath == "" {
		WriteError(w, http.StatusNotFound, "conversation has no audio")
		return
	}

	if path := s.store.LocalPath(conv.AudioPath); path != "" {
		http.ServeFile(w, r, path)
		return
	}

	url, err := s.store.URL(r.Context(), conv.AudioPath)
	if err != nil || url == "" {
		WriteError(w, http.StatusNotFound, "audio unavailable")
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

type analyzeRequest struct {
	Prompt string `json:"prompt"`
}

// Analyze runs the language-model analysis over a conversation's
// transcript and stores the result.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req analyzeRequest
	if err := DecodeJSON(r, &req); err != nil || req.Prompt == "" {
		WriteError(w, http.StatusBadRequest, "prompt required")
		return
	}

	transcript, ok, err := s.db.GetTranscription(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "could not load transcript")
		return
	}
	if !ok {
		WriteError(w, http.StatusConflict, "conversation has no transcript to analyze")
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), transcript, req.Prompt)
	if err != nil {
		var missing *ai.MissingCredentialError
		var empty *ai.EmptyResultError
		switch {
		case errors.As(err, &missing):
			WriteError(w, http.StatusUnprocessableEntity, "no analysis API key configured")
		case errors.As(err, &empty):
			WriteError(w, http.StatusBadGateway, "the analysis service returned no text")
		default:
			s.log.Warn().Err(err).Int64("conversation_id", id).Msg("analysis failed")
			WriteError(w, http.StatusBadGateway, "analysis service unavailable")
		}
		return
	}

	if err := s.db.SetAnalysis(r.Context(), id, result); err != nil {
		WriteError(w, http.StatusInternalServerError, "could not store analysis")
		return
	}

	s.bus.Publish("analysis", id, map[string]any{"conversation_id": id})
	WriteJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "analysis": result})
}

func (s *Server) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	text, ok, err := s.db.GetAnalysis(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "could not load analysis")
		return
	}
	if !ok {
		WriteError(w, http.StatusNotFound, "no analysis yet")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "analysis": text})
}
