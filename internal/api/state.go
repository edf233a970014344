package api

import (
	"net/http"

	"github.com/snarg/parley/internal/session"
)

func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.state.Snapshot())
}

func (s *Server) PutEntry(w http.ResponseWriter, r *http.Request) {
	var entry session.Entry
	if err := DecodeJSON(r, &entry); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid entry body")
		return
	}
	s.state.SetEntry(entry)
	WriteJSON(w, http.StatusOK, s.state.Snapshot())
}

// ResetState returns the session to its startup shape. Queued
// transcription jobs keep running and stay visible.
func (s *Server) ResetState(w http.ResponseWriter, r *http.Request) {
	s.capture.Stop()
	s.playback.Close()
	WriteJSON(w, http.StatusOK, s.state.ResetSession())
}
