package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/snarg/parley/internal/playback"
)

type loadRequest struct {
	ConversationID int64   `json:"conversation_id"`
	Duration       float64 `json:"duration,omitempty"` // caller-known estimate for non-WAV formats
}

// PlaybackLoad loads a conversation's audio into the playback engine.
// Local blobs are read from disk; S3-only blobs go through a presigned URL.
func (s *Server) PlaybackLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := DecodeJSON(r, &req); err != nil || req.ConversationID == 0 {
		WriteError(w, http.StatusBadRequest, "conversation_id required")
		return
	}

	conv, err := s.db.GetConversation(r.Context(), req.ConversationID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if conv.AudioPath == "" {
		WriteError(w, http.StatusConflict, "conversation has no audio")
		return
	}

	src, err := s.playbackSource(r, conv.AudioPath)
	if err != nil {
		WriteError(w, http.StatusNotFound, "audio unavailable")
		return
	}

	onUpdate := func(ps playback.PlaybackState) {
		s.state.SetPlayback(ps)
	}
	if err := s.playback.Load(r.Context(), src, onUpdate); err != nil {
		var decode *playback.DecodeError
		if errors.As(err, &decode) {
			WriteErrorDetail(w, http.StatusUnprocessableEntity, "audio could not be decoded", decode.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, "could not load audio")
		return
	}

	if req.Duration > 0 {
		s.playback.SetDurationEstimate(req.Duration)
	}

	st := s.playback.State()
	s.state.SetPlayback(st)
	WriteJSON(w, http.StatusOK, st)
}

func (s *Server) playbackSource(r *http.Request, blobName string) (playback.Source, error) {
	if s.store.Exists(r.Context(), blobName) && s.store.LocalPath(blobName) != "" {
		rc, err := s.store.Open(r.Context(), blobName)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return &playback.BlobSource{ResourceName: blobName, Data: data}, nil
	}

	url, err := s.store.URL(r.Context(), blobName)
	if err != nil || url == "" {
		return nil, errors.New("blob not available")
	}
	return &playback.URLSource{URL: url}, nil
}

func (s *Server) PlaybackPlay(w http.ResponseWriter, r *http.Request) {
	if err := s.playback.Play(); err != nil {
		var blocked *playback.BlockedError
		if errors.As(err, &blocked) {
			WriteError(w, http.StatusConflict, "playback blocked by output device")
			return
		}
		WriteError(w, http.StatusConflict, "no audio loaded")
		return
	}
	s.syncPlayback(w)
}

func (s *Server) PlaybackPause(w http.ResponseWriter, r *http.Request) {
	s.playback.Pause()
	s.syncPlayback(w)
}

func (s *Server) PlaybackStop(w http.ResponseWriter, r *http.Request) {
	s.playback.Stop()
	s.syncPlayback(w)
}

type seekRequest struct {
	Position float64 `json:"position"`
}

func (s *Server) PlaybackSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "position required")
		return
	}
	s.playback.Seek(req.Position)
	s.syncPlayback(w)
}

func (s *Server) PlaybackRewind(w http.ResponseWriter, r *http.Request) {
	s.playback.Rewind()
	s.syncPlayback(w)
}

func (s *Server) PlaybackForward(w http.ResponseWriter, r *http.Request) {
	s.playback.Forward()
	s.syncPlayback(w)
}

func (s *Server) syncPlayback(w http.ResponseWriter) {
	st := s.playback.State()
	s.state.SetPlayback(st)
	WriteJSON(w, http.StatusOK, st)
}
