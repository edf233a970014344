package api

import (
	"errors"
	"net/http"

	"github.com/snarg/parley/internal/audio"
	"github.com/snarg/parley/internal/capture"
	"github.com/snarg/parley/internal/database"
	"github.com/snarg/parley/internal/metrics"
)

func (s *Server) CaptureStart(w http.ResponseWriter, r *http.Request) {
	err := s.capture.Start(r.Context(), func(rs capture.RecordingState) {
		s.state.SetRecording(rs)
	})
	if err != nil {
		var access *audio.DeviceAccessError
		if errors.As(err, &access) {
			WriteErrorDetail(w, http.StatusConflict, "audio device unavailable", access.Reason)
			return
		}
		WriteError(w, http.StatusInternalServerError, "could not start recording")
		return
	}
	WriteJSON(w, http.StatusOK, s.state.Snapshot().Recording)
}

func (s *Server) CapturePause(w http.ResponseWriter, r *http.Request) {
	s.capture.Pause()
	WriteJSON(w, http.StatusOK, s.state.Snapshot().Recording)
}

func (s *Server) CaptureResume(w http.ResponseWriter, r *http.Request) {
	s.capture.Resume()
	WriteJSON(w, http.StatusOK, s.state.Snapshot().Recording)
}

// CaptureStop finalizes the recording: the encoded blob is written to
// storage, a conversation row is created from the session entry, and a
// transcription job is queued.
func (s *Server) CaptureStop(w http.ResponseWriter, r *http.Request) {
	s.capture.Stop()

	blob := s.capture.AudioBlob()
	if len(blob) == 0 {
		WriteError(w, http.StatusConflict, "no recording to save")
		return
	}

	name := audio.BlobName("wav")
	if err := s.store.Save(r.Context(), name, blob, audio.ContentTypeFor(name)); err != nil {
		s.log.Error().Err(err).Str("blob", name).Msg("saving recording failed")
		WriteError(w, http.StatusInternalServerError, "could not save recording")
		return
	}

	entry := s.state.Entry()
	id, err := s.db.CreateConversation(r.Context(), database.NewConversation{
		StudentName:      entry.StudentName,
		ConversationType: entry.ConversationType,
		Date:             entry.Date,
		AudioPath:        name,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("creating conversation failed")
		WriteError(w, http.StatusInternalServerError, "could not create conversation")
		return
	}

	audioPath := s.store.LocalPath(name)
	s.queue.Enqueue(id, audioPath)

	metrics.RecordingsSavedTotal.Inc()
	if dur, err := audio.WAVDuration(blob); err == nil {
		metrics.CaptureSecondsTotal.Add(dur)
	}

	s.log.Info().Int64("conversation_id", id).Str("blob", name).Msg("recording saved and queued")
	WriteJSON(w, http.StatusCreated, map[string]any{
		"conversation_id": id,
		"blob":            name,
	})
}
