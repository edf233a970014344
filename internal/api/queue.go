package api

import (
	"net/http"

	"github.com/snarg/parley/internal/queue"
)

func (s *Server) ListQueue(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": s.queue.Items()})
}

// DismissJob removes a job from the queue. This is how a user clears a
// Failed job they do not intend to retry.
func (s *Server) DismissJob(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	s.queue.RemoveItem(id)
	w.WriteHeader(http.StatusNoContent)
}

// RetryJob re-enqueues a failed job with its original audio path.
func (s *Server) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	job, ok := s.queue.Item(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "no job for conversation")
		return
	}
	if job.Status != queue.StatusFailed {
		WriteError(w, http.StatusConflict, "only failed jobs can be retried")
		return
	}
	s.queue.Enqueue(id, job.AudioPath)
	WriteJSON(w, http.StatusAccepted, map[string]any{"conversation_id": id})
}

// WatchConversation starts a consistency poll so out-of-band transcripts
// for the conversation trigger a refresh event.
func (s *Server) WatchConversation(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	s.queue.Watch(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) UnwatchConversation(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	s.queue.Unwatch(id)
	w.WriteHeader(http.StatusNoContent)
}
