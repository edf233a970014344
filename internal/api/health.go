package api

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := s.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	checks["storage"] = s.store.Type()

	if s.cfg.TranscribeAPIKey == "" {
		checks["transcription"] = "no_credentials"
		if status == "healthy" {
			status = "degraded"
		}
	} else {
		checks["transcription"] = "configured"
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Checks:        checks,
	})
}
