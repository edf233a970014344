package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/parley/internal/ai"
	"github.com/snarg/parley/internal/capture"
	"github.com/snarg/parley/internal/config"
	"github.com/snarg/parley/internal/database"
	"github.com/snarg/parley/internal/metrics"
	"github.com/snarg/parley/internal/playback"
	"github.com/snarg/parley/internal/queue"
	"github.com/snarg/parley/internal/session"
	"github.com/snarg/parley/internal/storage"
)

// Deps bundles the collaborators the HTTP surface exposes.
type Deps struct {
	Config   *config.Config
	DB       *database.DB
	Store    storage.BlobStore
	State    *session.State
	Queue    *queue.Queue
	Capture  *capture.Engine
	Playback *playback.Engine
	Analyzer ai.Analyzer
	Bus      *Bus
	Version  string
}

type Server struct {
	http *http.Server
	log  zerolog.Logger

	cfg      *config.Config
	db       *database.DB
	store    storage.BlobStore
	state    *session.State
	queue    *queue.Queue
	capture  *capture.Engine
	playback *playback.Engine
	analyzer ai.Analyzer
	bus      *Bus

	version   string
	startTime time.Time
}

func NewServer(d Deps, log zerolog.Logger) *Server {
	s := &Server{
		log:       log,
		cfg:       d.Config,
		db:        d.DB,
		store:     d.Store,
		state:     d.State,
		queue:     d.Queue,
		capture:   d.Capture,
		playback:  d.Playback,
		analyzer:  d.Analyzer,
		bus:       d.Bus,
		version:   d.Version,
		startTime: time.Now(),
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	// Health and metrics — no auth
	r.Get("/api/v1/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(d.Config.AuthToken))

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/state", s.GetState)
			r.Put("/state/entry", s.PutEntry)
			r.Post("/state/reset", s.ResetState)

			r.Post("/capture/start", s.CaptureStart)
			r.Post("/capture/pause", s.CapturePause)
			r.Post("/capture/resume", s.CaptureResume)
			r.Post("/capture/stop", s.CaptureStop)

			r.Post("/playback/load", s.PlaybackLoad)
			r.Post("/playback/play", s.PlaybackPlay)
			r.Post("/playback/pause", s.PlaybackPause)
			r.Post("/playback/stop", s.PlaybackStop)
			r.Post("/playback/seek", s.PlaybackSeek)
			r.Post("/playback/rewind", s.PlaybackRewind)
			r.Post("/playback/forward", s.PlaybackForward)

			r.Get("/queue", s.ListQueue)
			r.Delete("/queue/{id}", s.DismissJob)
			r.Post("/queue/{id}/retry", s.RetryJob)
			r.Post("/queue/{id}/watch", s.WatchConversation)
			r.Delete("/queue/{id}/watch", s.UnwatchConversation)

			r.Get("/conversations", s.ListConversations)
			r.Get("/conversations/{id}", s.GetConversation)
			r.Get("/conversations/{id}/transcript", s.GetTranscript)
			r.Get("/conversations/{id}/audio", s.GetAudio)
			r.Post("/conversations/{id}/analysis", s.Analyze)
			r.Get("/conversations/{id}/analysis", s.GetAnalysis)

			r.Get("/events/stream", s.StreamEvents)
		})
	})

	s.http = &http.Server{
		Addr:         d.Config.HTTPAddr,
		Handler:      r,
		ReadTimeout:  d.Config.ReadTimeout,
		WriteTimeout: d.Config.WriteTimeout,
		IdleTimeout:  d.Config.IdleTimeout,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
