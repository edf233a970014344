package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/parley/internal/ai"
	"github.com/snarg/parley/internal/api"
	"github.com/snarg/parley/internal/audio"
	"github.com/snarg/parley/internal/capture"
	"github.com/snarg/parley/internal/config"
	"github.com/snarg/parley/internal/database"
	"github.com/snarg/parley/internal/importer"
	"github.com/snarg/parley/internal/playback"
	"github.com/snarg/parley/internal/queue"
	"github.com/snarg/parley/internal/session"
	"github.com/snarg/parley/internal/storage"
)

var version = "dev"

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace..panic)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "postgres connection string")
	flag.StringVar(&overrides.AudioDir, "audio-dir", "", "audio blob directory")
	flag.StringVar(&overrides.ImportDir, "import-dir", "", "drop directory for imported audio")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("parley starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	// Blob storage
	store, err := storage.New(cfg.S3, cfg.AudioDir, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize blob storage")
	}

	// Speech and analysis clients
	transcriber := ai.NewWhisperClient(cfg.TranscribeURL, cfg.TranscribeModel, cfg.TranscribeAPIKey, cfg.TranscribeTimeout)
	analyzer := ai.NewChatClient(cfg.AnalyzeURL, cfg.AnalyzeModel, cfg.AnalyzeAPIKey, cfg.TranscribeTimeout)

	// Event bus and session state
	bus := api.NewBus(256)
	state := session.New(func(snap session.Snapshot) {
		bus.Publish("state", 0, snap)
	})

	// Transcription queue
	q := queue.New(queue.Options{
		Store:       db,
		Transcriber: transcriber,
		Publish: func(eventType string, conversationID int64, payload map[string]any) {
			bus.Publish(eventType, conversationID, payload)
		},
		Notify:      state.SetJobs,
		Log:         log.With().Str("component", "queue").Logger(),
	})
	defer q.Stop()

	// Import watcher
	if cfg.ImportDir != "" {
		imp := importer.New(cfg.ImportDir, store, db, q, log)
		if err := imp.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start import watcher")
		}
		defer imp.Stop()
	}

	// Capture and playback engines
	var device audio.Device
	if cfg.CaptureSource != "" {
		device = &audio.PCMDevice{Path: cfg.CaptureSource}
	}
	capEngine := capture.NewEngine(capture.Options{
		Device: device,
		Log:    log.With().Str("component", "capture").Logger(),
	})
	playEngine := playback.NewEngine(playback.Options{
		Log: log.With().Str("component", "playback").Logger(),
	})
	defer playEngine.Close()
	defer capEngine.Stop()

	// HTTP server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.Deps{
		Config:   cfg,
		DB:       db,
		Store:    store,
		State:    state,
		Queue:    q,
		Capture:  capEngine,
		Playback: playEngine,
		Analyzer: analyzer,
		Bus:      bus,
		Version:  version,
	}, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("parley stopped")
}
