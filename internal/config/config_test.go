package config

import (
	"testing"
)

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.AudioDir != "./audio" {
			t.Errorf("AudioDir = %q, want ./audio", cfg.AudioDir)
		}
		if cfg.TranscribeModel != "whisper-1" {
			t.Errorf("TranscribeModel = %q, want whisper-1", cfg.TranscribeModel)
		}
		if cfg.ImportDir != "" {
			t.Errorf("ImportDir = %q, want empty", cfg.ImportDir)
		}
		if cfg.S3.Enabled() {
			t.Error("S3.Enabled() = true without a bucket configured")
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "warn")
		cfg, err := Load(Overrides{
			EnvFile:     "nonexistent.env",
			HTTPAddr:    ":9090",
			LogLevel:    "debug",
			DatabaseURL: "postgres://override/db",
			AudioDir:    "/tmp/audio",
			ImportDir:   "/tmp/imports",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug (flag should beat env)", cfg.LogLevel)
		}
		if cfg.DatabaseURL != "postgres://override/db" {
			t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
		}
		if cfg.ImportDir != "/tmp/imports" {
			t.Errorf("ImportDir = %q, want /tmp/imports", cfg.ImportDir)
		}
	})

	t.Run("missing_required", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
			t.Error("Load succeeded without DATABASE_URL")
		}
	})

	t.Run("s3_enabled_with_bucket", func(t *testing.T) {
		t.Setenv("S3_BUCKET", "parley-audio")
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !cfg.S3.Enabled() {
			t.Error("S3.Enabled() = false with bucket configured")
		}
		if !cfg.S3.LocalCache {
			t.Error("S3.LocalCache default should be true")
		}
	})
}
