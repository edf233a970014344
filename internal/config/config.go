package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	AudioDir  string `env:"AUDIO_DIR" envDefault:"./audio"`
	ImportDir string `env:"IMPORT_DIR"` // empty disables the import watcher

	// Capture input: path to a file or FIFO carrying signed 16-bit
	// little-endian mono PCM at 44100 Hz (e.g. fed by arecord).
	CaptureSource string `env:"CAPTURE_SOURCE"`

	TranscribeURL     string        `env:"TRANSCRIBE_URL" envDefault:"https://api.openai.com/v1/audio/transcriptions"`
	TranscribeModel   string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	TranscribeAPIKey  string        `env:"TRANSCRIBE_API_KEY"`
	TranscribeTimeout time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"120s"`

	AnalyzeURL    string `env:"ANALYZE_URL" envDefault:"https://api.openai.com/v1/chat/completions"`
	AnalyzeModel  string `env:"ANALYZE_MODEL" envDefault:"gpt-4o-mini"`
	AnalyzeAPIKey string `env:"ANALYZE_API_KEY"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	S3 S3Config
}

// S3Config configures the optional S3-compatible audio blob backend.
type S3Config struct {
	Endpoint   string `env:"S3_ENDPOINT"`
	Region     string `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket     string `env:"S3_BUCKET"`
	AccessKey  string `env:"S3_ACCESS_KEY"`
	SecretKey  string `env:"S3_SECRET_KEY"`
	LocalCache bool   `env:"S3_LOCAL_CACHE" envDefault:"true"`

	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
}

// Enabled reports whether an S3 backend is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	AudioDir    string
	ImportDir   string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.AudioDir != "" {
		cfg.AudioDir = overrides.AudioDir
	}
	if overrides.ImportDir != "" {
		cfg.ImportDir = overrides.ImportDir
	}

	return cfg, nil
}
