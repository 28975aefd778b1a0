package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"gemini-chat/internal/llm"
	"gemini-chat/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

type Config struct {
	Model llm.Settings

	ContextPath string        `env:"CONTEXT_PATH" envDefault:"data/context.json"`
	Timeout     time.Duration `env:"CHAT_TIMEOUT" envDefault:"60s"`
	Port        string        `env:"PORT" envDefault:"3001"`
	MaxSessions int           `env:"MAX_SESSIONS" envDefault:"100"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
}

// LoadEnvFile loads variables from path into the process environment. With
// an empty path ./.env is loaded when it exists. Variables that are already
// set are not overridden.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			log.Printf("no env file specified, using os.Environ only")
			return nil
		}
		path = defaultEnvFile
	}

	log.Printf("loading env from file %s", path)
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file '%s': %w", path, err)
	}
	return nil
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.S3EndpointURL != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}

	return &cfg, nil
}

func (cfg *Config) S3() *storage.S3ProviderConfig {
	return &storage.S3ProviderConfig{
		S3EndpointURL:     cfg.S3EndpointURL,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		S3Region:          cfg.S3Region,
	}
}

// UsesS3 reports whether the context path points at an object store.
func (cfg *Config) UsesS3() bool {
	return strings.HasPrefix(cfg.ContextPath, "s3://")
}

func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	return l, nil
}

// SetupLogging installs the default slog logger on stderr at the given level.
func SetupLogging(level string) {
	l, err := ParseLogLevel(level)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	slog.SetDefault(slog.New(handler))
	if err != nil {
		slog.Warn("falling back to info logging", "error", err)
	}
}
