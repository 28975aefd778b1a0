package cmd

import (
	"context"
	"log"
	"log/slog"

	"gemini-chat/internal/config"
	"gemini-chat/internal/contextstore"
	"gemini-chat/internal/database"
	"gemini-chat/internal/storage"

	"gorm.io/gorm"
)

// LoadConfig loads the env file at envPath, parses the configuration and
// installs the logger.
func LoadConfig(envPath string) *config.Config {
	if err := config.LoadEnvFile(envPath); err != nil {
		log.Fatalf("%v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	config.SetupLogging(cfg.LogLevel)
	return cfg
}

// CreateContextStore returns a store that can read the configured context
// path, connecting to S3 when the path is an s3:// URL.
func CreateContextStore(ctx context.Context, cfg *config.Config) *contextstore.Store {
	if !cfg.UsesS3() {
		return contextstore.NewStore()
	}

	provider, err := storage.NewS3Provider(ctx, cfg.S3())
	if err != nil {
		// the store reports the missing getter as a load failure and chat continues
		slog.Error("failed to create S3 client for context data", "error", err)
		return contextstore.NewStore()
	}
	return contextstore.NewStore(contextstore.WithObjectGetter(provider))
}

func CreateDatabase() *gorm.DB {
	db, err := database.NewInMemoryDatabase()
	if err != nil {
		log.Fatalf("Failed to create session catalog: %v", err)
	}
	return db
}
