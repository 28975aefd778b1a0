package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemini-chat/cmd"
	"gemini-chat/internal/api"
	"gemini-chat/internal/chat"
	"gemini-chat/internal/config"
	"gemini-chat/internal/llm"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
)

// requests wait for the model, so the handler budget sits above the model timeout
const requestTimeoutSlack = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(c *cobra.Command, args []string) error {
	log.Println("Starting chat server...")

	cfg := cmd.LoadConfig(envPath)
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store := cmd.CreateContextStore(ctx, cfg)
	// load once up front so a bad context file is reported at startup
	_, _ = store.Load(ctx, cfg.ContextPath)

	manager := chat.NewSessionManager(chat.ManagerConfig{
		DB:             cmd.CreateDatabase(),
		Factory:        llm.EnvFactory(),
		Store:          store,
		ContextPath:    cfg.ContextPath,
		Provider:       cfg.Model.Provider,
		MaxSessions:    cfg.MaxSessions,
		SessionOptions: []chat.Option{chat.WithTimeout(cfg.Timeout)},
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newRouter(api.NewChatService(manager, cfg.Model.Provider), cfg),
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "provider", cfg.Model.Provider, "context_path", cfg.ContextPath)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
	return nil
}

func newRouter(service *api.ChatService, cfg *config.Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout + requestTimeoutSlack))

	r.Route("/api/v1", func(r chi.Router) {
		service.AddRoutes(r)
	})

	return r
}
