package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gemini-chat/internal/contextstore"
	"gemini-chat/internal/database"
	"gemini-chat/internal/llm"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultMaxSessions  = 100
	DefaultSessionTitle = "New Chat"
)

var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrEmptyTitle      = errors.New("session title must not be empty")
)

type ManagerConfig struct {
	DB          *gorm.DB
	Factory     llm.Factory
	Store       *contextstore.Store
	ContextPath string
	Provider    string
	MaxSessions int
	// SessionOptions are applied to every session the manager starts.
	SessionOptions []Option
}

// SessionManager runs many independent sessions for the HTTP surface. Live
// sessions sit in a bounded cache and each one has a catalog row.
type SessionManager struct {
	db          *gorm.DB
	factory     llm.Factory
	store       *contextstore.Store
	contextPath string
	provider    string
	opts        []Option
	cache       *SessionCache
}

func NewSessionManager(cfg ManagerConfig) *SessionManager {
	store := cfg.Store
	if store == nil {
		store = contextstore.NewStore()
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	manager := &SessionManager{
		db:          cfg.DB,
		factory:     cfg.Factory,
		store:       store,
		contextPath: cfg.ContextPath,
		provider:    cfg.Provider,
		opts:        cfg.SessionOptions,
	}
	manager.cache = NewSessionCache(maxSessions, manager.evicted)
	return manager
}

// StartSession initializes a new session. Initialization failures are
// returned as *InitializationError and nothing is recorded.
func (manager *SessionManager) StartSession(ctx context.Context, title string) (database.ChatSession, error) {
	session, err := Initialize(manager.factory, manager.opts...)
	if err != nil {
		slog.Error("error initializing chat session", "provider", manager.provider, "error", err)
		return database.ChatSession{}, err
	}

	if strings.TrimSpace(title) == "" {
		title = DefaultSessionTitle
	}

	now := time.Now().UTC()
	record := database.ChatSession{
		ID:           uuid.New(),
		Title:        title,
		Provider:     manager.provider,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := database.CreateSession(ctx, manager.db, &record); err != nil {
		slog.Error("error creating chat session record", "error", err)
		return database.ChatSession{}, fmt.Errorf("error creating chat session: %w", err)
	}

	manager.cache.Add(record.ID, session)
	slog.Info("chat session started", "session_id", record.ID, "provider", manager.provider)

	return record, nil
}

func (manager *SessionManager) Sessions(ctx context.Context) ([]database.ChatSession, error) {
	sessions, err := database.GetSessions(ctx, manager.db)
	if err != nil {
		return nil, fmt.Errorf("error listing chat sessions: %w", err)
	}
	return sessions, nil
}

func (manager *SessionManager) Session(ctx context.Context, sessionID uuid.UUID) (database.ChatSession, error) {
	record, err := database.GetSession(ctx, manager.db, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.ChatSession{}, ErrSessionNotFound
		}
		return database.ChatSession{}, fmt.Errorf("error getting chat session: %w", err)
	}
	return record, nil
}

func (manager *SessionManager) RenameSession(ctx context.Context, sessionID uuid.UUID, title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	if err := database.UpdateSessionTitle(ctx, manager.db, sessionID, title); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("error renaming chat session: %w", err)
	}
	return nil
}

func (manager *SessionManager) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	if !manager.cache.Remove(sessionID) {
		return ErrSessionNotFound
	}
	if err := database.DeleteSession(ctx, manager.db, sessionID); err != nil {
		return fmt.Errorf("error deleting chat session: %w", err)
	}
	slog.Info("chat session ended", "session_id", sessionID)
	return nil
}

// Send runs one turn on the session with the configured context data. The
// returned error is only set when the session does not exist.
func (manager *SessionManager) Send(ctx context.Context, sessionID uuid.UUID, userText string) (Reply, error) {
	session, ok := manager.cache.Get(sessionID)
	if !ok {
		return Reply{}, ErrSessionNotFound
	}

	reply := session.Send(ctx, userText, manager.ContextData(ctx))
	if reply.Ok() {
		err := database.RecordTurn(ctx, manager.db, sessionID, time.Now())
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// evicted while the turn was in flight
			slog.Debug("chat session removed before turn was recorded", "session_id", sessionID)
		case err != nil:
			slog.Warn("error recording chat turn", "session_id", sessionID, "error", err)
		}
	}
	return reply, nil
}

func (manager *SessionManager) History(sessionID uuid.UUID) ([]Message, error) {
	session, ok := manager.cache.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.History(), nil
}

// ContextData returns the context data for the configured path, or empty
// data when it cannot be loaded.
func (manager *SessionManager) ContextData(ctx context.Context) contextstore.Data {
	data, _ := manager.store.Load(ctx, manager.contextPath)
	return data
}

func (manager *SessionManager) evicted(sessionID uuid.UUID) {
	slog.Info("evicting least recently used chat session", "session_id", sessionID)
	if err := database.DeleteSession(context.Background(), manager.db, sessionID); err != nil {
		slog.Error("error deleting evicted chat session", "session_id", sessionID, "error", err)
	}
}
