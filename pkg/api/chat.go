package api

import (
	"time"

	"github.com/google/uuid"
)

type StartSessionRequest struct {
	Title string `json:"title"`
}

type StartSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Title     string    `json:"title"`
}

type ChatSessionMetadata struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Provider     string    `json:"provider"`
	TurnCount    int       `json:"turn_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type GetSessionsResponse struct {
	Sessions []ChatSessionMetadata `json:"sessions"`
}

type RenameSessionRequest struct {
	Title string `json:"title"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the reply text. Kind is "ok" for a model answer and
// names the failure otherwise, in which case Reply is the fixed message for
// that failure.
type ChatResponse struct {
	Reply string `json:"reply"`
	Kind  string `json:"kind"`
	Ok    bool   `json:"ok"`
}

type HistoryParams struct {
	Offset int `schema:"offset"`
	Limit  int `schema:"limit"`
}

type ChatHistoryItem struct {
	Role      string `json:"role"` // "user" or "assistant"
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type GetHistoryResponse struct {
	Messages []ChatHistoryItem `json:"messages"`
	Total    int               `json:"total"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
}
