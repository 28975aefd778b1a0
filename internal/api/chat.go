package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gemini-chat/internal/chat"
	"gemini-chat/internal/database"
	"gemini-chat/pkg/api"
)

const historyTimeFormat = "2006-01-02 15:04:05"

type ChatService struct {
	manager  *chat.SessionManager
	provider string
}

func NewChatService(manager *chat.SessionManager, provider string) *ChatService {
	return &ChatService{
		manager:  manager,
		provider: provider,
	}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(s.Health))

	r.Route("/chat", func(r chi.Router) {
		r.Get("/sessions", RestHandler(s.GetSessions))
		r.Post("/sessions", RestHandler(s.StartSession))
		r.Get("/sessions/{session_id}", RestHandler(s.GetSession))
		r.Delete("/sessions/{session_id}", RestHandler(s.EndSession))
		r.Post("/sessions/{session_id}/rename", RestHandler(s.RenameSession))
		r.Post("/sessions/{session_id}/messages", RestHandler(s.SendMessage))
		r.Get("/sessions/{session_id}/history", RestHandler(s.GetHistory))
	})
}

func (s *ChatService) Health(r *http.Request) (any, error) {
	return api.HealthResponse{Status: "ok", Provider: s.provider}, nil
}

func (s *ChatService) GetSessions(r *http.Request) (any, error) {
	sessions, err := s.manager.Sessions(r.Context())
	if err != nil {
		return nil, CodedError(http.StatusInternalServerError, err)
	}

	resp := api.GetSessionsResponse{Sessions: make([]api.ChatSessionMetadata, 0, len(sessions))}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, convertSession(session))
	}
	return resp, nil
}

func (s *ChatService) StartSession(r *http.Request) (any, error) {
	var req api.StartSessionRequest
	if r.ContentLength != 0 {
		var err error
		if req, err = ParseRequest[api.StartSessionRequest](r); err != nil {
			return nil, err
		}
	}

	session, err := s.manager.StartSession(r.Context(), req.Title)
	if err != nil {
		return nil, sessionError(err)
	}

	return api.StartSessionResponse{SessionID: session.ID, Title: session.Title}, nil
}

func (s *ChatService) GetSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	session, err := s.manager.Session(r.Context(), sessionID)
	if err != nil {
		return nil, sessionError(err)
	}

	return convertSession(session), nil
}

func (s *ChatService) EndSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	if err := s.manager.EndSession(r.Context(), sessionID); err != nil {
		return nil, sessionError(err)
	}

	return nil, nil
}

func (s *ChatService) RenameSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.RenameSessionRequest](r)
	if err != nil {
		return nil, err
	}

	if err := s.manager.RenameSession(r.Context(), sessionID, req.Title); err != nil {
		return nil, sessionError(err)
	}

	return nil, nil
}

func (s *ChatService) SendMessage(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.ChatRequest](r)
	if err != nil {
		return nil, err
	}

	reply, err := s.manager.Send(r.Context(), sessionID, req.Message)
	if err != nil {
		return nil, sessionError(err)
	}

	return api.ChatResponse{Reply: reply.Text, Kind: reply.Kind.String(), Ok: reply.Ok()}, nil
}

func (s *ChatService) GetHistory(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.HistoryParams](r)
	if err != nil {
		return nil, err
	}
	if params.Offset < 0 || params.Limit < 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "offset and limit must not be negative")
	}

	history, err := s.manager.History(sessionID)
	if err != nil {
		return nil, sessionError(err)
	}

	resp := api.GetHistoryResponse{Messages: []api.ChatHistoryItem{}, Total: len(history)}
	for _, msg := range page(history, params.Offset, params.Limit) {
		resp.Messages = append(resp.Messages, api.ChatHistoryItem{
			Role:      string(msg.Role),
			Content:   msg.Text,
			Timestamp: msg.CreatedAt.Format(historyTimeFormat),
		})
	}

	return resp, nil
}

// page returns messages[offset:offset+limit], where a zero limit means no
// limit.
func page(messages []chat.Message, offset, limit int) []chat.Message {
	if offset >= len(messages) {
		return nil
	}
	messages = messages[offset:]
	if limit > 0 && limit < len(messages) {
		messages = messages[:limit]
	}
	return messages
}

func sessionError(err error) error {
	var initErr *chat.InitializationError
	switch {
	case errors.As(err, &initErr):
		return CodedError(http.StatusServiceUnavailable, err)
	case errors.Is(err, chat.ErrSessionNotFound):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, chat.ErrEmptyTitle):
		return CodedError(http.StatusBadRequest, err)
	default:
		return CodedError(http.StatusInternalServerError, err)
	}
}

func convertSession(session database.ChatSession) api.ChatSessionMetadata {
	return api.ChatSessionMetadata{
		ID:           session.ID,
		Title:        session.Title,
		Provider:     session.Provider,
		TurnCount:    session.TurnCount,
		CreatedAt:    session.CreatedAt,
		LastActiveAt: session.LastActiveAt,
	}
}
