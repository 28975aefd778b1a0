// Package chat holds the conversation contract: a Session owns the turn
// history and the model client, and Send runs one turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gemini-chat/internal/contextstore"
	"gemini-chat/internal/llm"
)

const DefaultTimeout = 60 * time.Second

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one recorded turn half. Messages are never modified after they
// are appended.
type Message struct {
	Role      Role
	Text      string
	CreatedAt time.Time
}

type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("failed to initialize chat session: %v", e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

type Session struct {
	mu      sync.Mutex
	client  llm.Client
	history []Message
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Session)

// WithTimeout bounds each model call. Zero or negative disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		s.timeout = timeout
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Initialize builds the model client through factory. Any failure is
// returned as *InitializationError and the session must not be used.
func Initialize(factory llm.Factory, opts ...Option) (*Session, error) {
	if factory == nil {
		return nil, &InitializationError{Err: errors.New("no model client factory provided")}
	}

	client, err := factory()
	if err != nil {
		return nil, &InitializationError{Err: err}
	}
	if client == nil {
		return nil, &InitializationError{Err: errors.New("model client factory returned no client")}
	}

	s := &Session{
		client:  client,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send runs one turn. History grows by a user and an assistant message only
// when the model replies; every other outcome leaves it untouched. Calls on
// one session are serialized.
func (s *Session) Send(ctx context.Context, userText string, data contextstore.Data) Reply {
	if strings.TrimSpace(userText) == "" {
		return Reply{Kind: ReplyEmptyInput, Text: EmptyInputReply}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prompt := ComposePrompt(userText, data)
	prior := s.turns()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.client.Generate(ctx, prompt, prior)
	if err == nil && strings.TrimSpace(text) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		kind := replyKindFor(llm.KindOf(err))
		slog.Error("error generating response", "kind", kind, "prior_turns", len(prior), "duration", time.Since(start), "error", err)
		return Reply{Kind: kind, Text: kind.sentinel()}
	}

	now := s.now()
	s.history = append(s.history,
		Message{Role: RoleUser, Text: userText, CreatedAt: now},
		Message{Role: RoleAssistant, Text: text, CreatedAt: now},
	)
	slog.Debug("chat turn completed", "augmented", !data.IsEmpty(), "history", len(s.history), "duration", time.Since(start))

	return Reply{Kind: ReplyOK, Text: text}
}

// History returns a copy of the recorded messages in order.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) turns() []llm.Turn {
	turns := make([]llm.Turn, 0, len(s.history))
	for _, msg := range s.history {
		role := llm.RoleUser
		if msg.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Turn{Role: role, Text: msg.Text})
	}
	return turns
}
