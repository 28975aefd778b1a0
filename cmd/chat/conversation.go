package main

import (
	"context"
	"errors"
	"net/http"

	"gemini-chat/internal/chat"
	"gemini-chat/internal/contextstore"
	"gemini-chat/internal/llm"
	"gemini-chat/pkg/client"

	"github.com/google/uuid"
)

type historyEntry struct {
	Role string
	Text string
}

// conversation is what the REPL drives: a session in this process or one
// held by a chat server.
type conversation interface {
	Send(ctx context.Context, text string) (string, error)
	History(ctx context.Context) ([]historyEntry, error)
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
}

type localConversation struct {
	factory     llm.Factory
	opts        []chat.Option
	store       *contextstore.Store
	contextPath string
	session     *chat.Session
}

func newLocalConversation(factory llm.Factory, store *contextstore.Store, contextPath string, opts ...chat.Option) (*localConversation, error) {
	session, err := chat.Initialize(factory, opts...)
	if err != nil {
		return nil, err
	}
	return &localConversation{
		factory:     factory,
		opts:        opts,
		store:       store,
		contextPath: contextPath,
		session:     session,
	}, nil
}

func (c *localConversation) Send(ctx context.Context, text string) (string, error) {
	data, _ := c.store.Load(ctx, c.contextPath)
	return c.session.Send(ctx, text, data).Text, nil
}

func (c *localConversation) History(ctx context.Context) ([]historyEntry, error) {
	messages := c.session.History()
	entries := make([]historyEntry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, historyEntry{Role: string(msg.Role), Text: msg.Text})
	}
	return entries, nil
}

func (c *localConversation) Reset(ctx context.Context) error {
	session, err := chat.Initialize(c.factory, c.opts...)
	if err != nil {
		return err
	}
	c.session = session
	return nil
}

func (c *localConversation) Close(ctx context.Context) error {
	return nil
}

type remoteConversation struct {
	client    *client.Client
	sessionID uuid.UUID
}

func newRemoteConversation(ctx context.Context, c *client.Client) (*remoteConversation, error) {
	started, err := c.StartSession(ctx, "")
	if err != nil {
		return nil, err
	}
	return &remoteConversation{client: c, sessionID: started.SessionID}, nil
}

func (c *remoteConversation) Send(ctx context.Context, text string) (string, error) {
	reply, err := c.client.SendMessage(ctx, c.sessionID, text)
	if err != nil {
		return "", err
	}
	return reply.Reply, nil
}

func (c *remoteConversation) History(ctx context.Context) ([]historyEntry, error) {
	history, err := c.client.History(ctx, c.sessionID)
	if err != nil {
		return nil, err
	}
	entries := make([]historyEntry, 0, len(history.Messages))
	for _, msg := range history.Messages {
		entries = append(entries, historyEntry{Role: msg.Role, Text: msg.Content})
	}
	return entries, nil
}

func (c *remoteConversation) Reset(ctx context.Context) error {
	if err := c.Close(ctx); err != nil {
		return err
	}
	started, err := c.client.StartSession(ctx, "")
	if err != nil {
		return err
	}
	c.sessionID = started.SessionID
	return nil
}

// Close ends the server session. A session the server already dropped is
// not an error.
func (c *remoteConversation) Close(ctx context.Context) error {
	err := c.client.EndSession(ctx, c.sessionID)
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return nil
	}
	return err
}

// isInitializationFailure reports whether err means no session could be
// created, locally or on the server.
func isInitializationFailure(err error) bool {
	var initErr *chat.InitializationError
	if errors.As(err, &initErr) {
		return true
	}
	var statusErr *client.StatusError
	return errors.As(err, &statusErr) && statusErr.Unavailable()
}
