// Package client talks to the chat server over HTTP.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gemini-chat/pkg/api"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	defaultTimeout = 90 * time.Second
	apiPrefix      = "/api/v1"
)

// StatusError is returned when the server answers with a non 2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Unavailable reports whether the server could not initialize a session,
// usually because the model credential is missing.
func (e *StatusError) Unavailable() bool {
	return e.Code == http.StatusServiceUnavailable
}

type Client struct {
	client *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

func (c *Client) StartSession(ctx context.Context, title string) (api.StartSessionResponse, error) {
	var out api.StartSessionResponse
	err := c.do(ctx, http.MethodPost, "/chat/sessions", api.StartSessionRequest{Title: title}, &out)
	return out, err
}

func (c *Client) Sessions(ctx context.Context) ([]api.ChatSessionMetadata, error) {
	var out api.GetSessionsResponse
	if err := c.do(ctx, http.MethodGet, "/chat/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) SendMessage(ctx context.Context, sessionID uuid.UUID, message string) (api.ChatResponse, error) {
	var out api.ChatResponse
	err := c.do(ctx, http.MethodPost, "/chat/sessions/"+sessionID.String()+"/messages", api.ChatRequest{Message: message}, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, sessionID uuid.UUID) (api.GetHistoryResponse, error) {
	var out api.GetHistoryResponse
	err := c.do(ctx, http.MethodGet, "/chat/sessions/"+sessionID.String()+"/history", nil, &out)
	return out, err
}

func (c *Client) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/chat/sessions/"+sessionID.String(), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.client.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	res, err := req.Execute(method, apiPrefix+path)
	if err != nil {
		return fmt.Errorf("error calling %s %s: %w", method, path, err)
	}

	if !res.IsSuccess() {
		return &StatusError{Code: res.StatusCode(), Message: strings.TrimSpace(res.String())}
	}
	return nil
}
