package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
}

// GeminiClient implements Client with the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY: %w", ErrMissingCredential)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	var genCfg *genai.GenerateContentConfig
	if cfg.Temperature != nil {
		temp := float32(*cfg.Temperature)
		genCfg = &genai.GenerateContentConfig{Temperature: &temp}
	}

	return &GeminiClient{client: client, model: model, config: genCfg}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string, prior []Turn) (string, error) {
	contents := geminiContents(prompt, prior)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.config)
	if err != nil {
		kind := classifyGeminiError(ctx, err)
		slog.Error("gemini generate content failed", "model", c.model, "kind", kind, "error", err)
		return "", newGenerationError(ProviderGemini, kind, err)
	}

	if reason := geminiBlockReason(resp); reason != "" {
		return "", newGenerationError(ProviderGemini, KindPolicyBlocked, fmt.Errorf("response blocked: %s", reason))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", newGenerationError(ProviderGemini, KindUnknown, ErrEmptyResponse)
	}
	return text, nil
}

func geminiContents(prompt string, prior []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(prior)+1)
	for _, turn := range prior {
		var role genai.Role = genai.RoleUser
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return append(contents, genai.NewContentFromText(prompt, genai.RoleUser))
}

// geminiBlockReason reports why a response carries no usable text because
// of safety filtering, or "" when it was not blocked.
func geminiBlockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return ""
	}
	switch reason := resp.Candidates[0].FinishReason; reason {
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
		return string(reason)
	}
	return ""
}

func classifyGeminiError(ctx context.Context, err error) Kind {
	if kind, ok := classifyTransport(ctx, err); ok {
		return kind
	}

	code, status := 0, ""
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status = apiErr.Code, apiErr.Status
	case errors.As(err, &apiErrPtr):
		code, status = apiErrPtr.Code, apiErrPtr.Status
	default:
		return KindUnknown
	}

	switch {
	case status == "INVALID_ARGUMENT" || code == http.StatusBadRequest:
		return KindInvalidArgument
	case status == "DEADLINE_EXCEEDED" || code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		return KindTimeout
	default:
		return KindUnknown
	}
}
