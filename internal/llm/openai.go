package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultOpenAIModel = "gpt-4o-mini"

type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
}

// OpenAIClient implements Client with the official OpenAI SDK.
type OpenAIClient struct {
	client openai.Client
	model  string
	temp   *float64
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(withTrailingSlash(cfg.BaseURL)))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
		temp:   cfg.Temperature,
	}
}

func (o *OpenAIClient) Generate(ctx context.Context, prompt string, prior []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(prior)+1)
	for _, turn := range prior {
		if turn.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Text))
		} else {
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    o.model,
	}
	if o.temp != nil {
		params.Temperature = openai.Float(*o.temp)
	}

	res, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		kind := classifyOpenAIError(ctx, err)
		slog.Error("openai error: chat completions failed", "model", o.model, "kind", kind, "error", err)
		return "", newGenerationError(ProviderOpenAI, kind, err)
	}

	if len(res.Choices) == 0 {
		return "", newGenerationError(ProviderOpenAI, KindUnknown, ErrEmptyResponse)
	}

	choice := res.Choices[0]
	if string(choice.FinishReason) == "content_filter" {
		return "", newGenerationError(ProviderOpenAI, KindPolicyBlocked, errors.New("completion stopped by content filter"))
	}

	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", newGenerationError(ProviderOpenAI, KindUnknown, ErrEmptyResponse)
	}
	return text, nil
}

func classifyOpenAIError(ctx context.Context, err error) Kind {
	if kind, ok := classifyTransport(ctx, err); ok {
		return kind
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return KindUnknown
	}

	switch {
	case apiErr.Code == "content_policy_violation" || apiErr.Code == "content_filter":
		return KindPolicyBlocked
	case apiErr.StatusCode == http.StatusBadRequest:
		return KindInvalidArgument
	case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnknown
	}
}

func withTrailingSlash(url string) string {
	if strings.HasSuffix(url, "/") {
		return url
	}
	return fmt.Sprintf("%s/", url)
}
