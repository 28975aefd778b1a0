package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type LangChainConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
}

// LangChainClient talks to any OpenAI compatible server (OpenRouter, Ollama,
// vLLM) through langchaingo.
type LangChainClient struct {
	llm   llms.Model
	model string
	temp  *float64
}

func NewLangChainClient(cfg LangChainConfig) (*LangChainClient, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create OpenAI client: %w", err)
	}

	return &LangChainClient{llm: client, model: model, temp: cfg.Temperature}, nil
}

func (c *LangChainClient) Generate(ctx context.Context, prompt string, prior []Turn) (string, error) {
	messages := make([]llms.MessageContent, 0, len(prior)+1)
	for _, turn := range prior {
		msgType := llms.ChatMessageTypeHuman
		if turn.Role == RoleAssistant {
			msgType = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(msgType, turn.Text))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	var callOpts []llms.CallOption
	if c.temp != nil {
		callOpts = append(callOpts, llms.WithTemperature(*c.temp))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		kind := classifyLangChainError(ctx, err)
		slog.Error("error calling langchain model", "model", c.model, "kind", kind, "error", err)
		return "", newGenerationError(ProviderLangChain, kind, err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", newGenerationError(ProviderLangChain, KindUnknown, ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	if choice.StopReason == "content_filter" {
		return "", newGenerationError(ProviderLangChain, KindPolicyBlocked, errors.New("completion stopped by content filter"))
	}

	text := strings.TrimSpace(choice.Content)
	if text == "" {
		return "", newGenerationError(ProviderLangChain, KindUnknown, ErrEmptyResponse)
	}
	return text, nil
}

// classifyLangChainError relies on the message text because langchaingo
// flattens HTTP failures into plain errors.
func classifyLangChainError(ctx context.Context, err error) Kind {
	if kind, ok := classifyTransport(ctx, err); ok {
		return kind
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "content_policy_violation") || strings.Contains(msg, "content_filter") || strings.Contains(msg, "content management policy"):
		return KindPolicyBlocked
	case strings.Contains(msg, "status code: 400") || strings.Contains(msg, "invalid_request_error"):
		return KindInvalidArgument
	case strings.Contains(msg, "status code: 408") || strings.Contains(msg, "status code: 504") || strings.Contains(msg, "timeout"):
		return KindTimeout
	default:
		return KindUnknown
	}
}
