package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderLangChain = "langchain"
	ProviderMock      = "mock"
)

// Settings selects and configures a provider. Keys are read from the
// environment so the credential is resolved when a session is initialized.
type Settings struct {
	Provider     string   `env:"CHAT_PROVIDER" envDefault:"gemini"`
	Model        string   `env:"CHAT_MODEL"`
	GeminiAPIKey string   `env:"GEMINI_API_KEY"`
	OpenAIAPIKey string   `env:"OPENAI_API_KEY"`
	BaseURL      string   `env:"CHAT_BASE_URL"`
	Temperature  *float64 `env:"CHAT_TEMPERATURE"`
}

// Factory constructs a Client. It fails when the credential is missing or
// the vendor SDK rejects the configuration.
type Factory func() (Client, error)

// EnvFactory parses Settings from the process environment each time it is
// called.
func EnvFactory() Factory {
	return func() (Client, error) {
		var settings Settings
		if err := env.Parse(&settings); err != nil {
			return nil, fmt.Errorf("error parsing model settings: %w", err)
		}
		return NewClient(settings)
	}
}

func NewFactory(settings Settings) Factory {
	return func() (Client, error) {
		return NewClient(settings)
	}
}

func NewClient(settings Settings) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(settings.Provider))
	if provider == "" {
		provider = ProviderGemini
	}

	switch provider {
	case ProviderGemini:
		if strings.TrimSpace(settings.GeminiAPIKey) == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY: %w", ErrMissingCredential)
		}
		client, err := NewGeminiClient(GeminiConfig{
			APIKey:      settings.GeminiAPIKey,
			Model:       settings.Model,
			BaseURL:     settings.BaseURL,
			Temperature: settings.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderOpenAI:
		if strings.TrimSpace(settings.OpenAIAPIKey) == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY: %w", ErrMissingCredential)
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      settings.OpenAIAPIKey,
			Model:       settings.Model,
			BaseURL:     settings.BaseURL,
			Temperature: settings.Temperature,
		}), nil
	case ProviderLangChain:
		if strings.TrimSpace(settings.OpenAIAPIKey) == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY: %w", ErrMissingCredential)
		}
		client, err := NewLangChainClient(LangChainConfig{
			APIKey:      settings.OpenAIAPIKey,
			Model:       settings.Model,
			BaseURL:     settings.BaseURL,
			Temperature: settings.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderMock:
		slog.Warn("CHAT_PROVIDER=mock, replies are generated locally")
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, settings.Provider)
	}
}
