package llm

import (
	"context"
	"fmt"
)

// MockClient answers locally without a network call. It is selected with
// CHAT_PROVIDER=mock for development.
type MockClient struct{}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, prompt string, prior []Turn) (string, error) {
	select {
	case <-ctx.Done():
		return "", newGenerationError(ProviderMock, KindTimeout, ctx.Err())
	default:
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is turn %d of the conversation.", truncate(prompt, 100), len(prior)/2+1), nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

var (
	_ Client = (*GeminiClient)(nil)
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*LangChainClient)(nil)
)
