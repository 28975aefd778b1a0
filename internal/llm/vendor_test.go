package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeVendor serves a canned JSON response and records request bodies.
type fakeVendor struct {
	mu     sync.Mutex
	bodies []string
	status int
	body   string
	delay  time.Duration
}

func newFakeVendor(t *testing.T, status int, body string) (*fakeVendor, *httptest.Server) {
	t.Helper()
	fv := &fakeVendor{status: status, body: body}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		fv.mu.Lock()
		fv.bodies = append(fv.bodies, string(data))
		fv.mu.Unlock()

		if fv.delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(fv.delay):
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fv.status)
		_, _ = w.Write([]byte(fv.body))
	}))
	t.Cleanup(server.Close)
	return fv, server
}

func (fv *fakeVendor) lastBody(t *testing.T) string {
	t.Helper()
	fv.mu.Lock()
	defer fv.mu.Unlock()
	require.NotEmpty(t, fv.bodies)
	return fv.bodies[len(fv.bodies)-1]
}

func assertInOrder(t *testing.T, body string, parts ...string) {
	t.Helper()
	last := -1
	for _, part := range parts {
		idx := strings.Index(body, part)
		require.GreaterOrEqual(t, idx, 0, "missing %q in request body", part)
		assert.Greater(t, idx, last, "%q out of order in request body", part)
		last = idx
	}
}

var priorTurns = []Turn{
	{Role: RoleUser, Text: "first question"},
	{Role: RoleAssistant, Text: "first answer"},
}

const (
	geminiOK = `{"candidates":[{"content":{"role":"model","parts":[{"text":"Alice"}]},"finishReason":"STOP","index":0}]}`

	openAIOK = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
		"choices":[{"index":0,"message":{"role":"assistant","content":"Alice"},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`
)

func TestGeminiClient_Generate(t *testing.T) {
	fv, server := newFakeVendor(t, http.StatusOK, geminiOK)

	client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	reply, err := client.Generate(context.Background(), "What is my name?", priorTurns)
	require.NoError(t, err)
	assert.Equal(t, "Alice", reply)

	body := fv.lastBody(t)
	assertInOrder(t, body, "first question", "first answer", "What is my name?")
	assert.Contains(t, body, `"model"`)
}

func TestGeminiContents_Roles(t *testing.T) {
	contents := geminiContents("What is my name?", priorTurns)
	require.Len(t, contents, 3)

	assert.Equal(t, string(genai.RoleUser), string(contents[0].Role))
	assert.Equal(t, "first question", contents[0].Parts[0].Text)
	assert.Equal(t, string(genai.RoleModel), string(contents[1].Role))
	assert.Equal(t, "first answer", contents[1].Parts[0].Text)
	assert.Equal(t, string(genai.RoleUser), string(contents[2].Role))
	assert.Equal(t, "What is my name?", contents[2].Parts[0].Text)
}

func TestGeminiClient_PromptBlocked(t *testing.T) {
	_, server := newFakeVendor(t, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`)

	client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Equal(t, KindPolicyBlocked, KindOf(err))
}

func TestGeminiClient_CandidateSafetyStop(t *testing.T) {
	_, server := newFakeVendor(t, http.StatusOK, `{"candidates":[{"finishReason":"SAFETY","index":0}]}`)

	client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x", nil)
	assert.Equal(t, KindPolicyBlocked, KindOf(err))
}

func TestGeminiClient_InvalidArgument(t *testing.T) {
	_, server := newFakeVendor(t, http.StatusBadRequest,
		`{"error":{"code":400,"message":"Request contains an invalid argument.","status":"INVALID_ARGUMENT"}}`)

	client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestGeminiClient_Timeout(t *testing.T) {
	fv, server := newFakeVendor(t, http.StatusOK, geminiOK)
	fv.delay = 2 * time.Second

	client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Generate(ctx, "x", nil)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestGeminiClient_EmptyReply(t *testing.T) {
	_, server := newFakeVendor(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"  "}]},"finishReason":"STOP","index":0}]}`)

	client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, KindUnknown, KindOf(err))
}

func TestOpenAIClient_Generate(t *testing.T) {
	fv, server := newFakeVendor(t, http.StatusOK, openAIOK)

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})

	reply, err := client.Generate(context.Background(), "What is my name?", priorTurns)
	require.NoError(t, err)
	assert.Equal(t, "Alice", reply)

	body := fv.lastBody(t)
	assertInOrder(t, body, "first question", "first answer", "What is my name?")
	assert.Contains(t, body, DefaultOpenAIModel)
}

func TestOpenAIClient_ContentFilter(t *testing.T) {
	_, server := newFakeVendor(t, http.StatusOK, `{"id":"chatcmpl-2","object":"chat.completion","created":1,"model":"gpt-4o-mini",
		"choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"content_filter"}]}`)

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})

	_, err := client.Generate(context.Background(), "x", nil)
	assert.Equal(t, KindPolicyBlocked, KindOf(err))
}

func TestOpenAIClient_PolicyViolation(t *testing.T) {
	_, server := newFakeVendor(t, http.StatusBadRequest,
		`{"error":{"message":"Your request was rejected by the safety system.","type":"invalid_request_error","param":null,"code":"content_policy_violation"}}`)

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})

	_, err := client.Generate(context.Background(), "x", nil)
	assert.Equal(t, KindPolicyBlocked, KindOf(err))
}

func TestOpenAIClient_InvalidArgument(t *testing.T) {
	_, server := newFakeVendor(t, http.StatusBadRequest,
		`{"error":{"message":"Invalid value for 'temperature'.","type":"invalid_request_error","param":"temperature","code":"invalid_value"}}`)

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})

	_, err := client.Generate(context.Background(), "x", nil)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestOpenAIClient_Timeout(t *testing.T) {
	fv, server := newFakeVendor(t, http.StatusOK, openAIOK)
	fv.delay = 2 * time.Second

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, "x", nil)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestLangChainClient_Generate(t *testing.T) {
	fv, server := newFakeVendor(t, http.StatusOK, openAIOK)

	client, err := NewLangChainClient(LangChainConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	reply, err := client.Generate(context.Background(), "What is my name?", priorTurns)
	require.NoError(t, err)
	assert.Equal(t, "Alice", reply)

	assertInOrder(t, fv.lastBody(t), "first question", "first answer", "What is my name?")
}

func TestLangChainClient_InvalidArgument(t *testing.T) {
	_, server := newFakeVendor(t, http.StatusBadRequest,
		`{"error":{"message":"invalid_request_error: bad temperature","type":"invalid_request_error","code":"invalid_value"}}`)

	client, err := NewLangChainClient(LangChainConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestClassifyLangChainError(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, KindPolicyBlocked, classifyLangChainError(ctx, assertErr("API returned unexpected status code: 400: content_policy_violation")))
	assert.Equal(t, KindInvalidArgument, classifyLangChainError(ctx, assertErr("API returned unexpected status code: 400: bad")))
	assert.Equal(t, KindTimeout, classifyLangChainError(ctx, assertErr("API returned unexpected status code: 504: upstream")))
	assert.Equal(t, KindUnknown, classifyLangChainError(ctx, assertErr("API returned unexpected status code: 500: oops")))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
