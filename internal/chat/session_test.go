package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gemini-chat/internal/contextstore"
	"gemini-chat/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	mu      sync.Mutex
	prompts []string
	priors  [][]llm.Turn

	respond func(ctx context.Context, prompt string) (string, error)

	active    atomic.Int32
	maxActive atomic.Int32
}

func (c *stubClient) Generate(ctx context.Context, prompt string, prior []llm.Turn) (string, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		peak := c.maxActive.Load()
		if n <= peak || c.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.priors = append(c.priors, append([]llm.Turn(nil), prior...))
	c.mu.Unlock()

	if c.respond == nil {
		return "ok", nil
	}
	return c.respond(ctx, prompt)
}

func (c *stubClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

func replying(text string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) {
		return text, nil
	}
}

func failing(err error) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) {
		return "", err
	}
}

func newTestSession(t *testing.T, client llm.Client, opts ...Option) *Session {
	t.Helper()
	session, err := Initialize(func() (llm.Client, error) { return client, nil }, opts...)
	require.NoError(t, err)
	return session
}

func TestInitialize_MissingCredential(t *testing.T) {
	session, err := Initialize(llm.NewFactory(llm.Settings{Provider: llm.ProviderGemini}))
	assert.Nil(t, session)

	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.ErrorIs(t, err, llm.ErrMissingCredential)
}

func TestInitialize_FactoryFailures(t *testing.T) {
	_, err := Initialize(nil)
	var initErr *InitializationError
	assert.ErrorAs(t, err, &initErr)

	_, err = Initialize(func() (llm.Client, error) { return nil, nil })
	assert.ErrorAs(t, err, &initErr)

	boom := errors.New("boom")
	_, err = Initialize(func() (llm.Client, error) { return nil, boom })
	assert.ErrorAs(t, err, &initErr)
	assert.ErrorIs(t, err, boom)
}

func TestInitialize_MockProvider(t *testing.T) {
	session, err := Initialize(llm.NewFactory(llm.Settings{Provider: llm.ProviderMock}))
	require.NoError(t, err)

	reply := session.Send(context.Background(), "hello", nil)
	assert.True(t, reply.Ok())
	assert.Contains(t, reply.Text, "hello")
}

func TestSend_ContextAugmentation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "Alice"}`), 0644))

	data, err := contextstore.NewStore().Load(context.Background(), path)
	require.NoError(t, err)

	client := &stubClient{respond: replying("Alice")}
	session := newTestSession(t, client)

	reply := session.Send(context.Background(), "What is my name?", data)
	assert.Equal(t, Reply{Kind: ReplyOK, Text: "Alice"}, reply)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "What is my name?")
	assert.Contains(t, client.prompts[0], `{"name":"Alice"}`)

	history := session.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "What is my name?", history[0].Text)
	assert.Equal(t, RoleAssistant, history[1].Role)
	assert.Equal(t, "Alice", history[1].Text)
}

func TestSend_InvalidContextSendsRawText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	data, err := contextstore.NewStore().Load(context.Background(), path)
	assert.ErrorIs(t, err, contextstore.ErrContextInvalid)
	assert.Equal(t, contextstore.Data{}, data)

	client := &stubClient{}
	session := newTestSession(t, client)

	reply := session.Send(context.Background(), "hi", data)
	assert.True(t, reply.Ok())
	require.Len(t, client.prompts, 1)
	assert.Equal(t, "hi", client.prompts[0])
}

func TestSend_MissingContextSendsRawText(t *testing.T) {
	data, err := contextstore.NewStore().Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, contextstore.ErrContextUnavailable)

	client := &stubClient{}
	session := newTestSession(t, client)

	for _, text := range []string{"hi", "  padded  ", "multi\nline"} {
		session.Send(context.Background(), text, data)
	}
	assert.Equal(t, []string{"hi", "  padded  ", "multi\nline"}, client.prompts)
}

func TestSend_PolicyBlocked(t *testing.T) {
	client := &stubClient{}
	session := newTestSession(t, client)
	session.Send(context.Background(), "first", nil)

	client.respond = failing(&llm.GenerationError{Kind: llm.KindPolicyBlocked, Provider: "stub", Err: errors.New("blocked")})

	reply := session.Send(context.Background(), "x", nil)
	assert.Equal(t, Reply{Kind: ReplyPolicyBlocked, Text: PolicyBlockedReply}, reply)
	assert.False(t, reply.Ok())
	assert.Len(t, session.History(), 2)
}

func TestSend_FailuresLeaveHistoryUnchanged(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ReplyKind
		text string
	}{
		{"invalid argument", &llm.GenerationError{Kind: llm.KindInvalidArgument, Err: errors.New("bad")}, ReplyInvalidArgument, InvalidArgumentReply},
		{"timeout", &llm.GenerationError{Kind: llm.KindTimeout, Err: errors.New("slow")}, ReplyTimeout, TimeoutReply},
		{"deadline", context.DeadlineExceeded, ReplyTimeout, TimeoutReply},
		{"unknown", errors.New("connection reset"), ReplyUnknown, UnknownErrorReply},
		{"empty response", llm.ErrEmptyResponse, ReplyUnknown, UnknownErrorReply},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := &stubClient{}
			session := newTestSession(t, client)
			session.Send(context.Background(), "before", nil)
			before := session.History()

			client.respond = failing(test.err)
			reply := session.Send(context.Background(), "during", nil)

			assert.Equal(t, Reply{Kind: test.kind, Text: test.text}, reply)
			assert.Equal(t, before, session.History())
		})
	}
}

func TestSend_BlankReplyIsFailure(t *testing.T) {
	client := &stubClient{respond: replying("  \n")}
	session := newTestSession(t, client)

	reply := session.Send(context.Background(), "hello", nil)
	assert.Equal(t, ReplyUnknown, reply.Kind)
	assert.Empty(t, session.History())
}

func TestSend_EmptyInput(t *testing.T) {
	client := &stubClient{}
	session := newTestSession(t, client)
	session.Send(context.Background(), "hello", nil)

	for _, text := range []string{"", "   ", "\t\n"} {
		reply := session.Send(context.Background(), text, contextstore.Data{"name": "Alice"})
		assert.Equal(t, Reply{Kind: ReplyEmptyInput, Text: EmptyInputReply}, reply)
	}

	assert.Equal(t, 1, client.calls())
	assert.Len(t, session.History(), 2)
}

func TestSend_HistoryGrowsByTwo(t *testing.T) {
	client := &stubClient{respond: func(_ context.Context, prompt string) (string, error) {
		return "re: " + prompt, nil
	}}
	session := newTestSession(t, client)

	inputs := []string{"one", "two", "three"}
	for i, text := range inputs {
		reply := session.Send(context.Background(), text, nil)
		require.True(t, reply.Ok())

		history := session.History()
		require.Len(t, history, 2*(i+1))
		assert.Equal(t, Message{Role: RoleUser, Text: text, CreatedAt: history[2*i].CreatedAt}, history[2*i])
		assert.Equal(t, Message{Role: RoleAssistant, Text: "re: " + text, CreatedAt: history[2*i+1].CreatedAt}, history[2*i+1])
	}
}

func TestSend_PriorTurnsUseRawText(t *testing.T) {
	client := &stubClient{respond: replying("noted")}
	session := newTestSession(t, client)
	data := contextstore.Data{"name": "Alice"}

	session.Send(context.Background(), "first", data)
	session.Send(context.Background(), "second", data)

	require.Len(t, client.priors, 2)
	assert.Empty(t, client.priors[0])
	assert.Equal(t, []llm.Turn{
		{Role: llm.RoleUser, Text: "first"},
		{Role: llm.RoleAssistant, Text: "noted"},
	}, client.priors[1])

	assert.True(t, strings.HasPrefix(client.prompts[1], "second\n\nContext data:\n"))
	assert.Equal(t, "first", session.History()[0].Text)
}

func TestSend_Timeout(t *testing.T) {
	client := &stubClient{respond: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	session := newTestSession(t, client, WithTimeout(20*time.Millisecond))

	reply := session.Send(context.Background(), "slow question", nil)
	assert.Equal(t, Reply{Kind: ReplyTimeout, Text: TimeoutReply}, reply)
	assert.Empty(t, session.History())
}

func TestSend_UsesClock(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	session := newTestSession(t, &stubClient{}, withClock(func() time.Time { return at }))

	session.Send(context.Background(), "hello", nil)
	for _, msg := range session.History() {
		assert.Equal(t, at, msg.CreatedAt)
	}
}

func TestHistory_ReturnsCopy(t *testing.T) {
	session := newTestSession(t, &stubClient{})
	session.Send(context.Background(), "hello", nil)

	history := session.History()
	history[0].Text = "changed"

	assert.Equal(t, "hello", session.History()[0].Text)
}

func TestSend_ConcurrentCallsAreSerialized(t *testing.T) {
	client := &stubClient{respond: func(context.Context, string) (string, error) {
		time.Sleep(2 * time.Millisecond)
		return "ok", nil
	}}
	session := newTestSession(t, client)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.Send(context.Background(), "hello", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), client.maxActive.Load())

	history := session.History()
	require.Len(t, history, 20)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, RoleUser, history[i].Role)
		assert.Equal(t, RoleAssistant, history[i+1].Role)
	}
}

func TestComposePrompt(t *testing.T) {
	assert.Equal(t, "hello", ComposePrompt("hello", nil))
	assert.Equal(t, "hello", ComposePrompt("hello", contextstore.Data{}))

	prompt := ComposePrompt("hello", contextstore.Data{"b": 2, "a": 1})
	assert.Equal(t, "hello\n\nContext data:\n{\"a\":1,\"b\":2}\n\n"+contextInstruction, prompt)
}

func TestReplyKindStrings(t *testing.T) {
	assert.Equal(t, "ok", ReplyOK.String())
	assert.Equal(t, "policy_blocked", ReplyPolicyBlocked.String())
	assert.Equal(t, "unknown", ReplyUnknown.String())
}
