// Package llm is the boundary to hosted language model APIs. Each adapter
// turns one prompt plus the prior turns of a conversation into one reply.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message replayed to the model as conversation context.
type Turn struct {
	Role Role
	Text string
}

// Client generates a reply for prompt as the next turn after prior.
// Adapters return a *GenerationError when they can tell why a call failed.
type Client interface {
	Generate(ctx context.Context, prompt string, prior []Turn) (string, error)
}

type Kind int

const (
	KindUnknown Kind = iota
	KindPolicyBlocked
	KindInvalidArgument
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindPolicyBlocked:
		return "policy_blocked"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

type GenerationError struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s generation failed: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s generation failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func newGenerationError(provider string, kind Kind, err error) error {
	return &GenerationError{Kind: kind, Provider: provider, Err: err}
}

var (
	ErrMissingCredential = errors.New("api key not configured")
	ErrUnknownProvider   = errors.New("unknown model provider")
	ErrEmptyResponse     = errors.New("model returned an empty response")
)

// KindOf classifies err. Errors not produced by an adapter are unknown unless
// they are deadline or network timeouts.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var genErr *GenerationError
	if errors.As(err, &genErr) && genErr.Kind != KindUnknown {
		return genErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindUnknown
}

// classifyTransport handles the failures every adapter shares: an expired
// context or a network timeout.
func classifyTransport(ctx context.Context, err error) (Kind, bool) {
	if ctx.Err() != nil {
		return KindTimeout, true
	}
	if kind := KindOf(err); kind == KindTimeout {
		return kind, true
	}
	return KindUnknown, false
}
