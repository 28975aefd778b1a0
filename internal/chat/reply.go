package chat

import "gemini-chat/internal/llm"

// ReplyKind tags the outcome of Send so callers branch on it instead of
// inspecting errors.
type ReplyKind int

const (
	ReplyOK ReplyKind = iota
	ReplyEmptyInput
	ReplyPolicyBlocked
	ReplyInvalidArgument
	ReplyTimeout
	ReplyUnknown
)

const (
	EmptyInputReply      = "Please type a message so I can help you."
	PolicyBlockedReply   = "I can't respond to that request because it was blocked by the model's safety filters. Please try rephrasing it."
	InvalidArgumentReply = "The model could not process that request. Try shortening or rephrasing your message."
	TimeoutReply         = "The model took too long to respond. Please try again."
	UnknownErrorReply    = "Something went wrong while generating a response. Please try again."
)

type Reply struct {
	Kind ReplyKind
	Text string
}

func (r Reply) Ok() bool {
	return r.Kind == ReplyOK
}

func (k ReplyKind) String() string {
	switch k {
	case ReplyOK:
		return "ok"
	case ReplyEmptyInput:
		return "empty_input"
	case ReplyPolicyBlocked:
		return "policy_blocked"
	case ReplyInvalidArgument:
		return "invalid_argument"
	case ReplyTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

func (k ReplyKind) sentinel() string {
	switch k {
	case ReplyEmptyInput:
		return EmptyInputReply
	case ReplyPolicyBlocked:
		return PolicyBlockedReply
	case ReplyInvalidArgument:
		return InvalidArgumentReply
	case ReplyTimeout:
		return TimeoutReply
	default:
		return UnknownErrorReply
	}
}

func replyKindFor(kind llm.Kind) ReplyKind {
	switch kind {
	case llm.KindPolicyBlocked:
		return ReplyPolicyBlocked
	case llm.KindInvalidArgument:
		return ReplyInvalidArgument
	case llm.KindTimeout:
		return ReplyTimeout
	default:
		return ReplyUnknown
	}
}
