package chat

import (
	"fmt"
	"log/slog"

	"gemini-chat/internal/contextstore"
)

const contextInstruction = "The JSON above is optional background data. Use it only if it is relevant to the question; otherwise ignore it and answer normally."

// ComposePrompt returns the prompt sent to the model. With empty data it is
// userText unchanged.
func ComposePrompt(userText string, data contextstore.Data) string {
	if data.IsEmpty() {
		return userText
	}

	serialized, err := data.JSON()
	if err != nil {
		slog.Warn("context data could not be serialized, sending prompt without it", "error", err)
		return userText
	}

	return fmt.Sprintf("%s\n\nContext data:\n%s\n\n%s", userText, serialized, contextInstruction)
}
