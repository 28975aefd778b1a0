package main

import (
	"os"

	"github.com/spf13/cobra"
)

var envPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a Gemini model from the terminal or over HTTP",
		Long: `chat runs a conversation with a language model.

Each message can be augmented with a JSON document of background facts
(CONTEXT_PATH). The model provider is chosen with CHAT_PROVIDER and defaults
to Gemini, which needs GEMINI_API_KEY.

Run without a subcommand to start the interactive chat.`,
		SilenceUsage: true,
		RunE:         runRepl,
	}
	root.PersistentFlags().StringVar(&envPath, "env", "", "path to load env from (defaults to ./.env when present)")
	addReplFlags(root)

	root.AddCommand(newServeCmd(), newReplCmd())
	return root
}
