package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gemini-chat/cmd"
	"gemini-chat/internal/chat"
	"gemini-chat/internal/llm"
	"gemini-chat/pkg/client"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

const (
	maxInputBytes = 1 << 20
	wordWrap      = 80
)

const (
	welcomeTitle    = "👋 Welcome!"
	welcomeSubtitle = "I'm your AI assistant, ready to help with questions, creative tasks, coding, and more.\nStart a conversation by typing your message below."
	commandsHelp    = "Commands: /reset starts over, /history shows the conversation, /quit exits."
	setupGuidance   = "💡 Please check your API key configuration (GEMINI_API_KEY in the environment or .env file) and try again."
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	subtleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var serverURL string

func addReplFlags(c *cobra.Command) {
	c.Flags().StringVar(&serverURL, "server", "", "chat server URL; when set the conversation is held by the server")
}

func newReplCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "repl",
		Short: "Chat interactively in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runRepl,
	}
	addReplFlags(c)
	return c
}

func runRepl(c *cobra.Command, args []string) error {
	cfg := cmd.LoadConfig(envPath)
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := c.OutOrStdout()

	var conv conversation
	var err error
	if serverURL != "" {
		conv, err = newRemoteConversation(ctx, client.New(serverURL))
	} else {
		store := cmd.CreateContextStore(ctx, cfg)
		conv, err = newLocalConversation(llm.EnvFactory(), store, cfg.ContextPath, chat.WithTimeout(cfg.Timeout))
	}
	if err != nil {
		printInitFailure(out, err)
		return err
	}
	defer func() {
		if err := conv.Close(context.Background()); err != nil {
			slog.Warn("error closing conversation", "error", err)
		}
	}()

	r := &repl{
		in:        c.InOrStdin(),
		out:       out,
		conv:      conv,
		renderer:  newRenderer(glamour.WithAutoStyle()),
		clearLine: isTerminal(out),
	}
	return r.run(ctx)
}

func printInitFailure(out io.Writer, err error) {
	fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("🚫 Failed to initialize chatbot: %v", err)))
	if isInitializationFailure(err) {
		fmt.Fprintln(out, subtleStyle.Render(setupGuidance))
	}
}

func newRenderer(style glamour.TermRendererOption) *glamour.TermRenderer {
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wordWrap))
	if err != nil {
		slog.Warn("markdown rendering unavailable, printing replies as plain text", "error", err)
		return nil
	}
	return renderer
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

type repl struct {
	in        io.Reader
	out       io.Writer
	conv      conversation
	renderer  *glamour.TermRenderer
	clearLine bool
}

func (r *repl) run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxInputBytes)

	r.printWelcome(ctx)

	for {
		fmt.Fprint(r.out, userStyle.Render("You › "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := scanner.Text()

		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := r.conv.Reset(ctx); err != nil {
				printInitFailure(r.out, err)
				if isInitializationFailure(err) {
					return err
				}
				continue
			}
			fmt.Fprintln(r.out, subtleStyle.Render("Started a new conversation."))
			r.printWelcome(ctx)
		case "/history":
			r.printHistory(ctx)
		case "/help":
			fmt.Fprintln(r.out, subtleStyle.Render(commandsHelp))
		default:
			r.send(ctx, line)
		}
	}
}

func (r *repl) send(ctx context.Context, text string) {
	fmt.Fprint(r.out, subtleStyle.Render("Thinking..."))
	reply, err := r.conv.Send(ctx, text)
	if r.clearLine {
		fmt.Fprint(r.out, "\r\033[2K")
	} else {
		fmt.Fprintln(r.out)
	}

	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render(fmt.Sprintf("⚠️ Error: %v", err)))
		return
	}

	fmt.Fprintln(r.out, assistantStyle.Render("Assistant"))
	fmt.Fprintln(r.out, r.render(reply))
}

func (r *repl) printWelcome(ctx context.Context) {
	history, err := r.conv.History(ctx)
	if err != nil || len(history) > 0 {
		return
	}
	fmt.Fprintln(r.out, titleStyle.Render(welcomeTitle))
	fmt.Fprintln(r.out, welcomeSubtitle)
	fmt.Fprintln(r.out, subtleStyle.Render(commandsHelp))
	fmt.Fprintln(r.out)
}

func (r *repl) printHistory(ctx context.Context) {
	history, err := r.conv.History(ctx)
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render(fmt.Sprintf("⚠️ Error: %v", err)))
		return
	}
	if len(history) == 0 {
		fmt.Fprintln(r.out, subtleStyle.Render("No messages yet."))
		return
	}

	for _, entry := range history {
		if entry.Role == string(chat.RoleUser) {
			fmt.Fprintln(r.out, userStyle.Render("You"))
			fmt.Fprintln(r.out, entry.Text)
		} else {
			fmt.Fprintln(r.out, assistantStyle.Render("Assistant"))
			fmt.Fprintln(r.out, r.render(entry.Text))
		}
	}
}

func (r *repl) render(text string) string {
	if r.renderer == nil {
		return text
	}
	rendered, err := r.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}
