package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/mozadev/docubot/internal/app"
)

var (
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

// runChat starts an interactive question answering loop. Answers stream to
// the terminal as they are generated; sources are printed afterwards.
func runChat() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := a.Sessions.Create(ctx, "Terminal chat")
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	printBanner()
	fmt.Printf("Session %s. Type /help for commands, /exit to quit.\n\n", sess.ID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err() // nil on Ctrl+D
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := runChatCommand(ctx, a, sess.ID, line)
			if err != nil {
				fmt.Println(failStyle.Render(err.Error()))
			}
			if done {
				return nil
			}
			continue
		}

		answer, err := a.Chat.AskStream(ctx, sess.ID, line,
			func(_ context.Context, chunk string) error {
				fmt.Print(chunk)
				return nil
			})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Println(failStyle.Render("error: " + err.Error()))
			continue
		}
		fmt.Println()
		printSources(answer)
		fmt.Println()
	}
}

// runChatCommand handles slash commands. Returns true when the loop should
// exit.
func runChatCommand(ctx context.Context, a *app.App, sessionID uuid.UUID, line string) (bool, error) {
	switch line {
	case "/exit", "/quit":
		fmt.Println("Bye.")
		return true, nil
	case "/clear":
		if err := a.Chat.ClearHistory(ctx, sessionID); err != nil {
			return false, fmt.Errorf("clearing history: %w", err)
		}
		fmt.Println(dimStyle.Render("History cleared."))
		return false, nil
	case "/summary":
		summary, err := a.Chat.Summary(ctx, sessionID)
		if err != nil {
			return false, fmt.Errorf("summarizing: %w", err)
		}
		fmt.Println(renderMarkdown(summary))
		return false, nil
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /summary         Summarize the conversation")
		fmt.Println("  /clear           Clear conversation history")
		fmt.Println("  /exit, /quit     Exit DocuBot")
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", line)
	}
}

func printBanner() {
	fmt.Println(bannerStyle.Render(`
  ____   ___   ____ _   _ ____   ___ _____
 |  _ \ / _ \ / ___| | | | __ ) / _ \_   _|
 | | | | | | | |   | | | |  _ \| | | || |
 | |_| | |_| | |___| |_| | |_) | |_| || |
 |____/ \___/ \____|\___/|____/ \___/ |_|
`))
	fmt.Println(dimStyle.Render("Chat with your documents."))
	fmt.Println()
}
