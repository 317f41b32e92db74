package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mozadev/docubot/internal/app"
	"github.com/mozadev/docubot/internal/chat"
)

const sessionTitleMax = 80

// runAsk answers a single question and exits.
func runAsk(args []string) error {
	askFlags := flag.NewFlagSet("ask", flag.ContinueOnError)
	askFlags.SetOutput(os.Stderr)
	sessionFlag := askFlags.String("session", "", "Existing session ID to continue")
	if err := askFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing ask flags: %w", err)
	}

	question := strings.TrimSpace(strings.Join(askFlags.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: docubot ask [--session <id>] <question>")
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sessionID, err := resolveSessionID(ctx, a, *sessionFlag, question)
	if err != nil {
		return err
	}

	answer, err := a.Chat.Ask(ctx, sessionID, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(renderMarkdown(answer.Text))
	printSources(answer)
	return nil
}

// resolveSessionID parses an explicit session ID or creates a session
// titled after the question.
func resolveSessionID(ctx context.Context, a *app.App, explicit, question string) (uuid.UUID, error) {
	if explicit != "" {
		id, err := uuid.Parse(explicit)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid session ID %q: %w", explicit, err)
		}
		if _, err := a.Sessions.Get(ctx, id); err != nil {
			return uuid.Nil, fmt.Errorf("loading session %s: %w", explicit, err)
		}
		return id, nil
	}

	sess, err := a.Sessions.Create(ctx, sessionTitle(question))
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating session: %w", err)
	}
	return sess.ID, nil
}

func printSources(answer *chat.Answer) {
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(dimStyle.Render("Sources:"))
	for i, src := range answer.Sources {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  [%d] %s (%.2f)", i+1, src.Filename, src.Score)))
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("Confidence: %.2f", answer.Confidence)))
}

func sessionTitle(question string) string {
	if utf8.RuneCountInString(question) <= sessionTitleMax {
		return question
	}
	runes := []rune(question)
	return string(runes[:sessionTitleMax])
}
