package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
)

// runSessions lists or deletes conversations.
func runSessions(args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	switch sub {
	case "list":
		sessions, err := a.Sessions.List(ctx, 100, 0)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions yet. Start one with `docubot chat`.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Title, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()

	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: docubot sessions delete <id>")
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", args[1], err)
		}
		if err := a.Sessions.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		fmt.Printf("%s deleted %s\n", okStyle.Render("✓"), id)
		return nil

	default:
		return fmt.Errorf("unknown subcommand: sessions %s (use list or delete)", sub)
	}
}
