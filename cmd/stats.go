package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
)

// runStats prints per-source chunk counts.
func runStats() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sources, err := a.Knowledge.Sources(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if len(sources) == 0 {
		fmt.Println("No documents indexed. Add some with `docubot ingest <path>`.")
		return nil
	}

	var total int64
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tCHUNKS")
	for _, s := range sources {
		fmt.Fprintf(w, "%s\t%d\n", s.Source, s.Chunks)
		total += s.Chunks
	}
	fmt.Fprintf(w, "TOTAL\t%d\n", total)
	return w.Flush()
}
