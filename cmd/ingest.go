package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mozadev/docubot/internal/ingest"
)

// runIngest indexes a file, directory, or web page.
func runIngest(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docubot ingest <path|url>")
	}
	target := args[0]

	ctx, cancel := signalContext()
	defer cancel()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		chunks, err := a.Ingestor.IngestURL(ctx, target)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", target, err)
		}
		fmt.Printf("%s indexed %s (%d chunks, %s)\n",
			okStyle.Render("✓"), target, chunks, time.Since(start).Round(time.Millisecond))
		return nil
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("reading %s: %w", target, err)
	}

	if info.IsDir() {
		result, err := a.Ingestor.IngestDirectory(ctx, target)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", target, err)
		}
		printIngestResult(target, result)
		return nil
	}

	chunks, err := a.Ingestor.IngestFile(ctx, target)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", target, err)
	}
	fmt.Printf("%s indexed %s (%d chunks, %s)\n",
		okStyle.Render("✓"), target, chunks, time.Since(start).Round(time.Millisecond))
	return nil
}

func printIngestResult(dir string, r *ingest.Result) {
	fmt.Printf("%s indexed %s in %s\n", okStyle.Render("✓"), dir, r.Duration.Round(time.Millisecond))
	fmt.Printf("  files added:   %d\n", r.FilesAdded)
	fmt.Printf("  files skipped: %d\n", r.FilesSkipped)
	if r.FilesFailed > 0 {
		fmt.Printf("  files failed:  %s\n", failStyle.Render(fmt.Sprintf("%d", r.FilesFailed)))
	}
	fmt.Printf("  chunks:        %d\n", r.ChunksAdded)
	fmt.Printf("  total size:    %s\n", formatBytes(r.TotalSize))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// runWatch watches a directory and re-indexes files as they change.
func runWatch(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	dir := a.Config.DocsDir
	if len(args) > 0 {
		dir = args[0]
	}

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	watcher := ingest.NewWatcher(a.Ingestor, a.Logger, 0)
	if err := watcher.Watch(ctx, dir); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
