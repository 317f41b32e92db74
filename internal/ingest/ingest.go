// Package ingest loads documents into the knowledge store.
//
// Files and URLs are chunked by a document.Processor, embedded and upserted.
// Re-ingesting a source first removes its previous chunks so the store never
// holds stale duplicates.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/mozadev/docubot/internal/document"
	"github.com/mozadev/docubot/internal/knowledge"
)

// urlFetchTimeout bounds article download during URL ingestion.
const urlFetchTimeout = 30 * time.Second

// defaultConcurrency is how many files are embedded in parallel during
// directory ingestion. Embedding is network-bound, so a small pool keeps
// throughput up without hammering the provider's rate limits.
const defaultConcurrency = 4

// Store is the storage surface the ingestor depends on.
// *knowledge.Store satisfies it.
type Store interface {
	Add(ctx context.Context, doc knowledge.Document) error
	DeleteBySource(ctx context.Context, source string) (int64, error)
}

// Result summarizes a directory ingestion run.
type Result struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	ChunksAdded  int
	TotalSize    int64
	Duration     time.Duration
}

// Ingestor chunks documents and writes them to the knowledge store.
type Ingestor struct {
	store       Store
	processor   *document.Processor
	logger      *slog.Logger
	concurrency int
}

// New creates an Ingestor. concurrency <= 0 selects the default pool size.
func New(store Store, processor *document.Processor, logger *slog.Logger, concurrency int) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Ingestor{
		store:       store,
		processor:   processor,
		logger:      logger,
		concurrency: concurrency,
	}
}

// IngestFile chunks and stores a single file, replacing any chunks from a
// previous ingestion of the same path. Returns the number of chunks stored.
// A file that yields no text is a no-op.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	chunks, err := ing.processor.Process(absPath)
	if err != nil {
		return 0, fmt.Errorf("processing %s: %w", absPath, err)
	}
	if len(chunks) == 0 {
		ing.logger.Debug("no text extracted, skipping", "path", absPath)
		return 0, nil
	}

	return ing.storeChunks(ctx, absPath, chunks)
}

// IngestURL downloads a web page, extracts its readable article text and
// stores the chunks under the URL as source.
func (ing *Ingestor) IngestURL(ctx context.Context, pageURL string) (int, error) {
	article, err := readability.FromURL(pageURL, urlFetchTimeout)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", pageURL, err)
	}

	text := article.TextContent
	if article.Title != "" {
		text = article.Title + "\n\n" + text
	}

	chunks := ing.processor.ProcessText(text, pageURL)
	if len(chunks) == 0 {
		ing.logger.Debug("no article text extracted, skipping", "url", pageURL)
		return 0, nil
	}

	return ing.storeChunks(ctx, pageURL, chunks)
}

// storeChunks replaces the source's previous chunks with the new set.
func (ing *Ingestor) storeChunks(ctx context.Context, source string, chunks []document.Chunk) (int, error) {
	if _, err := ing.store.DeleteBySource(ctx, source); err != nil {
		return 0, fmt.Errorf("removing previous chunks of %s: %w", source, err)
	}

	for _, chunk := range chunks {
		doc := knowledge.Document{
			ID:       chunk.ID,
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
		}
		if err := ing.store.Add(ctx, doc); err != nil {
			return 0, fmt.Errorf("storing chunk %s: %w", chunk.ID, err)
		}
	}

	ing.logger.Info("ingested source", "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestDirectory walks dir and ingests every supported file, honoring a
// .gitignore at the directory root. Files are processed concurrently;
// individual failures are counted, not fatal.
func (ing *Ingestor) IngestDirectory(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving directory: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absDir)
	}

	// A malformed .gitignore is ignored rather than failing the run.
	var gitIgnore *ignore.GitIgnore
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(absDir, ".gitignore")); err == nil {
		gitIgnore = gi
	}

	result := &Result{}
	var paths []string
	var sizes []int64

	walkErr := filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.FilesFailed++
			return nil
		}

		relPath, err := filepath.Rel(absDir, path)
		if err != nil {
			result.FilesFailed++
			return nil
		}

		if gitIgnore != nil && relPath != "." && gitIgnore.MatchesPath(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			result.FilesSkipped++
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !document.Supported(path) {
			result.FilesSkipped++
			return nil
		}

		paths = append(paths, path)
		sizes = append(sizes, info.Size())
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking %s: %w", absDir, walkErr)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)

	for i, path := range paths {
		size := sizes[i]
		g.Go(func() error {
			chunks, err := ing.IngestFile(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			case err != nil:
				ing.logger.Warn("ingesting file", "path", path, "error", err)
				result.FilesFailed++
			case chunks == 0:
				result.FilesSkipped++
			default:
				result.FilesAdded++
				result.ChunksAdded += chunks
				result.TotalSize += size
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingesting %s: %w", absDir, err)
	}

	result.Duration = time.Since(start)
	ing.logger.Info("directory ingested",
		"dir", absDir,
		"added", result.FilesAdded,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"chunks", result.ChunksAdded,
		"duration", result.Duration,
	)
	return result, nil
}
