// Package knowledge stores document chunks with their embeddings and serves
// vector similarity search over them.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

// Querier defines the database operations Store needs. The interface is
// defined here, by the consumer, so tests can substitute an in-memory fake.
type Querier interface {
	// UpsertDocument inserts or replaces a document chunk.
	UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error

	// SearchDocuments returns the chunks nearest to the query embedding.
	// source restricts results to one origin when non-empty.
	SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]DocumentRow, error)

	// CountDocuments counts chunks, optionally restricted to one source.
	CountDocuments(ctx context.Context, source string) (int64, error)

	// DeleteDocument deletes a chunk by ID.
	DeleteDocument(ctx context.Context, id string) error

	// DeleteDocumentsBySource deletes every chunk of a source, returning
	// the number of rows removed.
	DeleteDocumentsBySource(ctx context.Context, source string) (int64, error)

	// ListDocumentsBySource lists a source's chunks in chunk order.
	ListDocumentsBySource(ctx context.Context, source string, limit int32) ([]DocumentRow, error)

	// ListSources returns per-source chunk counts.
	ListSources(ctx context.Context) ([]SourceStat, error)

	// ClearDocuments removes every chunk.
	ClearDocuments(ctx context.Context) error
}

// UpsertDocumentParams carries one chunk into the documents table.
type UpsertDocumentParams struct {
	ID        string
	Content   string
	Embedding pgvector.Vector
	Metadata  []byte
	CreatedAt time.Time
}

// SearchDocumentsParams parameterizes a vector search.
type SearchDocumentsParams struct {
	QueryEmbedding pgvector.Vector
	Source         string // "" = all sources
	Limit          int32
}

// DocumentRow is a raw row returned by search and list queries.
type DocumentRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  time.Time
	Similarity float32 // zero for list queries
}

// Store manages document chunks with vector search over PostgreSQL+pgvector.
// It owns embedding generation for both writes and queries.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. logger may be nil.
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: querier, embedder: embedder, logger: logger}
}

// Add embeds a document's content and upserts it. Re-adding an existing ID
// replaces the stored content and embedding.
func (s *Store) Add(ctx context.Context, doc Document) error {
	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if err := s.queries.UpsertDocument(ctx, UpsertDocumentParams{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: pgvector.NewVector(embedding),
		Metadata:  metadataJSON,
		CreatedAt: createdAt,
	}); err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search embeds the query and returns the most similar chunks, ordered by
// descending cosine similarity. A 10-second deadline applies unless
// overridden with WithTimeout.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timed out: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.queries.SearchDocuments(queryCtx, SearchDocumentsParams{
		QueryEmbedding: pgvector.NewVector(embedding),
		Source:         cfg.source,
		Limit:          cfg.topK,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search timed out: %w", err)
		}
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Document:   s.rowToDocument(row),
			Similarity: row.Similarity,
		})
	}
	return results, nil
}

// Count returns the number of stored chunks, restricted to source when
// non-empty.
func (s *Store) Count(ctx context.Context, source string) (int64, error) {
	count, err := s.queries.CountDocuments(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Delete removes one chunk by ID.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := s.queries.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}
	s.logger.Debug("deleted document", "id", docID)
	return nil
}

// DeleteBySource removes every chunk of a source and reports how many rows
// went away. Used before re-ingesting a changed file.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	if source == "" {
		return 0, errors.New("source must not be empty")
	}
	deleted, err := s.queries.DeleteDocumentsBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("deleting documents for source %q: %w", source, err)
	}
	s.logger.Debug("deleted source", "source", source, "chunks", deleted)
	return deleted, nil
}

// ListBySource lists a source's chunks in chunk order.
func (s *Store) ListBySource(ctx context.Context, source string, limit int32) ([]Document, error) {
	const maxListLimit = 1000
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxListLimit, limit)
	}
	if source == "" {
		return nil, errors.New("source must not be empty")
	}

	rows, err := s.queries.ListDocumentsBySource(ctx, source, limit)
	if err != nil {
		return nil, fmt.Errorf("listing documents for source %q: %w", source, err)
	}

	documents := make([]Document, 0, len(rows))
	for _, row := range rows {
		documents = append(documents, s.rowToDocument(row))
	}
	return documents, nil
}

// Sources returns per-source chunk counts, ordered by source.
func (s *Store) Sources(ctx context.Context) ([]SourceStat, error) {
	stats, err := s.queries.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	return stats, nil
}

// Clear removes every stored chunk.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.queries.ClearDocuments(ctx); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}
	s.logger.Info("knowledge store cleared")
	return nil
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("embedder returned no embedding")
	}
	return resp.Embeddings[0].Embedding, nil
}

func (s *Store) rowToDocument(row DocumentRow) Document {
	var metadata map[string]string
	if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
		s.logger.Warn("unparseable document metadata", "document_id", row.ID, "error", err)
		metadata = make(map[string]string)
	}
	return Document{
		ID:        row.ID,
		Content:   row.Content,
		Metadata:  metadata,
		CreatedAt: row.CreatedAt,
	}
}
