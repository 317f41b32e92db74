package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PG implements Querier against PostgreSQL with the pgvector extension.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG creates a PG querier over an existing connection pool.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

var _ Querier = (*PG)(nil)

func (q *PG) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO documents (id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content    = EXCLUDED.content,
			embedding  = EXCLUDED.embedding,
			metadata   = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at`,
		arg.ID, arg.Content, arg.Embedding, arg.Metadata, arg.CreatedAt)
	return err
}

func (q *PG) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]DocumentRow, error) {
	// <=> is cosine distance; similarity = 1 - distance. Ordering by the
	// raw operator lets the ivfflat index drive the scan.
	query := `
		SELECT id, content, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2`
	args := []any{arg.QueryEmbedding, arg.Limit}

	if arg.Source != "" {
		query = `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM documents
			WHERE metadata->>'source' = $3
			ORDER BY embedding <=> $1
			LIMIT $2`
		args = append(args, arg.Source)
	}

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DocumentRow
	for rows.Next() {
		var row DocumentRow
		if err := rows.Scan(&row.ID, &row.Content, &row.Metadata, &row.CreatedAt, &row.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (q *PG) CountDocuments(ctx context.Context, source string) (int64, error) {
	var count int64
	var err error
	if source == "" {
		err = q.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count)
	} else {
		err = q.pool.QueryRow(ctx,
			`SELECT count(*) FROM documents WHERE metadata->>'source' = $1`, source).Scan(&count)
	}
	return count, err
}

func (q *PG) DeleteDocument(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

func (q *PG) DeleteDocumentsBySource(ctx context.Context, source string) (int64, error) {
	tag, err := q.pool.Exec(ctx,
		`DELETE FROM documents WHERE metadata->>'source' = $1`, source)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *PG) ListDocumentsBySource(ctx context.Context, source string, limit int32) ([]DocumentRow, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, content, metadata, created_at
		FROM documents
		WHERE metadata->>'source' = $1
		ORDER BY (metadata->>'chunk_index')::int NULLS LAST, id
		LIMIT $2`,
		source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DocumentRow
	for rows.Next() {
		var row DocumentRow
		if err := rows.Scan(&row.ID, &row.Content, &row.Metadata, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning list row: %w", err)
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (q *PG) ListSources(ctx context.Context) ([]SourceStat, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT coalesce(metadata->>'source', '') AS source, count(*)
		FROM documents
		GROUP BY 1
		ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []SourceStat
	for rows.Next() {
		var s SourceStat
		if err := rows.Scan(&s.Source, &s.Chunks); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (q *PG) ClearDocuments(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, `TRUNCATE documents`)
	return err
}
