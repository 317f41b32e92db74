package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG implements Querier against PostgreSQL.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG creates a PG querier over an existing connection pool.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

var _ Querier = (*PG)(nil)

func (q *PG) CreateSession(ctx context.Context, s *Session) error {
	return q.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, title)
		VALUES ($1, $2)
		RETURNING created_at, updated_at`,
		pgUUID(s.ID), s.Title).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (q *PG) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var s Session
	var pgID pgtype.UUID
	err := q.pool.QueryRow(ctx, `
		SELECT id, title, created_at, updated_at
		FROM sessions WHERE id = $1`,
		pgUUID(id)).Scan(&pgID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.ID = pgID.Bytes
	return &s, nil
}

func (q *PG) ListSessions(ctx context.Context, limit, offset int32) ([]*Session, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, title, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var s Session
		var pgID pgtype.UUID
		if err := rows.Scan(&pgID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		s.ID = pgID.Bytes
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

func (q *PG) RenameSession(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := q.pool.Exec(ctx, `
		UPDATE sessions SET title = $2, updated_at = now() WHERE id = $1`,
		pgUUID(id), title)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *PG) DeleteSession(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, pgUUID(id))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *PG) InsertMessage(ctx context.Context, m *Message) error {
	sourcesJSON, err := json.Marshal(m.Sources)
	if err != nil {
		return fmt.Errorf("marshaling sources: %w", err)
	}
	if m.Sources == nil {
		sourcesJSON = []byte("[]")
	}

	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	err = tx.QueryRow(ctx, `
		INSERT INTO session_messages (session_id, role, content, sources, confidence)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		pgUUID(m.SessionID), m.Role, m.Content, sourcesJSON, m.Confidence).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sessions SET updated_at = now() WHERE id = $1`,
		pgUUID(m.SessionID)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (q *PG) ListMessages(ctx context.Context, sessionID uuid.UUID, limit, offset int32) ([]*Message, error) {
	return q.queryMessages(ctx, `
		SELECT id, session_id, role, content, sources, confidence, created_at
		FROM session_messages
		WHERE session_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`,
		pgUUID(sessionID), limit, offset)
}

// ListRecentMessages returns the newest limit messages, newest first.
// id is a bigserial, so it preserves insertion order even when created_at ties.
func (q *PG) ListRecentMessages(ctx context.Context, sessionID uuid.UUID, limit int32) ([]*Message, error) {
	return q.queryMessages(ctx, `
		SELECT id, session_id, role, content, sources, confidence, created_at
		FROM session_messages
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT $2`,
		pgUUID(sessionID), limit)
}

func (q *PG) queryMessages(ctx context.Context, sql string, args ...any) ([]*Message, error) {
	rows, err := q.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		var pgSessionID pgtype.UUID
		var sourcesJSON []byte
		if err := rows.Scan(&m.ID, &pgSessionID, &m.Role, &m.Content,
			&sourcesJSON, &m.Confidence, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		m.SessionID = pgSessionID.Bytes
		if err := json.Unmarshal(sourcesJSON, &m.Sources); err != nil {
			return nil, fmt.Errorf("parsing sources for message %d: %w", m.ID, err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

func (q *PG) DeleteMessages(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM session_messages WHERE session_id = $1`, pgUUID(sessionID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
