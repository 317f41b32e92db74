package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// Querier defines the database operations Store needs. Defined by the
// consumer so tests can substitute an in-memory fake.
type Querier interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	ListSessions(ctx context.Context, limit, offset int32) ([]*Session, error)
	RenameSession(ctx context.Context, id uuid.UUID, title string) error
	DeleteSession(ctx context.Context, id uuid.UUID) (int64, error)

	// InsertMessage appends a message and bumps the session's updated_at.
	InsertMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, sessionID uuid.UUID, limit, offset int32) ([]*Message, error)

	// ListRecentMessages returns the newest limit messages, newest first.
	ListRecentMessages(ctx context.Context, sessionID uuid.UUID, limit int32) ([]*Message, error)
	DeleteMessages(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

// Store manages session persistence.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	logger  *slog.Logger
}

// New creates a Store. logger may be nil.
func New(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, logger: logger}
}

// Create starts a new session with the given title (may be empty).
func (s *Store) Create(ctx context.Context, title string) (*Session, error) {
	sess := &Session{ID: uuid.New(), Title: title}
	if err := s.querier.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Debug("created session", "id", sess.ID, "title", sess.Title)
	return sess, nil
}

// Get retrieves a session by ID. Returns ErrNotFound for unknown IDs.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.querier.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, nil
}

// List lists sessions ordered by most recent activity.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]*Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	sessions, err := s.querier.ListSessions(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// Rename changes a session's title.
func (s *Store) Rename(ctx context.Context, id uuid.UUID, title string) error {
	if err := s.querier.RenameSession(ctx, id, title); err != nil {
		return fmt.Errorf("renaming session %s: %w", id, err)
	}
	return nil
}

// Delete removes a session and its messages (CASCADE).
// Returns ErrNotFound when the session does not exist.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.querier.DeleteSession(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if deleted == 0 {
		return fmt.Errorf("deleting session %s: %w", id, ErrNotFound)
	}
	s.logger.Debug("deleted session", "id", id)
	return nil
}

// AddMessage appends a message to a session's history.
func (s *Store) AddMessage(ctx context.Context, m *Message) error {
	if m.Role != RoleUser && m.Role != RoleModel {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}
	if err := s.querier.InsertMessage(ctx, m); err != nil {
		return fmt.Errorf("adding message to session %s: %w", m.SessionID, err)
	}
	s.logger.Debug("added message", "session_id", m.SessionID, "role", m.Role)
	return nil
}

// Messages retrieves a session's messages in chronological order.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID, limit, offset int32) ([]*Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	messages, err := s.querier.ListMessages(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("getting messages for session %s: %w", sessionID, err)
	}
	return messages, nil
}

// Recent retrieves the last limit messages of a session in chronological
// order. Unlike Messages it keeps the tail of a long conversation, not the
// head.
func (s *Store) Recent(ctx context.Context, sessionID uuid.UUID, limit int32) ([]*Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	messages, err := s.querier.ListRecentMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("getting recent messages for session %s: %w", sessionID, err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// ClearMessages wipes a session's history while keeping the session itself.
func (s *Store) ClearMessages(ctx context.Context, sessionID uuid.UUID) error {
	cleared, err := s.querier.DeleteMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("clearing messages for session %s: %w", sessionID, err)
	}
	s.logger.Debug("cleared messages", "session_id", sessionID, "count", cleared)
	return nil
}

// History returns the last limit messages of a session as Genkit messages,
// oldest first, ready to prepend to a generation request.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, limit int32) ([]*ai.Message, error) {
	messages, err := s.Recent(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	history := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			history = append(history, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case RoleModel:
			history = append(history, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			s.logger.Warn("skipping message with unknown role", "role", m.Role, "session_id", sessionID)
		}
	}
	return history, nil
}
