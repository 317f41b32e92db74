package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeQuerier is an in-memory Querier for unit tests.
type fakeQuerier struct {
	sessions map[uuid.UUID]*Session
	messages map[uuid.UUID][]*Message
	nextID   int64
	failWith error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		sessions: make(map[uuid.UUID]*Session),
		messages: make(map[uuid.UUID][]*Message),
	}
}

func (f *fakeQuerier) CreateSession(_ context.Context, s *Session) error {
	if f.failWith != nil {
		return f.failWith
	}
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	copied := *s
	f.sessions[s.ID] = &copied
	return nil
}

func (f *fakeQuerier) GetSession(_ context.Context, id uuid.UUID) (*Session, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeQuerier) ListSessions(_ context.Context, limit, offset int32) ([]*Session, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var sessions []*Session
	for _, s := range f.sessions {
		copied := *s
		sessions = append(sessions, &copied)
	}
	return sessions, nil
}

func (f *fakeQuerier) RenameSession(_ context.Context, id uuid.UUID, title string) error {
	if f.failWith != nil {
		return f.failWith
	}
	s, ok := f.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Title = title
	return nil
}

func (f *fakeQuerier) DeleteSession(_ context.Context, id uuid.UUID) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	if _, ok := f.sessions[id]; !ok {
		return 0, nil
	}
	delete(f.sessions, id)
	delete(f.messages, id)
	return 1, nil
}

func (f *fakeQuerier) InsertMessage(_ context.Context, m *Message) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	m.ID = f.nextID
	m.CreatedAt = time.Now()
	copied := *m
	f.messages[m.SessionID] = append(f.messages[m.SessionID], &copied)
	if s, ok := f.sessions[m.SessionID]; ok {
		s.UpdatedAt = m.CreatedAt
	}
	return nil
}

func (f *fakeQuerier) ListMessages(_ context.Context, sessionID uuid.UUID, limit, offset int32) ([]*Message, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	msgs := f.messages[sessionID]
	if int(offset) >= len(msgs) {
		return nil, nil
	}
	msgs = msgs[offset:]
	if int(limit) < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeQuerier) ListRecentMessages(_ context.Context, sessionID uuid.UUID, limit int32) ([]*Message, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	msgs := f.messages[sessionID]
	reversed := make([]*Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		reversed = append(reversed, msgs[i])
	}
	if int(limit) < len(reversed) {
		reversed = reversed[:limit]
	}
	return reversed, nil
}

func (f *fakeQuerier) DeleteMessages(_ context.Context, sessionID uuid.UUID) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	n := int64(len(f.messages[sessionID]))
	delete(f.messages, sessionID)
	return n, nil
}

func TestCreateAndGet(t *testing.T) {
	store := New(newFakeQuerier(), nil)
	ctx := context.Background()

	sess, err := store.Create(ctx, "My research")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if sess.ID == uuid.Nil {
		t.Error("Create() should assign an ID")
	}
	if sess.CreatedAt.IsZero() {
		t.Error("Create() should set CreatedAt")
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Title != "My research" {
		t.Errorf("Title = %q, want %q", got.Title, "My research")
	}
}

func TestGetNotFound(t *testing.T) {
	store := New(newFakeQuerier(), nil)

	_, err := store.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	store := New(newFakeQuerier(), nil)

	err := store.Delete(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestAddMessageValidatesRole(t *testing.T) {
	store := New(newFakeQuerier(), nil)

	err := store.AddMessage(context.Background(), &Message{
		SessionID: uuid.New(),
		Role:      "assistant",
		Content:   "hi",
	})
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("AddMessage() error = %v, want ErrInvalidRole", err)
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	q := newFakeQuerier()
	store := New(q, nil)
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	userMsg := &Message{SessionID: sess.ID, Role: RoleUser, Content: "What is Go?"}
	if err := store.AddMessage(ctx, userMsg); err != nil {
		t.Fatalf("AddMessage(user) failed: %v", err)
	}
	modelMsg := &Message{
		SessionID:  sess.ID,
		Role:       RoleModel,
		Content:    "Go is a programming language.",
		Sources:    []Source{{Filename: "go.md", Snippet: "Go is...", Score: 0.9}},
		Confidence: 0.9,
	}
	if err := store.AddMessage(ctx, modelMsg); err != nil {
		t.Fatalf("AddMessage(model) failed: %v", err)
	}

	messages, err := store.Messages(ctx, sess.ID, 10, 0)
	if err != nil {
		t.Fatalf("Messages() failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0].Role != RoleUser || messages[1].Role != RoleModel {
		t.Errorf("roles = %s,%s, want user,model", messages[0].Role, messages[1].Role)
	}
	if len(messages[1].Sources) != 1 || messages[1].Sources[0].Filename != "go.md" {
		t.Errorf("model sources not preserved: %+v", messages[1].Sources)
	}
}

func TestHistoryConversion(t *testing.T) {
	q := newFakeQuerier()
	store := New(q, nil)
	ctx := context.Background()

	sess, _ := store.Create(ctx, "")
	_ = store.AddMessage(ctx, &Message{SessionID: sess.ID, Role: RoleUser, Content: "question"})
	_ = store.AddMessage(ctx, &Message{SessionID: sess.ID, Role: RoleModel, Content: "answer"})

	history, err := store.History(ctx, sess.ID, 10)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d history messages, want 2", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "model" {
		t.Errorf("history roles = %s,%s", history[0].Role, history[1].Role)
	}
	if history[0].Content[0].Text != "question" {
		t.Errorf("history content = %q", history[0].Content[0].Text)
	}
}

func TestRecentKeepsConversationTail(t *testing.T) {
	q := newFakeQuerier()
	store := New(q, nil)
	ctx := context.Background()

	sess, _ := store.Create(ctx, "")
	for i := 1; i <= 30; i++ {
		role := RoleUser
		if i%2 == 0 {
			role = RoleModel
		}
		err := store.AddMessage(ctx, &Message{
			SessionID: sess.ID, Role: role, Content: fmt.Sprintf("turn %d", i),
		})
		if err != nil {
			t.Fatalf("AddMessage(%d) failed: %v", i, err)
		}
	}

	messages, err := store.Recent(ctx, sess.ID, 20)
	if err != nil {
		t.Fatalf("Recent() failed: %v", err)
	}
	if len(messages) != 20 {
		t.Fatalf("got %d messages, want 20", len(messages))
	}
	// The newest 20 of 30, oldest first.
	if messages[0].Content != "turn 11" {
		t.Errorf("first message = %q, want %q", messages[0].Content, "turn 11")
	}
	if messages[19].Content != "turn 30" {
		t.Errorf("last message = %q, want %q", messages[19].Content, "turn 30")
	}

	history, err := store.History(ctx, sess.ID, 20)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 20 {
		t.Fatalf("got %d history messages, want 20", len(history))
	}
	if history[19].Content[0].Text != "turn 30" {
		t.Errorf("history should end at the newest turn, got %q", history[19].Content[0].Text)
	}
}

func TestClearMessages(t *testing.T) {
	q := newFakeQuerier()
	store := New(q, nil)
	ctx := context.Background()

	sess, _ := store.Create(ctx, "")
	_ = store.AddMessage(ctx, &Message{SessionID: sess.ID, Role: RoleUser, Content: "hi"})

	if err := store.ClearMessages(ctx, sess.ID); err != nil {
		t.Fatalf("ClearMessages() failed: %v", err)
	}

	messages, err := store.Messages(ctx, sess.ID, 10, 0)
	if err != nil {
		t.Fatalf("Messages() failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("got %d messages after clear, want 0", len(messages))
	}

	// Session itself survives.
	if _, err := store.Get(ctx, sess.ID); err != nil {
		t.Errorf("session should survive ClearMessages: %v", err)
	}
}
