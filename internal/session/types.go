// Package session persists conversations: the sessions themselves and the
// question/answer messages exchanged within them.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. The model role follows Genkit's naming.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Session is one conversation thread.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Source attributes part of an answer to a stored document chunk.
type Source struct {
	Filename string  `json:"filename"`
	Snippet  string  `json:"snippet"` // first part of the chunk content
	Score    float32 `json:"score"`   // cosine similarity of the chunk
}

// Message is one entry in a session's history. Sources and Confidence are
// only populated for model messages.
type Message struct {
	ID         int64     `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Sources    []Source  `json:"sources,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
