package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/mozadev/docubot/internal/log"
	"github.com/mozadev/docubot/internal/session"
)

// Session validation constants.
const (
	MaxTitleLength    = 100
	DefaultListLimit  = 100
	MaxListLimit      = 1000
	MaxListOffset     = 100000
	DefaultMsgsLimit  = 200
	MaxMessagesLimit  = 1000
	MaxMessagesOffset = 1000000
)

// SessionStore is the session surface the API depends on.
// *session.Store satisfies it.
type SessionStore interface {
	Create(ctx context.Context, title string) (*session.Session, error)
	List(ctx context.Context, limit, offset int32) ([]*session.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Messages(ctx context.Context, sessionID uuid.UUID, limit, offset int32) ([]*session.Message, error)
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	store  SessionStore
	logger log.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store SessionStore, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
	mux.HandleFunc("GET /api/sessions/{id}/messages", h.messages)
}

// list returns sessions with pagination.
// Query parameters: limit (default 100, max 1000), offset.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxListOffset)

	// #nosec G115 -- bounded by MaxListLimit and MaxListOffset
	sessions, err := h.store.List(r.Context(), int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
		"limit":    limit,
		"offset":   offset,
	})
}

// CreateSessionRequest is the request body for creating a session.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if len(req.Title) > MaxTitleLength {
		writeError(w, http.StatusBadRequest, "bad_request", "title too long (max 100 characters)")
		return
	}

	sess, err := h.store.Create(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid session id")
		return
	}

	switch err := h.store.Delete(r.Context(), id); {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "session not found")
	case err != nil:
		h.logger.Error("deleting session", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal", "failed to delete session")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *SessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid session id")
		return
	}

	limit := parseIntParam(r, "limit", DefaultMsgsLimit, 1, MaxMessagesLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxMessagesOffset)

	// #nosec G115 -- bounded by MaxMessagesLimit and MaxMessagesOffset
	messages, err := h.store.Messages(r.Context(), id, int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("listing messages", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"total":    len(messages),
	})
}

// parseIntParam parses an integer query parameter with bounds clamping.
func parseIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
