package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozadev/docubot/internal/chat"
	"github.com/mozadev/docubot/internal/log"
	"github.com/mozadev/docubot/internal/session"
)

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func newChatMux(asker Asker) *http.ServeMux {
	mux := http.NewServeMux()
	NewChatHandler(asker, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestChatHandler_Ask(t *testing.T) {
	t.Parallel()

	t.Run("answers", func(t *testing.T) {
		t.Parallel()
		asker := &fakeAsker{answer: &chat.Answer{
			Text:       "The refund window is 30 days.",
			Sources:    []session.Source{{Filename: "policy.md", Score: 0.92}},
			Confidence: 0.92,
		}}
		mux := newChatMux(asker)

		req := httptest.NewRequest(http.MethodPost, "/api/chat",
			jsonBody(t, AskRequest{SessionID: uuid.NewString(), Question: "refund window?"}))
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "refund window?", asker.lastQuestion)
		assert.Contains(t, w.Body.String(), "The refund window is 30 days.")
		assert.Contains(t, w.Body.String(), "policy.md")
	})

	t.Run("invalid body", func(t *testing.T) {
		t.Parallel()
		mux := newChatMux(&fakeAsker{})

		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{"))
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing session id", func(t *testing.T) {
		t.Parallel()
		mux := newChatMux(&fakeAsker{})

		req := httptest.NewRequest(http.MethodPost, "/api/chat",
			jsonBody(t, AskRequest{Question: "hi"}))
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "session_id is required")
	})

	t.Run("asker failure", func(t *testing.T) {
		t.Parallel()
		mux := newChatMux(&fakeAsker{err: errors.New("model unavailable")})

		req := httptest.NewRequest(http.MethodPost, "/api/chat",
			jsonBody(t, AskRequest{SessionID: uuid.NewString(), Question: "hi"}))
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestChatHandler_Stream(t *testing.T) {
	t.Parallel()

	t.Run("streams chunks then done", func(t *testing.T) {
		t.Parallel()
		asker := &fakeAsker{
			chunks: []string{"The refund ", "window is 30 days."},
			answer: &chat.Answer{Text: "The refund window is 30 days.", Confidence: 0.9},
		}
		mux := newChatMux(asker)

		req := httptest.NewRequest(http.MethodPost, "/api/chat/stream",
			jsonBody(t, AskRequest{SessionID: uuid.NewString(), Question: "refund window?"}))
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

		body := w.Body.String()
		assert.Equal(t, 2, strings.Count(body, "event: chunk"))
		assert.Contains(t, body, `{"text":"The refund "}`)
		assert.Contains(t, body, "event: done")
		assert.Contains(t, body, "The refund window is 30 days.")
		assert.NotContains(t, body, "event: error")
	})

	t.Run("invalid session id", func(t *testing.T) {
		t.Parallel()
		mux := newChatMux(&fakeAsker{})

		req := httptest.NewRequest(http.MethodPost, "/api/chat/stream",
			jsonBody(t, AskRequest{SessionID: "nope", Question: "hi"}))
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code) // SSE always starts with 200
		assert.Contains(t, w.Body.String(), "event: error")
		assert.Contains(t, w.Body.String(), "INVALID_SESSION_ID")
	})

	t.Run("missing question", func(t *testing.T) {
		t.Parallel()
		mux := newChatMux(&fakeAsker{})

		req := httptest.NewRequest(http.MethodPost, "/api/chat/stream",
			jsonBody(t, AskRequest{SessionID: uuid.NewString()}))
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		assert.Contains(t, w.Body.String(), "MISSING_QUESTION")
	})

	t.Run("generation failure", func(t *testing.T) {
		t.Parallel()
		mux := newChatMux(&fakeAsker{err: errors.New("model unavailable")})

		req := httptest.NewRequest(http.MethodPost, "/api/chat/stream",
			jsonBody(t, AskRequest{SessionID: uuid.NewString(), Question: "hi"}))
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		assert.Contains(t, w.Body.String(), "STREAM_ERROR")
		assert.Contains(t, w.Body.String(), "model unavailable")
		assert.NotContains(t, w.Body.String(), "event: done")
	})
}
