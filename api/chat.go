package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/mozadev/docubot/internal/chat"
	"github.com/mozadev/docubot/internal/log"
)

// Asker is the question-answering surface the API depends on.
// *chat.Manager satisfies it.
type Asker interface {
	AskStream(ctx context.Context, sessionID uuid.UUID, question string, callback chat.StreamCallback) (*chat.Answer, error)
}

// ChatHandler handles question answering.
//
// Endpoints:
//   - POST /api/chat        - synchronous (JSON request/response)
//   - POST /api/chat/stream - streaming (Server-Sent Events)
type ChatHandler struct {
	chat   Asker
	logger log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(asker Asker, logger log.Logger) *ChatHandler {
	return &ChatHandler{chat: asker, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.ask)
	mux.HandleFunc("POST /api/chat/stream", h.askStream)
}

// AskRequest is the request body for both chat endpoints.
type AskRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

func (r AskRequest) sessionID() (uuid.UUID, error) {
	if r.SessionID == "" {
		return uuid.Nil, fmt.Errorf("session_id is required")
	}
	return uuid.Parse(r.SessionID)
}

// ask answers a question synchronously.
func (h *ChatHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	sessionID, err := req.sessionID()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	answer, err := h.chat.AskStream(r.Context(), sessionID, req.Question, nil)
	if err != nil {
		h.logger.Error("answering question", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to answer question")
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// SSEEvent payload types.
type (
	// SSEChunkData is the data for "chunk" events.
	SSEChunkData struct {
		Text string `json:"text"`
	}

	// SSEDoneData is the data for "done" events: the complete answer.
	SSEDoneData struct {
		Answer *chat.Answer `json:"answer"`
	}

	// SSEErrorData is the data for "error" events.
	SSEErrorData struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

// askStream answers a question over Server-Sent Events.
//
// Event types:
//   - chunk: partial answer text {"text": "..."}
//   - done:  the complete answer with sources and confidence
//   - error: {"code": "...", "message": "..."}
func (h *ChatHandler) askStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSSEError(w, flusher, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	sessionID, err := req.sessionID()
	if err != nil {
		writeSSEError(w, flusher, "INVALID_SESSION_ID", err.Error())
		return
	}
	if req.Question == "" {
		writeSSEError(w, flusher, "MISSING_QUESTION", "question is required")
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "session_id", sessionID)

	answer, err := h.chat.AskStream(ctx, sessionID, req.Question,
		func(_ context.Context, text string) error {
			if text == "" {
				return nil
			}
			// Abort generation when the client is gone.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			writeSSEChunk(w, flusher, text)
			return nil
		})
	if err != nil {
		h.logger.Error("stream failed", "error", err, "session_id", sessionID)
		writeSSEError(w, flusher, "STREAM_ERROR", err.Error())
		return
	}

	writeSSEDone(w, flusher, answer)
	h.logger.Debug("SSE stream completed", "session_id", sessionID, "answer_len", len(answer.Text))
}

func writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

func writeSSEDone(w http.ResponseWriter, flusher http.Flusher, answer *chat.Answer) {
	data, _ := json.Marshal(SSEDoneData{Answer: answer})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

func writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
