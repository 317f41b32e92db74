// Package api exposes DocuBot over HTTP.
//
// Endpoints:
//
//	GET  /health               liveness probe
//	GET  /ready                readiness probe (database ping)
//	GET  /api/sessions         list sessions
//	POST /api/sessions         create session
//	DELETE /api/sessions/{id}  delete session
//	GET  /api/sessions/{id}/messages
//	POST /api/chat             ask a question (JSON)
//	POST /api/chat/stream      ask a question (SSE)
//	POST /api/documents        upload and ingest a document (multipart)
//	GET  /api/documents        list chunks of a source
//	DELETE /api/documents      delete a source's chunks
//	GET  /api/documents/stats  per-source chunk counts
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints
//   - session.go: session management endpoints
//   - chat.go: question answering (sync + SSE)
//   - documents.go: document upload, listing, deletion, stats
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mozadev/docubot/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:3400"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout prevents Slowloris-style header trickling.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 60 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generation and SSE streams must finish within this window.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Deps are the application dependencies the server exposes over HTTP.
type Deps struct {
	Pool      *pgxpool.Pool
	Sessions  SessionStore
	Chat      Asker
	Ingestor  Ingestor
	Documents DocumentStore
	Logger    log.Logger

	// UploadDir is where uploaded documents are persisted before ingestion.
	// Empty means the system temp directory.
	UploadDir string
}

// Server is DocuBot's HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health    *HealthHandler
	session   *SessionHandler
	chat      *ChatHandler
	documents *DocumentHandler
}

// NewServer creates a server with all routes registered.
func NewServer(deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:       mux,
		logger:    deps.Logger,
		health:    NewHealthHandler(deps.Pool, deps.Logger),
		session:   NewSessionHandler(deps.Sessions, deps.Logger),
		chat:      NewChatHandler(deps.Chat, deps.Logger),
		documents: NewDocumentHandler(deps.Ingestor, deps.Documents, deps.Logger),
	}
	s.documents.SetUploadDir(deps.UploadDir)

	s.health.RegisterRoutes(mux)
	s.session.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.documents.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the server and blocks until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
