package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mozadev/docubot/internal/document"
	"github.com/mozadev/docubot/internal/knowledge"
	"github.com/mozadev/docubot/internal/log"
)

// MaxUploadSize bounds document uploads (32 MiB).
const MaxUploadSize = 32 << 20

// Ingestor is the ingestion surface the API depends on.
// *ingest.Ingestor satisfies it.
type Ingestor interface {
	IngestFile(ctx context.Context, path string) (int, error)
}

// DocumentStore is the document query surface the API depends on.
// *knowledge.Store satisfies it.
type DocumentStore interface {
	ListBySource(ctx context.Context, source string, limit int32) ([]knowledge.Document, error)
	DeleteBySource(ctx context.Context, source string) (int64, error)
	Sources(ctx context.Context) ([]knowledge.SourceStat, error)
}

// DocumentHandler handles document upload, listing, deletion and stats.
type DocumentHandler struct {
	ingestor  Ingestor
	store     DocumentStore
	uploadDir string
	logger    log.Logger
}

// NewDocumentHandler creates a document handler. Uploads are stored under
// uploadDir before ingestion; empty means the system temp directory.
func NewDocumentHandler(ingestor Ingestor, store DocumentStore, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{ingestor: ingestor, store: store, logger: logger}
}

// SetUploadDir sets where uploaded files are persisted.
func (h *DocumentHandler) SetUploadDir(dir string) { h.uploadDir = dir }

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.upload)
	mux.HandleFunc("GET /api/documents", h.list)
	mux.HandleFunc("DELETE /api/documents", h.delete)
	mux.HandleFunc("GET /api/documents/stats", h.stats)
}

// upload accepts a multipart form with a "file" field, persists it and
// ingests it into the knowledge store.
func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "missing 'file' field")
		return
	}
	defer file.Close()

	// Base strips any client-supplied directory components.
	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid file name")
		return
	}
	if !document.Supported(name) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_type",
			fmt.Sprintf("unsupported file type %q", filepath.Ext(name)))
		return
	}

	dir := h.uploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, name)
	if err := saveUpload(file, path); err != nil {
		h.logger.Error("saving upload", "error", err, "path", path)
		writeError(w, http.StatusInternalServerError, "internal", "failed to save upload")
		return
	}

	chunks, err := h.ingestor.IngestFile(r.Context(), path)
	if err != nil {
		h.logger.Error("ingesting upload", "error", err, "path", path)
		writeError(w, http.StatusInternalServerError, "internal", "failed to ingest document")
		return
	}

	absPath, _ := filepath.Abs(path)
	writeJSON(w, http.StatusCreated, map[string]any{
		"source": absPath,
		"chunks": chunks,
	})
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// list returns the stored chunks of one source.
// Query parameters: source (required), limit.
func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "source query parameter is required")
		return
	}
	limit := parseIntParam(r, "limit", 100, 1, 1000)

	// #nosec G115 -- bounded above
	docs, err := h.store.ListBySource(r.Context(), source, int32(limit))
	if err != nil {
		h.logger.Error("listing documents", "error", err, "source", source)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list documents")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"source":    source,
		"documents": docs,
		"total":     len(docs),
	})
}

// delete removes all chunks of a source.
func (h *DocumentHandler) delete(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "source query parameter is required")
		return
	}

	deleted, err := h.store.DeleteBySource(r.Context(), source)
	if err != nil {
		h.logger.Error("deleting documents", "error", err, "source", source)
		writeError(w, http.StatusInternalServerError, "internal", "failed to delete documents")
		return
	}
	if deleted == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no documents for source")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"source":  source,
		"deleted": deleted,
	})
}

// stats returns per-source chunk counts and the total.
func (h *DocumentHandler) stats(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.Sources(r.Context())
	if err != nil {
		h.logger.Error("reading document stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to read stats")
		return
	}

	var total int64
	for _, s := range sources {
		total += s.Chunks
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sources":      sources,
		"total_chunks": total,
	})
}
