package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
	"github.com/ilzarachman/chatbot-helpdesk/internal/document"
	"github.com/ilzarachman/chatbot-helpdesk/internal/intent"
	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
)

// maxUploadSize bounds one document upload.
const maxUploadSize = 16 << 20 // 16 MiB

// DocumentStore is the slice of the document store these endpoints use.
type DocumentStore interface {
	Save(ctx context.Context, name string, r io.Reader, topic string, visibility knowledge.Visibility) (document.Document, error)
	Retry(ctx context.Context, uid string) (document.Document, error)
}

// Enqueuer schedules a document for background ingestion.
type Enqueuer interface {
	Enqueue(uid string) bool
}

// DocumentHandler serves knowledge document uploads. Upload is
// staff-only: documents feed the retrieval namespaces every caller reads
// from.
type DocumentHandler struct {
	store  DocumentStore
	worker Enqueuer
	logger log.Logger
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(store DocumentStore, worker Enqueuer, logger log.Logger) *DocumentHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &DocumentHandler{store: store, worker: worker, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.upload)
	mux.HandleFunc("POST /api/documents/{uid}/retry", h.retry)
}

func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if identity.Class != conversation.ClassStaff {
		writeError(w, http.StatusForbidden, "staff_only", "document upload requires staff access")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "malformed multipart body")
		return
	}

	// The fallback topic has no retrieval namespace, so it accepts no
	// documents either.
	topic, ok := intent.Parse(r.FormValue("topic"))
	if !ok || topic == intent.Other {
		writeError(w, http.StatusBadRequest, "invalid_topic", "unknown topic")
		return
	}

	visibility := knowledge.Visibility(r.FormValue("visibility"))
	if visibility == "" {
		visibility = knowledge.VisibilityRestricted
	}
	if visibility != knowledge.VisibilityRestricted && visibility != knowledge.VisibilityPublic {
		writeError(w, http.StatusBadRequest, "invalid_visibility", "visibility must be restricted or public")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "file field is required")
		return
	}
	defer file.Close()

	doc, err := h.store.Save(r.Context(), header.Filename, file, topic.String(), visibility)
	if err != nil {
		h.logger.Error("saving upload", "error", err)
		writeError(w, http.StatusInternalServerError, "upload_failed", "could not store document")
		return
	}
	h.worker.Enqueue(doc.UID)

	writeJSON(w, http.StatusAccepted, doc)
}

func (h *DocumentHandler) retry(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if identity.Class != conversation.ClassStaff {
		writeError(w, http.StatusForbidden, "staff_only", "document retry requires staff access")
		return
	}

	doc, err := h.store.Retry(r.Context(), r.PathValue("uid"))
	switch {
	case errors.Is(err, document.ErrNotFound):
		writeError(w, http.StatusNotFound, "document_not_found", "unknown document")
		return
	case errors.Is(err, document.ErrNotRetryable):
		writeError(w, http.StatusConflict, "not_retryable", "document has not failed")
		return
	case err != nil:
		h.logger.Error("retrying document", "error", err)
		writeError(w, http.StatusInternalServerError, "retry_failed", "could not retry document")
		return
	}
	h.worker.Enqueue(doc.UID)

	writeJSON(w, http.StatusAccepted, doc)
}
