// Package ingest runs document embedding out of the request path. Uploads
// are accepted immediately; the worker drains a queue, embeds each
// document into its knowledge namespace and records the outcome on the
// document row. A failed document is marked failed and waits for a manual
// retry; it is never silently stuck in pending.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ilzarachman/chatbot-helpdesk/internal/document"
	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
)

// queueSize bounds how many uploads can wait for the worker before
// Enqueue starts reporting backpressure.
const queueSize = 64

// Ingestor is the slice of the knowledge store the worker writes to.
type Ingestor interface {
	Ingest(ctx context.Context, text, topic string, visibility knowledge.Visibility) error
}

// Documents is the slice of the document store the worker drives.
type Documents interface {
	Get(ctx context.Context, uid string) (document.Document, error)
	Content(doc document.Document) (string, error)
	MarkEmbedded(ctx context.Context, uid string) error
	MarkFailed(ctx context.Context, uid string) error
	Pending(ctx context.Context) ([]document.Document, error)
}

// Worker embeds uploaded documents sequentially. One worker per process
// is enough: embedding dominates the cost and the provider rate-limits
// anyway.
type Worker struct {
	documents Documents
	ingestor  Ingestor
	logger    log.Logger
	queue     chan string
}

// NewWorker creates a Worker.
func NewWorker(documents Documents, ingestor Ingestor, logger log.Logger) *Worker {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Worker{
		documents: documents,
		ingestor:  ingestor,
		logger:    logger,
		queue:     make(chan string, queueSize),
	}
}

// Enqueue schedules a document for ingestion. It reports false when the
// queue is full; the document stays pending and the next startup scan
// picks it up.
func (w *Worker) Enqueue(uid string) bool {
	select {
	case w.queue <- uid:
		return true
	default:
		w.logger.Warn("ingest queue full, leaving document pending", "uid", uid)
		return false
	}
}

// Run processes the queue until ctx is cancelled. It first re-enqueues
// documents already pending in the database, so work accepted before a
// restart is not lost.
func (w *Worker) Run(ctx context.Context) error {
	pending, err := w.documents.Pending(ctx)
	if err != nil {
		return fmt.Errorf("recovering pending documents: %w", err)
	}
	for _, doc := range pending {
		w.Enqueue(doc.UID)
	}
	if len(pending) > 0 {
		w.logger.Info("recovered pending documents", "count", len(pending))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case uid := <-w.queue:
			w.process(ctx, uid)
		}
	}
}

func (w *Worker) process(ctx context.Context, uid string) {
	doc, err := w.documents.Get(ctx, uid)
	if err != nil {
		w.logger.Error("loading queued document", "uid", uid, "error", err)
		return
	}
	if doc.Status != document.StatusPending {
		return
	}

	text, err := w.documents.Content(doc)
	if err != nil {
		w.fail(ctx, uid, err)
		return
	}
	if err := w.ingestor.Ingest(ctx, text, doc.Topic, doc.Visibility); err != nil {
		w.fail(ctx, uid, err)
		return
	}

	if err := w.documents.MarkEmbedded(ctx, uid); err != nil {
		w.logger.Error("marking document embedded", "uid", uid, "error", err)
		return
	}
	w.logger.Info("document embedded", "uid", uid, "topic", doc.Topic, "visibility", doc.Visibility)
}

func (w *Worker) fail(ctx context.Context, uid string, cause error) {
	// A cancelled run is shutdown, not a bad document. Leave it pending
	// so the next startup scan picks it up again.
	if errors.Is(cause, context.Canceled) {
		w.logger.Info("ingestion interrupted, document stays pending", "uid", uid)
		return
	}
	w.logger.Error("document ingestion failed", "uid", uid, "error", cause)
	if err := w.documents.MarkFailed(ctx, uid); err != nil {
		w.logger.Error("marking document failed", "uid", uid, "error", err)
	}
}
