package document

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
)

// Querier defines the database operations the Store needs; postgres.go
// provides the pgx implementation and tests substitute mocks.
type Querier interface {
	InsertDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, uid string) (Document, bool, error)
	SetStatus(ctx context.Context, uid string, status Status) error
	ListByStatus(ctx context.Context, status Status) ([]Document, error)
}

// Store persists uploaded files under a directory and tracks them in the
// documents table.
type Store struct {
	querier   Querier
	uploadDir string
	logger    log.Logger
}

// NewStore creates a Store writing files under uploadDir. The directory
// is created if absent.
func NewStore(querier Querier, uploadDir string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{querier: querier, uploadDir: uploadDir, logger: logger}, nil
}

// Save persists the uploaded file and records it with status pending. The
// returned document carries the uid the client polls and retries with.
func (s *Store) Save(ctx context.Context, name string, r io.Reader, topic string, visibility knowledge.Visibility) (Document, error) {
	uid := uuid.NewString()
	path := filepath.Join(s.uploadDir, uid+"_"+filepath.Base(name))

	f, err := os.Create(path)
	if err != nil {
		return Document{}, fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return Document{}, fmt.Errorf("writing upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Document{}, fmt.Errorf("closing upload file: %w", err)
	}

	doc := Document{
		UID:        uid,
		Name:       name,
		Path:       path,
		Topic:      topic,
		Visibility: visibility,
		Status:     StatusPending,
	}
	if err := s.querier.InsertDocument(ctx, doc); err != nil {
		os.Remove(path)
		return Document{}, fmt.Errorf("recording document: %w", err)
	}

	s.logger.Info("document uploaded",
		"uid", uid,
		"name", name,
		"topic", topic,
		"visibility", visibility)
	return doc, nil
}

// Get returns one document by uid.
func (s *Store) Get(ctx context.Context, uid string) (Document, error) {
	doc, ok, err := s.querier.GetDocument(ctx, uid)
	if err != nil {
		return Document{}, fmt.Errorf("loading document %s: %w", uid, err)
	}
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// Content reads the stored file of a document back as text.
func (s *Store) Content(doc Document) (string, error) {
	raw, err := os.ReadFile(doc.Path)
	if err != nil {
		return "", fmt.Errorf("reading document %s: %w", doc.UID, err)
	}
	return string(raw), nil
}

// MarkEmbedded records successful ingestion.
func (s *Store) MarkEmbedded(ctx context.Context, uid string) error {
	return s.setStatus(ctx, uid, StatusEmbedded)
}

// MarkFailed records a failed ingestion attempt.
func (s *Store) MarkFailed(ctx context.Context, uid string) error {
	return s.setStatus(ctx, uid, StatusFailed)
}

func (s *Store) setStatus(ctx context.Context, uid string, status Status) error {
	if err := s.querier.SetStatus(ctx, uid, status); err != nil {
		return fmt.Errorf("marking document %s %s: %w", uid, status, err)
	}
	return nil
}

// Retry flips a failed document back to pending so the worker picks it up
// again. Retrying a document that has not failed is a client error.
func (s *Store) Retry(ctx context.Context, uid string) (Document, error) {
	doc, err := s.Get(ctx, uid)
	if err != nil {
		return Document{}, err
	}
	if doc.Status != StatusFailed {
		return Document{}, fmt.Errorf("%w: %s is %s", ErrNotRetryable, uid, doc.Status)
	}
	if err := s.setStatus(ctx, uid, StatusPending); err != nil {
		return Document{}, err
	}
	doc.Status = StatusPending
	return doc, nil
}

// Pending lists documents awaiting ingestion, oldest first. The worker
// scans this at startup so uploads accepted before a crash still run.
func (s *Store) Pending(ctx context.Context) ([]Document, error) {
	docs, err := s.querier.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending documents: %w", err)
	}
	return docs, nil
}
