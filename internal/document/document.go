// Package document tracks uploaded knowledge source files and their
// ingestion status. The raw file lands on disk and a row records where it
// is and how far ingestion got; the ingest worker drives the status from
// pending to embedded, or to failed for manual retry.
package document

import (
	"errors"
	"time"

	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
)

// Status is the ingestion state of a document.
type Status string

// A document starts pending, becomes embedded on success or failed on
// error. Failed documents stay visible and can be retried; nothing is
// ever silently stuck.
const (
	StatusPending  Status = "pending"
	StatusEmbedded Status = "embedded"
	StatusFailed   Status = "failed"
)

// Document is one uploaded source file.
type Document struct {
	UID        string               `json:"uid"`
	Name       string               `json:"name"`
	Path       string               `json:"-"`
	Topic      string               `json:"topic"`
	Visibility knowledge.Visibility `json:"visibility"`
	Status     Status               `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
}

// ErrNotFound reports an unknown document uid.
var ErrNotFound = errors.New("document not found")

// ErrNotRetryable reports a retry on a document that has not failed.
var ErrNotRetryable = errors.New("document is not in failed state")
