package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
	"github.com/ilzarachman/chatbot-helpdesk/internal/model"
)

// DefaultTopK is the number of passages retrieved when the caller does not
// override k.
const DefaultTopK = 5

// searchTimeout bounds one similarity search (embedding call included).
const searchTimeout = 10 * time.Second

// Querier defines the database operations the Store needs. The interface is
// defined here, on the consumer side; postgres.go provides the pgx-backed
// implementation and tests substitute mocks.
type Querier interface {
	// InsertChunk appends one embedded chunk to a namespace.
	InsertChunk(ctx context.Context, topic string, visibility Visibility, content string, embedding []float32) error

	// SearchChunks returns the topK most similar chunks in a namespace,
	// descending similarity.
	SearchChunks(ctx context.Context, topic string, visibility Visibility, embedding []float32, topK int) ([]Result, error)

	// CountChunks returns the number of chunks in a namespace.
	CountChunks(ctx context.Context, topic string, visibility Visibility) (int64, error)
}

// Store owns the per-(topic, visibility) chunk namespaces.
//
// Searches from any number of goroutines run in parallel. Ingestions into
// the same namespace are serialized by a per-key mutex, because
// check-exists-then-append is not atomic across writers; ingestions into
// different namespaces proceed concurrently.
type Store struct {
	querier  Querier
	embedder model.Embedder
	chunker  Chunker
	logger   log.Logger

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// New creates a Store.
func New(querier Querier, embedder model.Embedder, chunker Chunker, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		querier:  querier,
		embedder: embedder,
		chunker:  chunker,
		logger:   logger,
		keyLocks: make(map[string]*sync.Mutex),
	}
}

// Search embeds the query and returns the top-k passages of the namespace,
// joined by newlines in descending relevance order.
//
// An empty namespace returns ErrNoResults; embedding or database failures
// return a retrieval error. Callers distinguish the two with errors.Is.
func (s *Store) Search(ctx context.Context, query, topic string, visibility Visibility, k int) (string, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	count, err := s.querier.CountChunks(searchCtx, topic, visibility)
	if err != nil {
		return "", fmt.Errorf("checking namespace %s/%s: %w", topic, visibility, err)
	}
	if count == 0 {
		return "", ErrNoResults
	}

	embedding, err := s.embedder.Embed(searchCtx, query)
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.querier.SearchChunks(searchCtx, topic, visibility, embedding, k)
	if err != nil {
		return "", fmt.Errorf("searching namespace %s/%s: %w", topic, visibility, err)
	}
	if len(results) == 0 {
		return "", ErrNoResults
	}

	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Content
	}

	s.logger.Debug("retrieved passages",
		"topic", topic,
		"visibility", visibility,
		"count", len(passages),
		"query_length", len(query))

	return strings.Join(passages, "\n"), nil
}

// Ingest splits the document into chunks, embeds each chunk and appends the
// result to the (topic, visibility) namespace, creating it implicitly on
// first write. Concurrent ingestions into the same namespace are serialized
// so no writer's chunks are lost.
//
// Ingestion is expensive (one embedding call per chunk) and is expected to
// run out-of-band from the request path; see the ingest package.
func (s *Store) Ingest(ctx context.Context, text, topic string, visibility Visibility) error {
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return fmt.Errorf("ingest into %s/%s: document is empty", topic, visibility)
	}

	lock := s.namespaceLock(topic, visibility)
	lock.Lock()
	defer lock.Unlock()

	for i, chunk := range chunks {
		embedding, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("embedding chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if err := s.querier.InsertChunk(ctx, topic, visibility, chunk, embedding); err != nil {
			return fmt.Errorf("storing chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	s.logger.Info("document ingested",
		"topic", topic,
		"visibility", visibility,
		"chunks", len(chunks))

	return nil
}

// namespaceLock returns the mutex guarding one (topic, visibility) key.
func (s *Store) namespaceLock(topic string, visibility Visibility) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := topic + "/" + string(visibility)
	lock, ok := s.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.keyLocks[key] = lock
	}
	return lock
}
