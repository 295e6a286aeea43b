package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresQuerier implements Querier on a pgx connection pool with pgvector.
type PostgresQuerier struct {
	pool *pgxpool.Pool
}

// NewPostgresQuerier creates a pgx-backed querier. The pool must have the
// pgvector codec registered (see database.Open).
func NewPostgresQuerier(pool *pgxpool.Pool) *PostgresQuerier {
	return &PostgresQuerier{pool: pool}
}

var _ Querier = (*PostgresQuerier)(nil)

// InsertChunk appends one embedded chunk to a namespace.
func (q *PostgresQuerier) InsertChunk(ctx context.Context, topic string, visibility Visibility, content string, embedding []float32) error {
	const query = `
		INSERT INTO knowledge_chunks (topic, visibility, content, embedding)
		VALUES ($1, $2, $3, $4)`

	vec := pgvector.NewVector(embedding)
	if _, err := q.pool.Exec(ctx, query, topic, string(visibility), content, vec); err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// SearchChunks returns the topK most similar chunks, descending similarity.
// Similarity is cosine: 1 - (embedding <=> query).
func (q *PostgresQuerier) SearchChunks(ctx context.Context, topic string, visibility Visibility, embedding []float32, topK int) ([]Result, error) {
	const query = `
		SELECT content, 1 - (embedding <=> $3) AS similarity
		FROM knowledge_chunks
		WHERE topic = $1 AND visibility = $2
		ORDER BY embedding <=> $3
		LIMIT $4`

	vec := pgvector.NewVector(embedding)
	rows, err := q.pool.Query(ctx, query, topic, string(visibility), vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Content, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountChunks returns the number of chunks in a namespace.
func (q *PostgresQuerier) CountChunks(ctx context.Context, topic string, visibility Visibility) (int64, error) {
	const query = `SELECT count(*) FROM knowledge_chunks WHERE topic = $1 AND visibility = $2`

	var count int64
	if err := q.pool.QueryRow(ctx, query, topic, string(visibility)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}
