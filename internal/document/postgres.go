package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresQuerier implements Querier on a pgx connection pool.
type PostgresQuerier struct {
	pool *pgxpool.Pool
}

// NewPostgresQuerier creates a pgx-backed querier.
func NewPostgresQuerier(pool *pgxpool.Pool) *PostgresQuerier {
	return &PostgresQuerier{pool: pool}
}

var _ Querier = (*PostgresQuerier)(nil)

func (q *PostgresQuerier) InsertDocument(ctx context.Context, doc Document) error {
	const query = `
		INSERT INTO documents (uuid, name, path, topic, visibility, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := q.pool.Exec(ctx, query,
		doc.UID, doc.Name, doc.Path, doc.Topic, string(doc.Visibility), string(doc.Status))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (q *PostgresQuerier) GetDocument(ctx context.Context, uid string) (Document, bool, error) {
	const query = `
		SELECT uuid, name, path, topic, visibility, status, created_at
		FROM documents
		WHERE uuid = $1`

	var doc Document
	err := q.pool.QueryRow(ctx, query, uid).Scan(
		&doc.UID, &doc.Name, &doc.Path, &doc.Topic, &doc.Visibility, &doc.Status, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("get document: %w", err)
	}
	return doc, true, nil
}

func (q *PostgresQuerier) SetStatus(ctx context.Context, uid string, status Status) error {
	const query = `UPDATE documents SET status = $2 WHERE uuid = $1`

	tag, err := q.pool.Exec(ctx, query, uid, string(status))
	if err != nil {
		return fmt.Errorf("set document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *PostgresQuerier) ListByStatus(ctx context.Context, status Status) ([]Document, error) {
	const query = `
		SELECT uuid, name, path, topic, visibility, status, created_at
		FROM documents
		WHERE status = $1
		ORDER BY id`

	rows, err := q.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.UID, &doc.Name, &doc.Path, &doc.Topic, &doc.Visibility, &doc.Status, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
