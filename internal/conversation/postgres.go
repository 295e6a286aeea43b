package conversation

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

// InsertConversation creates a conversation row and returns it.
func (q *PostgresQuerier) InsertConversation(ctx context.Context, uid, ownerID string, class IdentityClass, name string) (ConversationRow, error) {
	const query = `
		INSERT INTO conversations (uuid, owner_id, identity_class, name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uuid, name, start_time`

	var row ConversationRow
	err := q.pool.QueryRow(ctx, query, uid, ownerID, int16(class), name).
		Scan(&row.ID, &row.UID, &row.Name, &row.StartTime)
	if err != nil {
		return ConversationRow{}, fmt.Errorf("insert conversation: %w", err)
	}
	return row, nil
}

// GetConversation resolves an external id scoped to its owner.
func (q *PostgresQuerier) GetConversation(ctx context.Context, uid, ownerID string, class IdentityClass) (ConversationRow, bool, error) {
	const query = `
		SELECT id, uuid, name, start_time
		FROM conversations
		WHERE uuid = $1 AND owner_id = $2 AND identity_class = $3`

	var row ConversationRow
	err := q.pool.QueryRow(ctx, query, uid, ownerID, int16(class)).
		Scan(&row.ID, &row.UID, &row.Name, &row.StartTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConversationRow{}, false, nil
	}
	if err != nil {
		return ConversationRow{}, false, fmt.Errorf("get conversation: %w", err)
	}
	return row, true, nil
}

// InsertTurn appends one exchange record.
func (q *PostgresQuerier) InsertTurn(ctx context.Context, conversationID int64, body []byte) error {
	const query = `INSERT INTO messages (conversation_id, body) VALUES ($1, $2)`

	if _, err := q.pool.Exec(ctx, query, conversationID, body); err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// RecentTurns returns the most recent limit records, newest first.
func (q *PostgresQuerier) RecentTurns(ctx context.Context, conversationID int64, limit int32) ([]TurnRow, error) {
	const query = `
		SELECT id, body, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY id DESC
		LIMIT $2`

	rows, err := q.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// AllTurns returns every record in creation order.
func (q *PostgresQuerier) AllTurns(ctx context.Context, conversationID int64) ([]TurnRow, error) {
	const query = `
		SELECT id, body, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY id ASC`

	rows, err := q.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("all turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// ListConversations returns the owner's conversation headers, newest first.
func (q *PostgresQuerier) ListConversations(ctx context.Context, ownerID string, class IdentityClass) ([]ConversationRow, error) {
	const query = `
		SELECT id, uuid, name, start_time
		FROM conversations
		WHERE owner_id = $1 AND identity_class = $2
		ORDER BY start_time DESC`

	rows, err := q.pool.Query(ctx, query, ownerID, int16(class))
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationRow
	for rows.Next() {
		var row ConversationRow
		if err := rows.Scan(&row.ID, &row.UID, &row.Name, &row.StartTime); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanTurns(rows pgx.Rows) ([]TurnRow, error) {
	var out []TurnRow
	for rows.Next() {
		var row TurnRow
		if err := rows.Scan(&row.ID, &row.Body, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
