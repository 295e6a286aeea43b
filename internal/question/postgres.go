package question

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

func (q *PostgresQuerier) InsertQuestion(ctx context.Context, qn Question) error {
	const query = `
		INSERT INTO questions (uuid, prompt, bot_answer, message, visibility, questioner_email, questioner_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := q.pool.Exec(ctx, query,
		qn.UID, qn.Prompt, qn.BotAnswer, qn.Message, string(qn.Visibility), qn.QuestionerEmail, qn.QuestionerName)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (q *PostgresQuerier) GetQuestion(ctx context.Context, uid string) (Question, bool, error) {
	const query = `
		SELECT uuid, prompt, bot_answer, message, staff_answer, topic, visibility,
		       questioner_email, questioner_name, answered_by, created_at
		FROM questions
		WHERE uuid = $1`

	var qn Question
	err := q.pool.QueryRow(ctx, query, uid).Scan(
		&qn.UID, &qn.Prompt, &qn.BotAnswer, &qn.Message, &qn.StaffAnswer, &qn.Topic, &qn.Visibility,
		&qn.QuestionerEmail, &qn.QuestionerName, &qn.AnsweredBy, &qn.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Question{}, false, nil
	}
	if err != nil {
		return Question{}, false, fmt.Errorf("get question: %w", err)
	}
	return qn, true, nil
}

func (q *PostgresQuerier) ListQuestions(ctx context.Context) ([]Question, error) {
	const query = `
		SELECT uuid, prompt, bot_answer, message, staff_answer, topic, visibility,
		       questioner_email, questioner_name, answered_by, created_at
		FROM questions
		ORDER BY id DESC`

	rows, err := q.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var qn Question
		if err := rows.Scan(
			&qn.UID, &qn.Prompt, &qn.BotAnswer, &qn.Message, &qn.StaffAnswer, &qn.Topic, &qn.Visibility,
			&qn.QuestionerEmail, &qn.QuestionerName, &qn.AnsweredBy, &qn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		questions = append(questions, qn)
	}
	return questions, rows.Err()
}

func (q *PostgresQuerier) SetAnswer(ctx context.Context, uid string, ans Answer) error {
	const query = `
		UPDATE questions
		SET staff_answer = $2, topic = $3, visibility = $4, answered_by = $5
		WHERE uuid = $1`

	tag, err := q.pool.Exec(ctx, query, uid, ans.Text, ans.Topic, string(ans.Visibility), ans.AnsweredBy)
	if err != nil {
		return fmt.Errorf("set question answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *PostgresQuerier) DeleteQuestion(ctx context.Context, uid string) error {
	const query = `DELETE FROM questions WHERE uuid = $1`

	tag, err := q.pool.Exec(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
