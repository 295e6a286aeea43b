package question

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
)

// Querier defines the database operations the Store needs; postgres.go
// provides the pgx implementation and tests substitute mocks.
type Querier interface {
	InsertQuestion(ctx context.Context, q Question) error
	GetQuestion(ctx context.Context, uid string) (Question, bool, error)
	ListQuestions(ctx context.Context) ([]Question, error)
	SetAnswer(ctx context.Context, uid string, ans Answer) error
	DeleteQuestion(ctx context.Context, uid string) error
}

// Ingestor is the slice of the knowledge store an answered question is
// written through.
type Ingestor interface {
	Ingest(ctx context.Context, text, topic string, visibility knowledge.Visibility) error
}

// Store persists escalated questions and turns staff answers into
// retrievable passages.
type Store struct {
	querier  Querier
	ingestor Ingestor
	logger   log.Logger
}

// New creates a Store.
func New(querier Querier, ingestor Ingestor, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{querier: querier, ingestor: ingestor, logger: logger}
}

// Create records a new escalated question. The uid and answer fields are
// server-assigned; whatever the caller put there is discarded.
func (s *Store) Create(ctx context.Context, q Question) (Question, error) {
	q.UID = uuid.NewString()
	q.StaffAnswer = ""
	q.Topic = ""
	q.AnsweredBy = ""
	if q.Visibility == "" {
		q.Visibility = knowledge.VisibilityRestricted
	}
	if err := s.querier.InsertQuestion(ctx, q); err != nil {
		return Question{}, fmt.Errorf("recording question: %w", err)
	}
	s.logger.Info("question escalated", "uid", q.UID)
	return q, nil
}

// Get returns one question by uid.
func (s *Store) Get(ctx context.Context, uid string) (Question, error) {
	q, ok, err := s.querier.GetQuestion(ctx, uid)
	if err != nil {
		return Question{}, fmt.Errorf("loading question %s: %w", uid, err)
	}
	if !ok {
		return Question{}, ErrNotFound
	}
	return q, nil
}

// List returns all escalated questions, newest first.
func (s *Store) List(ctx context.Context) ([]Question, error) {
	questions, err := s.querier.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing questions: %w", err)
	}
	return questions, nil
}

// Answer records a staff answer and embeds the question and answer as one
// passage into the (topic, visibility) namespace. Embedding runs first:
// if it fails the question stays unanswered and the staff member retries,
// instead of an answered row the knowledge store never saw.
func (s *Store) Answer(ctx context.Context, uid string, ans Answer) (Question, error) {
	q, err := s.Get(ctx, uid)
	if err != nil {
		return Question{}, err
	}
	if q.Answered() {
		return Question{}, fmt.Errorf("%w: %s", ErrAlreadyAnswered, uid)
	}

	if err := s.ingestor.Ingest(ctx, passage(q.Prompt, ans.Text), ans.Topic, ans.Visibility); err != nil {
		return Question{}, fmt.Errorf("embedding answered question %s: %w", uid, err)
	}
	if err := s.querier.SetAnswer(ctx, uid, ans); err != nil {
		return Question{}, fmt.Errorf("recording answer for %s: %w", uid, err)
	}

	q.StaffAnswer = ans.Text
	q.Topic = ans.Topic
	q.Visibility = ans.Visibility
	q.AnsweredBy = ans.AnsweredBy
	s.logger.Info("question answered",
		"uid", uid,
		"topic", ans.Topic,
		"visibility", ans.Visibility)
	return q, nil
}

// Delete removes a question.
func (s *Store) Delete(ctx context.Context, uid string) error {
	if err := s.querier.DeleteQuestion(ctx, uid); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting question %s: %w", uid, err)
	}
	return nil
}

// passage renders an answered question as one retrievable passage.
func passage(prompt, answer string) string {
	return fmt.Sprintf("Pertanyaan: %s\nJawaban: %s", prompt, answer)
}
