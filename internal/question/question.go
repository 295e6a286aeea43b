// Package question tracks escalated questions the assistant answered
// poorly and feeds staff answers back into the retrieval namespaces, so
// the next caller asking the same thing gets a grounded answer instead of
// another escalation.
package question

import (
	"errors"
	"time"

	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
)

// Question is one escalated question, awaiting or holding a staff answer.
// BotAnswer is what the assistant said at the time; Message carries the
// questioner's own framing of what was wrong or missing.
type Question struct {
	UID             string               `json:"uid"`
	Prompt          string               `json:"prompt"`
	BotAnswer       string               `json:"bot_answer,omitempty"`
	Message         string               `json:"message,omitempty"`
	StaffAnswer     string               `json:"staff_answer,omitempty"`
	Topic           string               `json:"topic,omitempty"`
	Visibility      knowledge.Visibility `json:"visibility"`
	QuestionerEmail string               `json:"questioner_email,omitempty"`
	QuestionerName  string               `json:"questioner_name,omitempty"`
	AnsweredBy      string               `json:"answered_by,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Answered reports whether a staff answer has been recorded.
func (q Question) Answered() bool { return q.StaffAnswer != "" }

// Answer is a staff answer routing the question into a retrieval
// namespace.
type Answer struct {
	Text       string
	Topic      string
	Visibility knowledge.Visibility
	AnsweredBy string
}

// ErrNotFound reports an unknown question uid.
var ErrNotFound = errors.New("question not found")

// ErrAlreadyAnswered reports a second answer to the same question. The
// retrieval namespaces are append-only, so answering twice would embed
// the passage twice.
var ErrAlreadyAnswered = errors.New("question already answered")
