package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
	"github.com/ilzarachman/chatbot-helpdesk/internal/intent"
	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
	"github.com/ilzarachman/chatbot-helpdesk/internal/question"
)

// QuestionStore is the slice of the question store these endpoints use.
type QuestionStore interface {
	Create(ctx context.Context, q question.Question) (question.Question, error)
	List(ctx context.Context) ([]question.Question, error)
	Answer(ctx context.Context, uid string, ans question.Answer) (question.Question, error)
	Delete(ctx context.Context, uid string) error
}

// QuestionHandler serves question escalation. Any caller can escalate a
// question the assistant answered poorly; reviewing, answering and
// deleting are staff work, and an accepted answer lands in the retrieval
// namespaces.
type QuestionHandler struct {
	store  QuestionStore
	logger log.Logger
}

// NewQuestionHandler creates a question handler.
func NewQuestionHandler(store QuestionStore, logger log.Logger) *QuestionHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &QuestionHandler{store: store, logger: logger}
}

// RegisterRoutes registers question routes on the given mux.
func (h *QuestionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/questions", h.create)
	mux.HandleFunc("POST /api/questions/public", h.createPublic)
	mux.HandleFunc("GET /api/questions", h.list)
	mux.HandleFunc("POST /api/questions/{uid}/answer", h.answer)
	mux.HandleFunc("DELETE /api/questions/{uid}", h.delete)
}

type createQuestionRequest struct {
	Prompt          string `json:"prompt"`
	BotAnswer       string `json:"bot_answer,omitempty"`
	Message         string `json:"message,omitempty"`
	QuestionerEmail string `json:"questioner_email,omitempty"`
	QuestionerName  string `json:"questioner_name,omitempty"`
}

func (h *QuestionHandler) create(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}
	h.escalate(w, r, knowledge.VisibilityRestricted, false)
}

// createPublic accepts escalations from anonymous callers. The contact
// email is mandatory there; without an account it is the only way to
// reach the questioner.
func (h *QuestionHandler) createPublic(w http.ResponseWriter, r *http.Request) {
	h.escalate(w, r, knowledge.VisibilityPublic, true)
}

func (h *QuestionHandler) escalate(w http.ResponseWriter, r *http.Request, visibility knowledge.Visibility, requireEmail bool) {
	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "missing_prompt", "prompt is required")
		return
	}
	if requireEmail && req.QuestionerEmail == "" {
		writeError(w, http.StatusBadRequest, "missing_email", "questioner_email is required")
		return
	}

	q, err := h.store.Create(r.Context(), question.Question{
		Prompt:          req.Prompt,
		BotAnswer:       req.BotAnswer,
		Message:         req.Message,
		Visibility:      visibility,
		QuestionerEmail: req.QuestionerEmail,
		QuestionerName:  req.QuestionerName,
	})
	if err != nil {
		h.logger.Error("recording question", "error", err)
		writeError(w, http.StatusInternalServerError, "question_failed", "could not record question")
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *QuestionHandler) list(w http.ResponseWriter, r *http.Request) {
	if !h.requireStaff(w, r) {
		return
	}

	questions, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("listing questions", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "could not list questions")
		return
	}
	if questions == nil {
		questions = []question.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

type answerQuestionRequest struct {
	Answer     string `json:"answer"`
	Topic      string `json:"topic"`
	Visibility string `json:"visibility,omitempty"`
}

func (h *QuestionHandler) answer(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if identity.Class != conversation.ClassStaff {
		writeError(w, http.StatusForbidden, "staff_only", "answering questions requires staff access")
		return
	}

	var req answerQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Answer == "" {
		writeError(w, http.StatusBadRequest, "missing_answer", "answer is required")
		return
	}

	// The fallback topic has no retrieval namespace, so an answer cannot
	// land there.
	topic, ok := intent.Parse(req.Topic)
	if !ok || topic == intent.Other {
		writeError(w, http.StatusBadRequest, "invalid_topic", "unknown topic")
		return
	}

	visibility := knowledge.Visibility(req.Visibility)
	if visibility == "" {
		visibility = knowledge.VisibilityRestricted
	}
	if visibility != knowledge.VisibilityRestricted && visibility != knowledge.VisibilityPublic {
		writeError(w, http.StatusBadRequest, "invalid_visibility", "visibility must be restricted or public")
		return
	}

	q, err := h.store.Answer(r.Context(), r.PathValue("uid"), question.Answer{
		Text:       req.Answer,
		Topic:      topic.String(),
		Visibility: visibility,
		AnsweredBy: identity.ID,
	})
	switch {
	case errors.Is(err, question.ErrNotFound):
		writeError(w, http.StatusNotFound, "question_not_found", "unknown question")
		return
	case errors.Is(err, question.ErrAlreadyAnswered):
		writeError(w, http.StatusConflict, "already_answered", "question already has an answer")
		return
	case err != nil:
		h.logger.Error("answering question", "error", err)
		writeError(w, http.StatusInternalServerError, "answer_failed", "could not record answer")
		return
	}

	writeJSON(w, http.StatusOK, q)
}

func (h *QuestionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if !h.requireStaff(w, r) {
		return
	}

	if err := h.store.Delete(r.Context(), r.PathValue("uid")); err != nil {
		if errors.Is(err, question.ErrNotFound) {
			writeError(w, http.StatusNotFound, "question_not_found", "unknown question")
			return
		}
		h.logger.Error("deleting question", "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "could not delete question")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *QuestionHandler) requireStaff(w http.ResponseWriter, r *http.Request) bool {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return false
	}
	if identity.Class != conversation.ClassStaff {
		writeError(w, http.StatusForbidden, "staff_only", "question review requires staff access")
		return false
	}
	return true
}
