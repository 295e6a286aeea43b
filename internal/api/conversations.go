package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
)

// defaultConversationName is used when title generation fails; naming must
// never block conversation creation.
const defaultConversationName = "Percakapan baru"

// ConversationReader is the slice of the conversation store these
// endpoints use.
type ConversationReader interface {
	Create(ctx context.Context, owner conversation.Identity, name string) (*conversation.Conversation, error)
	List(ctx context.Context, owner conversation.Identity) ([]conversation.Conversation, error)
	Transcript(ctx context.Context, uid string, owner conversation.Identity) (*conversation.Conversation, []conversation.HistoryTurn, error)
}

// Titler names a conversation from its seed assistant message.
type Titler interface {
	Generate(ctx context.Context, seed string) (string, error)
}

// ConversationHandler serves conversation CRUD.
type ConversationHandler struct {
	store  ConversationReader
	titler Titler
	logger log.Logger
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(store ConversationReader, titler Titler, logger log.Logger) *ConversationHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ConversationHandler{store: store, titler: titler, logger: logger}
}

// RegisterRoutes registers conversation routes on the given mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/conversations", h.create)
	mux.HandleFunc("GET /api/conversations", h.list)
	mux.HandleFunc("GET /api/conversations/{uid}/messages", h.messages)
}

type createConversationRequest struct {
	AssistantMessage string `json:"assistant_message"`
}

func (h *ConversationHandler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.AssistantMessage == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "assistant_message is required")
		return
	}

	name, err := h.titler.Generate(r.Context(), req.AssistantMessage)
	if err != nil {
		h.logger.Warn("title generation failed, using default", "error", err)
		name = defaultConversationName
	}

	conv, err := h.store.Create(r.Context(), *identity, name)
	if err != nil {
		h.logger.Error("creating conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "could not create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *ConversationHandler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	convs, err := h.store.List(r.Context(), *identity)
	if err != nil {
		h.logger.Error("listing conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "could not list conversations")
		return
	}
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *ConversationHandler) messages(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	conv, turns, err := h.store.Transcript(r.Context(), r.PathValue("uid"), *identity)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation_not_found", "unknown conversation")
			return
		}
		h.logger.Error("loading transcript", "error", err)
		writeError(w, http.StatusInternalServerError, "transcript_failed", "could not load messages")
		return
	}
	if turns == nil {
		turns = []conversation.HistoryTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     turns,
	})
}
