package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ilzarachman/chatbot-helpdesk/internal/chat"
	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
)

// StreamErrorMarker terminates the body of a prompt response whose
// generation failed after tokens were already sent. The status line is on
// the wire by then, so the failure has to be visible in the body itself:
// clients must treat a body ending with this marker as a failed exchange,
// not a short answer.
const StreamErrorMarker = "\n[stream-error]"

// Responder answers one chat request with a token stream.
type Responder interface {
	Respond(ctx context.Context, req chat.Request) (<-chan chat.Chunk, error)
}

// TurnWriter persists one completed exchange.
type TurnWriter interface {
	AppendTurn(ctx context.Context, uid string, owner conversation.Identity, turn conversation.HistoryTurn) error
}

// ChatHandler serves the chat endpoints.
//
// Endpoints:
//   - POST /api/chat/prompt        - authenticated chat, streamed tokens
//   - POST /api/chat/public/prompt - anonymous chat, streamed tokens
//   - POST /api/chat/store         - persist a completed exchange
//
// The prompt endpoints stream plain text chunks and flush after each one.
// A failure after streaming began ends the body with StreamErrorMarker.
// Persisting the exchange is the client's own call after its stream ends,
// because only the client knows the final assembled assistant text.
type ChatHandler struct {
	responder Responder
	turns     TurnWriter
	logger    log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(responder Responder, turns TurnWriter, logger log.Logger) *ChatHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ChatHandler{responder: responder, turns: turns, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat/prompt", h.prompt)
	mux.HandleFunc("POST /api/chat/public/prompt", h.publicPrompt)
	mux.HandleFunc("POST /api/chat/store", h.store)
}

type promptRequest struct {
	Message         string `json:"message"`
	ConversationUID string `json:"conversation_uid,omitempty"`
}

type publicPromptRequest struct {
	Message string                     `json:"message"`
	History []conversation.HistoryTurn `json:"history,omitempty"`
}

type storeRequest struct {
	ConversationUID  string `json:"conversation_uid"`
	UserMessage      string `json:"user_message"`
	AssistantMessage string `json:"assistant_message"`
}

func (h *ChatHandler) prompt(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}

	h.respond(w, r, chat.Request{
		Message:         req.Message,
		ConversationUID: req.ConversationUID,
		Identity:        identity,
	})
}

func (h *ChatHandler) publicPrompt(w http.ResponseWriter, r *http.Request) {
	var req publicPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}

	h.respond(w, r, chat.Request{
		Message: req.Message,
		History: req.History,
	})
}

// respond runs the orchestrator and streams its chunks as plain text.
// Pre-stream failures map to a JSON error; a mid-stream failure ends the
// body with StreamErrorMarker so the caller can tell it from a completed
// stream.
func (h *ChatHandler) respond(w http.ResponseWriter, r *http.Request, req chat.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer cannot stream")
		return
	}

	stream, err := h.responder.Respond(r.Context(), req)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation_not_found", "unknown conversation")
			return
		}
		h.logger.Error("starting chat response", "error", err)
		writeError(w, http.StatusInternalServerError, "chat_failed", "could not start response")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for chunk := range stream {
		if chunk.Err != nil {
			h.logger.Error("mid-stream failure", "error", chunk.Err)
			if _, err := w.Write([]byte(StreamErrorMarker)); err == nil {
				flusher.Flush()
			}
			return
		}
		if _, err := w.Write([]byte(chunk.Text)); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (h *ChatHandler) store(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.ConversationUID == "" || req.UserMessage == "" || req.AssistantMessage == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "conversation_uid, user_message and assistant_message are required")
		return
	}

	turn := conversation.HistoryTurn{User: req.UserMessage, Assistant: req.AssistantMessage}
	if err := h.turns.AppendTurn(r.Context(), req.ConversationUID, *identity, turn); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation_not_found", "unknown conversation")
			return
		}
		h.logger.Error("storing exchange", "error", err)
		writeError(w, http.StatusInternalServerError, "store_failed", "could not store exchange")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "stored"})
}
