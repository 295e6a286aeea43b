package chat

import (
	"context"
	"fmt"

	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
	"github.com/ilzarachman/chatbot-helpdesk/internal/intent"
	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
)

// DefaultHistoryWindow is the number of recent turns read back into the
// prompt. Older turns stay persisted but are not resurfaced, bounding
// prompt size no matter how long the conversation runs.
const DefaultHistoryWindow = 2

// HistorySource is the slice of the conversation store the orchestrator
// reads. Writes happen on a separate client-driven call, never here.
type HistorySource interface {
	ReadRecentTurns(ctx context.Context, uid string, owner conversation.Identity, limit int32) ([]conversation.HistoryTurn, error)
}

// IntentClassifier assigns a topic to a message. It never fails; see the
// intent package.
type IntentClassifier interface {
	Classify(ctx context.Context, message string, history []conversation.HistoryTurn) intent.Intent
}

// Request is one inbound chat message.
//
// Identity nil means the caller is anonymous: visibility is forced to
// public and history comes from the request payload, since anonymous
// sessions are never persisted server-side.
type Request struct {
	Message         string
	ConversationUID string
	Identity        *conversation.Identity
	History         []conversation.HistoryTurn
}

// Orchestrator wires classification, routing and handling into one call.
type Orchestrator struct {
	classifier IntentClassifier
	router     *Router
	history    HistorySource
	window     int32
	logger     log.Logger
}

// NewOrchestrator creates an Orchestrator. window <= 0 selects
// DefaultHistoryWindow.
func NewOrchestrator(classifier IntentClassifier, router *Router, history HistorySource, window int, logger log.Logger) *Orchestrator {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{
		classifier: classifier,
		router:     router,
		history:    history,
		window:     int32(window),
		logger:     logger,
	}
}

// Respond answers req with a token stream.
//
// A conversation uid that does not resolve for the caller returns
// conversation.ErrNotFound before any classification happens; a forged or
// stale reference is a client error, not an empty-history fallback.
// Persisting the exchange is the client's separate call after the stream
// completes.
func (o *Orchestrator) Respond(ctx context.Context, req Request) (<-chan Chunk, error) {
	visibility := knowledge.VisibilityRestricted
	var history []conversation.HistoryTurn

	switch {
	case req.Identity == nil:
		visibility = knowledge.VisibilityPublic
		history = windowTail(req.History, int(o.window))
	case req.ConversationUID != "":
		turns, err := o.history.ReadRecentTurns(ctx, req.ConversationUID, *req.Identity, o.window)
		if err != nil {
			return nil, fmt.Errorf("reading history for %s: %w", req.ConversationUID, err)
		}
		history = turns
	}

	topic := o.classifier.Classify(ctx, req.Message, history)
	o.logger.Info("routing message",
		"topic", topic,
		"visibility", visibility,
		"history_turns", len(history))

	return o.router.Handler(topic).Handle(ctx, req.Message, history, visibility), nil
}

// windowTail keeps the most recent n turns in chronological order.
func windowTail(history []conversation.HistoryTurn, n int) []conversation.HistoryTurn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
