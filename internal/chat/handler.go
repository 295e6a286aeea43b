package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
	"github.com/ilzarachman/chatbot-helpdesk/internal/intent"
	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
	"github.com/ilzarachman/chatbot-helpdesk/internal/model"
	"github.com/ilzarachman/chatbot-helpdesk/internal/prompt"
)

// Retriever is the slice of the knowledge store the handlers need.
type Retriever interface {
	Search(ctx context.Context, query, topic string, visibility knowledge.Visibility, k int) (string, error)
}

// TopicHandler answers a message classified into one topic. The returned
// channel is closed when the response is complete; a mid-stream failure is
// delivered in-band as a final error chunk.
type TopicHandler interface {
	Handle(ctx context.Context, message string, history []conversation.HistoryTurn, visibility knowledge.Visibility) <-chan Chunk
}

// topicHandler is the shared strategy behind every topic. Content topics
// ground the prompt with retrieved passages; the fallback topic renders
// its template without retrieval.
type topicHandler struct {
	topic     intent.Intent
	retrieve  bool
	retriever Retriever
	prompts   *prompt.Registry
	generator model.Generator
	topK      int
	logger    log.Logger
}

func (h *topicHandler) Handle(ctx context.Context, message string, history []conversation.HistoryTurn, visibility knowledge.Visibility) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		h.respond(ctx, out, message, history, visibility)
	}()
	return out
}

func (h *topicHandler) respond(ctx context.Context, out chan<- Chunk, message string, history []conversation.HistoryTurn, visibility knowledge.Visibility) {
	var information string
	if h.retrieve {
		query := retrievalQuery(history, message)
		passages, err := h.retriever.Search(ctx, query, h.topic.String(), visibility, h.topK)
		switch {
		case errors.Is(err, knowledge.ErrNoResults):
			// Empty namespace: generation proceeds ungrounded.
		case err != nil:
			send(ctx, out, Chunk{Err: fmt.Errorf("retrieving context: %w", err)})
			return
		default:
			information = passages
		}
	}

	file := "response_generator"
	if visibility == knowledge.VisibilityPublic {
		file = "public_response_generator"
	}
	instruction, err := h.prompts.Render(file, h.topic.String(), struct {
		Information string
	}{information})
	if err != nil {
		send(ctx, out, Chunk{Err: fmt.Errorf("rendering prompt: %w", err)})
		return
	}

	messages := make([]model.Message, 0, 2*len(history)+2)
	messages = append(messages, model.Message{Role: model.RoleSystem, Text: instruction})
	for _, turn := range history {
		messages = append(messages,
			model.Message{Role: model.RoleUser, Text: turn.User},
			model.Message{Role: model.RoleAssistant, Text: turn.Assistant},
		)
	}
	messages = append(messages, model.Message{Role: model.RoleUser, Text: message})

	err = h.generator.Stream(ctx, messages, func(ctx context.Context, text string) error {
		if !send(ctx, out, Chunk{Text: text}) {
			return ctx.Err()
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, model.ErrSafetyBlocked):
		h.logger.Warn("generation safety-blocked", "topic", h.topic)
		send(ctx, out, Chunk{Text: SafetyApology})
	case errors.Is(err, context.Canceled):
	default:
		send(ctx, out, Chunk{Err: fmt.Errorf("generating response: %w", err)})
	}
}

// retrievalQuery concatenates the recent turns with the new message so the
// similarity search sees the conversational context, not just one turn.
func retrievalQuery(history []conversation.HistoryTurn, message string) string {
	var b strings.Builder
	for _, turn := range history {
		b.WriteString(turn.User)
		b.WriteString("\n")
		b.WriteString(turn.Assistant)
		b.WriteString("\n")
	}
	b.WriteString(message)
	return b.String()
}

// Router maps every intent to its handler. Populated once at startup,
// immutable afterwards.
type Router struct {
	handlers map[intent.Intent]TopicHandler
}

// NewRouter builds the full handler set: one grounded handler per content
// topic and the retrieval-free fallback for intent.Other.
func NewRouter(retriever Retriever, prompts *prompt.Registry, generator model.Generator, topK int, logger log.Logger) *Router {
	if logger == nil {
		logger = log.NewNop()
	}

	handlers := make(map[intent.Intent]TopicHandler, len(intent.All()))
	for _, topic := range intent.All() {
		handlers[topic] = &topicHandler{
			topic:     topic,
			retrieve:  topic != intent.Other,
			retriever: retriever,
			prompts:   prompts,
			generator: generator,
			topK:      topK,
			logger:    logger.With("topic", topic),
		}
	}
	return &Router{handlers: handlers}
}

// Handler returns the handler for a topic. Unknown topics get the fallback
// handler, mirroring the classifier's own fallback.
func (r *Router) Handler(topic intent.Intent) TopicHandler {
	if h, ok := r.handlers[topic]; ok {
		return h
	}
	return r.handlers[intent.Other]
}
