package intent

import (
	"context"
	"time"

	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
	"github.com/ilzarachman/chatbot-helpdesk/internal/model"
	"github.com/ilzarachman/chatbot-helpdesk/internal/prompt"
)

// classifyTimeout bounds one classification call. Classification is a
// gate on every chat request, so it fails fast.
const classifyTimeout = 15 * time.Second

// Classifier assigns an Intent to a message using one generation call.
//
// Classification never returns an error: a backend failure, empty output
// or unrecognized completion all resolve to Other, so a flaky classifier
// degrades to the generic handler instead of blocking the pipeline.
type Classifier struct {
	generator model.Generator
	prompts   *prompt.Registry
	logger    log.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(generator model.Generator, prompts *prompt.Registry, logger log.Logger) *Classifier {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Classifier{
		generator: generator,
		prompts:   prompts,
		logger:    logger,
	}
}

// Classify determines the topic of message given the recent history.
func (c *Classifier) Classify(ctx context.Context, message string, history []conversation.HistoryTurn) Intent {
	instruction, err := c.prompts.Render("intent_classification", "main_prompt", struct {
		Intents string
	}{Catalog()})
	if err != nil {
		c.logger.Warn("intent instruction unavailable, falling back", "error", err)
		return Other
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

	classifyCtx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	out, err := c.generator.Generate(classifyCtx, messages)
	if err != nil {
		c.logger.Warn("intent classification failed, falling back", "error", err)
		return Other
	}

	intent, ok := Parse(out)
	if !ok {
		c.logger.Warn("unrecognized intent output, falling back", "output", out)
	}

	c.logger.Debug("message classified", "intent", intent)
	return intent
}
