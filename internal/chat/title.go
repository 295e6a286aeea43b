package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilzarachman/chatbot-helpdesk/internal/model"
	"github.com/ilzarachman/chatbot-helpdesk/internal/prompt"
)

// titleTimeout bounds the naming call; it runs synchronously with
// conversation creation.
const titleTimeout = 15 * time.Second

// TitleGenerator names a conversation from its seed assistant message with
// one short generation call, outside the chat-response path.
type TitleGenerator struct {
	generator model.Generator
	prompts   *prompt.Registry
}

// NewTitleGenerator creates a TitleGenerator.
func NewTitleGenerator(generator model.Generator, prompts *prompt.Registry) *TitleGenerator {
	return &TitleGenerator{generator: generator, prompts: prompts}
}

// Generate returns a display name for a conversation opening with seed.
func (t *TitleGenerator) Generate(ctx context.Context, seed string) (string, error) {
	instruction, err := t.prompts.Render("title_generator", "main_prompt", nil)
	if err != nil {
		return "", fmt.Errorf("rendering title prompt: %w", err)
	}

	titleCtx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	out, err := t.generator.Generate(titleCtx, []model.Message{
		{Role: model.RoleSystem, Text: instruction},
		{Role: model.RoleUser, Text: seed},
	})
	if err != nil {
		return "", fmt.Errorf("generating title: %w", err)
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"'`))
	if title == "" {
		return "", errors.New("empty title")
	}
	return title, nil
}
