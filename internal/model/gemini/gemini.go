// Package gemini implements the generation backend on the Gemini API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
	"github.com/ilzarachman/chatbot-helpdesk/internal/model"
)

// Generator produces text through the Gemini API.
// It implements model.Generator and is safe for concurrent use.
type Generator struct {
	client    *genai.Client
	modelName string
	logger    log.Logger
}

// New creates a Gemini-backed generator.
func New(ctx context.Context, apiKey, modelName string, logger log.Logger) (*Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Generator{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

// Generate returns the full completion for the given messages.
// A provider-side safety block is reported as model.ErrSafetyBlocked.
func (g *Generator) Generate(ctx context.Context, messages []model.Message) (string, error) {
	contents, cfg := convert(messages)

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	if blocked(resp) {
		return "", model.ErrSafetyBlocked
	}

	return resp.Text(), nil
}

// Stream invokes fn for each chunk as the backend produces it. A safety
// block detected mid-stream surfaces as model.ErrSafetyBlocked so the
// caller can substitute its apology message.
func (g *Generator) Stream(ctx context.Context, messages []model.Message, fn model.StreamFunc) error {
	contents, cfg := convert(messages)

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.modelName, contents, cfg) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}

		if blocked(resp) {
			return model.ErrSafetyBlocked
		}

		if text := resp.Text(); text != "" {
			if err := fn(ctx, text); err != nil {
				return err
			}
		}
	}

	return nil
}

// convert maps role-tagged messages to the genai request shape. The system
// message becomes the system instruction; user/assistant turns become
// alternating contents.
func convert(messages []model.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			cfg.SystemInstruction = genai.NewContentFromText(msg.Text, genai.RoleUser)
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleUser))
		}
	}

	return contents, cfg
}

// blocked reports whether the response was stopped by the safety filter.
func blocked(resp *genai.GenerateContentResponse) bool {
	if resp == nil {
		return false
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason == genai.BlockedReasonSafety {
		return true
	}
	for _, cand := range resp.Candidates {
		if cand != nil && cand.FinishReason == genai.FinishReasonSafety {
			return true
		}
	}
	return false
}
