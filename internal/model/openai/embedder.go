// Package openai implements the embedding backend on the OpenAI API.
package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ilzarachman/chatbot-helpdesk/internal/model"
)

// Embedder turns text into vectors via the OpenAI embeddings endpoint.
// It implements model.Embedder and is safe for concurrent use.
type Embedder struct {
	client    *openai.Client
	modelName string
}

// New creates an OpenAI-backed embedder.
func New(apiKey, modelName string) *Embedder {
	return &Embedder{
		client:    openai.NewClient(apiKey),
		modelName: modelName,
	}
}

// Embed returns the embedding vector for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.modelName),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embed: empty embedding returned")
	}

	return resp.Data[0].Embedding, nil
}

var _ model.Embedder = (*Embedder)(nil)
