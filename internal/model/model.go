// Package model defines the text generation and embedding backend contracts
// and a static registry mapping model identifiers to factory functions.
//
// Backends are external network services; every operation takes a context
// and cancellation must propagate into the underlying client call.
package model

import (
	"context"
	"errors"
)

// Role tags a message within a prompt.
type Role string

// Prompt roles. A prompt is one system message followed by alternating
// user/assistant turns, ending in the new user turn.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a role-tagged piece of prompt text.
type Message struct {
	Role Role
	Text string
}

// StreamFunc receives each chunk of generated text as it arrives.
// Returning an error aborts the stream.
type StreamFunc func(ctx context.Context, chunk string) error

// Generator produces text from an ordered list of role-tagged messages.
type Generator interface {
	// Generate returns the full completion in one call.
	Generate(ctx context.Context, messages []Message) (string, error)

	// Stream invokes fn for each chunk as the backend produces it.
	// The first byte reaches fn before generation finishes.
	Stream(ctx context.Context, messages []Message, fn StreamFunc) error
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrSafetyBlocked reports that the provider refused to answer for policy
// reasons. Callers map this to a fixed conversational apology rather than
// surfacing it as a raw error.
var ErrSafetyBlocked = errors.New("generation blocked by safety filter")
