// Package chat drives a helpdesk exchange end to end: classify the inbound
// message, route it to the topic handler, retrieve grounding passages and
// stream the generated answer back to the caller.
package chat

import "context"

// SafetyApology is streamed as the final text chunk when the provider
// blocks generation for policy reasons.
const SafetyApology = "Maaf, saya tidak dapat menanggapi pesan tersebut. " +
	"Silakan ajukan pertanyaan lain seputar layanan kampus."

// Chunk is one element of a response stream. Exactly one of Text and Err
// is set; an Err chunk is always the last one before the channel closes,
// so consumers can distinguish a completed stream from a failed one.
type Chunk struct {
	Text string
	Err  error
}

// send delivers one chunk unless the consumer has gone away. It reports
// whether the chunk was accepted.
func send(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
