package knowledge

import "strings"

// Chunker splits long text into bounded, overlapping chunks for embedding.
// Size and Overlap are measured in runes; Overlap must be smaller than Size.
type Chunker struct {
	Size    int
	Overlap int
}

// Split returns the chunks of text in order. Whitespace-only input yields no
// chunks. Text shorter than Size is returned as a single chunk.
func (c Chunker) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if len(runes) <= c.Size {
		return []string{trimmed}
	}

	step := c.Size - c.Overlap
	if step <= 0 {
		step = c.Size
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}
