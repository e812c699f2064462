// Package embedding implements chunking and embedding generation (C6):
// text is split into ordered, overlapping chunks, then embedded in
// batches through whichever embedder is registered, falling back to a
// deterministic local embedder when no remote provider is configured.
package embedding

import "strings"

const (
	// DefaultChunkSize is the target chunk length in runes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is how much of the previous chunk's tail is
	// repeated at the head of the next chunk, preserving context across
	// a chunk boundary for retrieval.
	DefaultChunkOverlap = 150
)

// Chunk is one ordered, overlapping slice of the source text.
type Chunk struct {
	Index   int
	Content string
}

// Chunker splits text into ordered chunks with overlap.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split breaks text into chunks of (approximately) c.size runes, each
// chunk after the first repeating the last c.overlap runes of its
// predecessor. Splitting prefers paragraph and sentence boundaries within
// the window so a chunk rarely ends mid-word.
func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.size {
		return []Chunk{{Index: 0, Content: text}}
	}

	var chunks []Chunk
	start := 0
	index := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = boundaryNear(runes, start, end)
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, Chunk{Index: index, Content: content})
			index++
		}

		if end >= len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// boundaryNear looks backward from end (within the current window) for a
// paragraph break, then a sentence break, falling back to the raw cut
// point if neither is found close enough to be useful.
func boundaryNear(runes []rune, start, end int) int {
	const lookback = 200
	floor := end - lookback
	if floor < start {
		floor = start
	}

	for i := end; i > floor; i-- {
		if i >= 2 && runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if runes[i-1] == '.' || runes[i-1] == '!' || runes[i-1] == '?' {
			return i
		}
	}
	return end
}
