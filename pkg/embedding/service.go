package embedding

import (
	"context"
	"fmt"
)

// EmbeddedChunk pairs one ordered chunk with its embedding vector.
type EmbeddedChunk struct {
	Chunk
	Vector []float32
}

// Service drives chunking followed by batched embedding, preserving the
// chunker's stable ordering end to end.
type Service struct {
	chunker  *Chunker
	embedder Embedder
}

func NewService(chunker *Chunker, embedder Embedder) *Service {
	return &Service{chunker: chunker, embedder: embedder}
}

// EmbedText chunks text and embeds every chunk, returning them in the
// same order the chunker produced them.
func (s *Service) EmbedText(ctx context.Context, text string) ([]EmbeddedChunk, error) {
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding: embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding: embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	out := make([]EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = EmbeddedChunk{Chunk: c, Vector: vectors[i]}
	}
	return out, nil
}
