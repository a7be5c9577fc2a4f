package brainy

import (
	"context"
	"errors"
)

// Embedder is the external collaborator that turns text into vectors
// (§6). The core calls it at most once per ingest and once per text
// query; it is not implemented here — callers supply their own (OpenAI,
// local model server, etc.) through Config.Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if s.config.Embedder == nil {
		return nil, wrapErr("embed", KindEmbeddingFailed, text, errors.New("no embedder configured"))
	}
	vec, err := s.config.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, wrapErr("embed", KindEmbeddingFailed, text, err)
	}
	return vec, nil
}
