// Package embedding batches and validates vector-embedding requests.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"confab/internal/config"
)

// ErrEmbedding is returned when the provider response has no, mismatched, or
// empty embeddings.
var ErrEmbedding = errors.New("embedding request failed")

// Batcher issues one batched embedding call for a set of texts.
type Batcher interface {
	EmbedBatch(ctx context.Context, model string, texts []string) (*genai.BatchEmbedContentsResponse, error)
}

type Service struct {
	transport Batcher
	cfg       *config.Config
}

func NewService(transport Batcher, cfg *config.Config) *Service {
	return &Service{transport: transport, cfg: cfg}
}

// Embed returns one vector per input text, positionally aligned. All texts go
// out in a single batched request; an empty input issues no request at all.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := s.transport.EmbedBatch(ctx, s.cfg.GetEmbeddingModel(), texts)
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings found in API response", ErrEmbedding)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: API returned a mismatched number of embeddings. Expected %d, got %d",
			ErrEmbedding, len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("%w: API returned an empty embedding for input text at index %d: %q",
				ErrEmbedding, i, texts[i])
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}
