package memory

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	"confab/internal/embedding"
)

const collectionName = "turns"

// Result is a single semantic recall hit.
type Result struct {
	ID         string
	Text       string
	Similarity float32
	Metadata   map[string]string
}

// Store keeps model turns in a local vector collection so earlier parts of a
// conversation can be recalled by meaning rather than exact wording.
type Store struct {
	db  *chromem.DB
	col *chromem.Collection
}

// NewStore opens (or creates) the vector store at path. An empty path keeps
// everything in memory, which is what the tests use.
func NewStore(path string, embed chromem.EmbeddingFunc) (*Store, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store at %s: %w", path, err)
		}
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", collectionName, err)
	}
	return &Store{db: db, col: col}, nil
}

// Record stores one turn's text under the given ID. It satisfies the
// conversation loop's TurnRecorder.
func (s *Store) Record(ctx context.Context, id, text string, metadata map[string]string) error {
	if text == "" {
		return nil
	}
	err := s.col.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  text,
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to record turn %s: %w", id, err)
	}
	return nil
}

// Search returns up to limit turns ranked by similarity to the query.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	count := s.col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	hits, err := s.col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			ID:         hit.ID,
			Text:       hit.Content,
			Similarity: hit.Similarity,
			Metadata:   hit.Metadata,
		})
	}
	return results, nil
}

// Count reports how many turns have been recorded.
func (s *Store) Count() int {
	return s.col.Count()
}

// EmbeddingFunc adapts the embedding service to the vector store's interface.
func EmbeddingFunc(svc *embedding.Service) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := svc.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) != 1 {
			return nil, fmt.Errorf("expected one embedding, got %d", len(vectors))
		}
		return vectors[0], nil
	}
}
