package vectordb

import (
	"context"
	"sync"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
)

// InMemoryStore keeps chunks grouped by document. It is used when no data
// path is configured and in tests; nothing survives a restart.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]entities.Chunk // docID -> chunkID -> chunk
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]map[string]entities.Chunk)}
}

func (s *InMemoryStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		doc, ok := s.docs[c.DocumentID]
		if !ok {
			doc = make(map[string]entities.Chunk)
			s.docs[c.DocumentID] = doc
		}
		doc[c.ID] = c
	}
	return nil
}

func (s *InMemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []entities.QueryResult
	for _, doc := range s.docs {
		for _, c := range doc {
			results = append(results, entities.QueryResult{
				Chunk:     c,
				Score:     cosineSimilarity(embedding, c.Embedding),
				SourceDoc: c.Source,
			})
		}
	}
	return rank(results, topK), nil
}

func (s *InMemoryStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	delete(s.docs, documentID)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.docs = make(map[string]map[string]entities.Chunk)
	s.mu.Unlock()
	return nil
}

// ChunkCount returns the number of stored chunks.
func (s *InMemoryStore) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, doc := range s.docs {
		n += len(doc)
	}
	return n, nil
}
