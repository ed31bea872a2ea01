// Package usecases - retrieve.go answers a question from the knowledge base.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
	"github.com/0xcro3dile/therapychat-go/internal/domain/ports"
)

// InsufficientContextAnswer is what the model is told to reply when the
// retrieved passage does not answer the question.
const InsufficientContextAnswer = "I'm sorry, the context is not enough to answer the question."

// SelectionPolicy picks one passage out of the ranked search results.
type SelectionPolicy struct {
	TopK     int  // Candidates requested from the index
	Rank     int  // Zero-based position of the passage to use
	Fallback bool // Use the top result when fewer than Rank+1 exist
}

// DefaultSelectionPolicy uses the second-ranked passage out of four, falling
// back to the best one when only a single passage exists.
func DefaultSelectionPolicy() SelectionPolicy {
	return SelectionPolicy{TopK: 4, Rank: 1, Fallback: true}
}

func (p SelectionPolicy) normalize() SelectionPolicy {
	if p.Rank < 0 {
		p.Rank = 0
	}
	if p.TopK <= 0 {
		p.TopK = 4
	}
	if p.TopK <= p.Rank {
		p.TopK = p.Rank + 1
	}
	return p
}

// Select returns the passage at Rank. fellBack is true when the top result
// was used instead. With no usable passage the error wraps
// entities.ErrRetrievalShortfall.
func (p SelectionPolicy) Select(results []entities.QueryResult) (picked entities.QueryResult, fellBack bool, err error) {
	if len(results) > p.Rank {
		return results[p.Rank], false, nil
	}
	if p.Fallback && len(results) > 0 {
		return results[0], true, nil
	}
	return entities.QueryResult{}, false, fmt.Errorf("%w: got %d, need %d", entities.ErrRetrievalShortfall, len(results), p.Rank+1)
}

// Retriever answers questions with a passage from the vector index.
type Retriever struct {
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	llm         ports.LLMService
	policy      SelectionPolicy
	logger      zerolog.Logger
}

// NewRetriever creates a Retriever. The vector store handle is shared and is
// only read here.
func NewRetriever(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	llm ports.LLMService,
	policy SelectionPolicy,
	logger zerolog.Logger,
) *Retriever {
	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
		llm:         llm,
		policy:      policy.normalize(),
		logger:      logger.With().Str("component", "retriever").Logger(),
	}
}

// Policy returns the effective selection policy.
func (r *Retriever) Policy() SelectionPolicy { return r.policy }

// Retrieve selects a passage for question and asks the model to answer with it.
func (r *Retriever) Retrieve(ctx context.Context, question string) (*entities.ChatResponse, error) {
	results, err := r.Search(ctx, question)
	if err != nil {
		return nil, err
	}

	picked, fellBack, err := r.policy.Select(results)
	if err != nil {
		return nil, err
	}
	if fellBack {
		r.logger.Warn().
			Int("results", len(results)).
			Int("rank", r.policy.Rank).
			Msg("too few passages for configured rank, using top result")
	}

	r.logger.Debug().
		Str("chunk", picked.Chunk.ID).
		Str("source", picked.SourceDoc).
		Float64("score", picked.Score).
		Msg("passage selected")

	answer, err := r.llm.Generate(ctx, buildRAGPrompt(picked.Chunk.Content, question))
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	return &entities.ChatResponse{
		Answer:  answer,
		Route:   entities.RouteRetrieval,
		Sources: []entities.QueryResult{picked},
	}, nil
}

// Search only retrieves ranked passages without LLM generation.
func (r *Retriever) Search(ctx context.Context, question string) ([]entities.QueryResult, error) {
	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := r.vectorStore.Search(ctx, embedding, r.policy.TopK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	return results, nil
}

// buildRAGPrompt asks the model to blend what it knows with the passage.
func buildRAGPrompt(document, question string) string {
	var sb strings.Builder
	sb.WriteString("Combine what you know and verify it using the Relevant Documents: ")
	sb.WriteString(document)
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\nDon't say \"Based on the provided context\" or \"According to the provided document\" or any such phrases.\n")
	sb.WriteString("If there is no answer, please answer with \"")
	sb.WriteString(InsufficientContextAnswer)
	sb.WriteString("\"\n")
	return sb.String()
}
