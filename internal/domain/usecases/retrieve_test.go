package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
)

// mockLLM implements ports.LLMService for testing
type mockLLM struct {
	response string
	err      error
	prompts  []string
	chats    [][]entities.Turn
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if m.response != "" {
		return m.response, nil
	}
	return "mocked answer", nil
}

func (m *mockLLM) Chat(ctx context.Context, messages []entities.Turn) (string, error) {
	m.chats = append(m.chats, messages)
	if m.err != nil {
		return "", m.err
	}
	if m.response != "" {
		return m.response, nil
	}
	return "mocked reply", nil
}

func passages(contents ...string) []entities.Chunk {
	chunks := make([]entities.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = entities.Chunk{ID: c, DocumentID: "doc", Source: "guide.md", Content: c}
	}
	return chunks
}

func TestSelectionPolicy_Select(t *testing.T) {
	results := []entities.QueryResult{
		{Chunk: entities.Chunk{ID: "first"}},
		{Chunk: entities.Chunk{ID: "second"}},
	}

	picked, fellBack, err := DefaultSelectionPolicy().Select(results)
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Equal(t, "second", picked.Chunk.ID)

	picked, fellBack, err = DefaultSelectionPolicy().Select(results[:1])
	require.NoError(t, err)
	assert.True(t, fellBack)
	assert.Equal(t, "first", picked.Chunk.ID)

	strict := SelectionPolicy{TopK: 4, Rank: 1}
	_, _, err = strict.Select(results[:1])
	assert.ErrorIs(t, err, entities.ErrRetrievalShortfall)

	_, _, err = DefaultSelectionPolicy().Select(nil)
	assert.ErrorIs(t, err, entities.ErrRetrievalShortfall)
}

func TestSelectionPolicy_Normalize(t *testing.T) {
	p := SelectionPolicy{TopK: 1, Rank: 3}.normalize()
	assert.Equal(t, 4, p.TopK)

	p = SelectionPolicy{Rank: -2}.normalize()
	assert.Equal(t, 0, p.Rank)
	assert.Equal(t, 4, p.TopK)
}

func TestRetriever_UsesSecondRankedPassage(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{chunks: passages("top passage", "second passage", "third passage")}
	llm := &mockLLM{response: "Try slow breathing."}
	r := NewRetriever(embedder, store, llm, DefaultSelectionPolicy(), zerolog.Nop())

	resp, err := r.Retrieve(context.Background(), "I feel so anxious lately")
	require.NoError(t, err)

	assert.Equal(t, "Try slow breathing.", resp.Answer)
	assert.Equal(t, entities.RouteRetrieval, resp.Route)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "second passage", resp.Sources[0].Chunk.Content)

	assert.Equal(t, []string{"I feel so anxious lately"}, embedder.queries)
	assert.Equal(t, 4, store.lastTopK)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "second passage")
	assert.Contains(t, llm.prompts[0], "Question: I feel so anxious lately")
	assert.Contains(t, llm.prompts[0], InsufficientContextAnswer)
	assert.NotContains(t, llm.prompts[0], "top passage")
}

func TestRetriever_SingleCandidateFallsBack(t *testing.T) {
	store := &mockVectorStore{chunks: passages("only passage")}
	llm := &mockLLM{}
	r := NewRetriever(&mockEmbedder{}, store, llm, DefaultSelectionPolicy(), zerolog.Nop())

	resp, err := r.Retrieve(context.Background(), "panic attacks")
	require.NoError(t, err)
	assert.Equal(t, "only passage", resp.Sources[0].Chunk.Content)
}

func TestRetriever_SingleCandidateStrict(t *testing.T) {
	store := &mockVectorStore{chunks: passages("only passage")}
	llm := &mockLLM{}
	r := NewRetriever(&mockEmbedder{}, store, llm, SelectionPolicy{TopK: 4, Rank: 1}, zerolog.Nop())

	_, err := r.Retrieve(context.Background(), "panic attacks")
	assert.ErrorIs(t, err, entities.ErrRetrievalShortfall)
	assert.Empty(t, llm.prompts, "model must not be called without a passage")
}

func TestRetriever_EmptyIndex(t *testing.T) {
	r := NewRetriever(&mockEmbedder{}, &mockVectorStore{}, &mockLLM{}, DefaultSelectionPolicy(), zerolog.Nop())

	_, err := r.Retrieve(context.Background(), "stress")
	assert.ErrorIs(t, err, entities.ErrRetrievalShortfall)
}

func TestRetriever_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")

	embedder := &mockEmbedder{embedFn: func(string) ([]float32, error) { return nil, boom }}
	r := NewRetriever(embedder, &mockVectorStore{}, &mockLLM{}, DefaultSelectionPolicy(), zerolog.Nop())
	_, err := r.Retrieve(context.Background(), "stress")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "embedding query")

	r = NewRetriever(&mockEmbedder{}, &mockVectorStore{searchErr: boom}, &mockLLM{}, DefaultSelectionPolicy(), zerolog.Nop())
	_, err = r.Retrieve(context.Background(), "stress")
	assert.ErrorContains(t, err, "searching vectors")

	store := &mockVectorStore{chunks: passages("a", "b")}
	r = NewRetriever(&mockEmbedder{}, store, &mockLLM{err: boom}, DefaultSelectionPolicy(), zerolog.Nop())
	_, err = r.Retrieve(context.Background(), "stress")
	assert.ErrorIs(t, err, boom)
}
