package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaAdapter_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "hello", req.Prompt)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float32{0.1, 0.2, 0.3},
		})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(Options{BaseURL: server.URL, Model: "test-model"}, zerolog.Nop())
	emb, err := adapter.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Len(t, emb, 3)
}

func TestOllamaAdapter_EmbedBatchKeepsOrder(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float32{float32(len(req.Prompt))},
		})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(Options{BaseURL: server.URL, Model: "m", Concurrency: 3}, zerolog.Nop())
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	results, err := adapter.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	require.Len(t, results, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), results[i][0])
	}
	assert.Equal(t, int32(len(texts)), atomic.LoadInt32(&calls))
}

func TestOllamaAdapter_EmbedBatchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(Options{BaseURL: server.URL}, zerolog.Nop())
	_, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestOllamaAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(Options{BaseURL: server.URL, Model: "test"}, zerolog.Nop())
	_, err := adapter.Embed(context.Background(), "test")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaAdapter_EmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[]}`))
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(Options{BaseURL: server.URL}, zerolog.Nop())
	_, err := adapter.Embed(context.Background(), "test")
	assert.Error(t, err)
}

func TestOllamaAdapter_DefaultValues(t *testing.T) {
	adapter := NewOllamaAdapter(Options{}, zerolog.Nop())
	assert.Equal(t, DefaultBaseURL, adapter.baseURL)
	assert.Equal(t, DefaultModel, adapter.Model())
	assert.Equal(t, 4, adapter.concurrency)
}
