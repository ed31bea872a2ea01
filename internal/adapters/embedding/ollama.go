// Package embedding provides the Ollama embedding adapter.
// It implements ports.EmbeddingService; the domain layer knows nothing of Ollama.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "mxbai-embed-large:latest"
)

// Options configures the adapter. Zero values select defaults.
type Options struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Concurrency int // Parallel requests in EmbedBatch
}

// OllamaAdapter implements ports.EmbeddingService using the Ollama API.
type OllamaAdapter struct {
	baseURL     string
	model       string
	concurrency int
	client      *http.Client
	logger      zerolog.Logger
}

// NewOllamaAdapter creates a new Ollama embedding adapter.
func NewOllamaAdapter(opts Options, logger zerolog.Logger) *OllamaAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &OllamaAdapter{
		baseURL:     opts.BaseURL,
		model:       opts.Model,
		concurrency: opts.Concurrency,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger.With().Str("component", "embedding").Str("model", opts.Model).Logger(),
	}
}

// Model returns the embedding model name.
func (a *OllamaAdapter) Model() string { return a.model }

// ollamaEmbedRequest is the Ollama API request format.
type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaEmbedResponse is the Ollama API response format.
type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (a *OllamaAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	jsonData, err := json.Marshal(ollamaEmbedRequest{
		Model:  a.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("Ollama returned an empty embedding")
	}

	a.logger.Debug().
		Int("dims", len(embedResp.Embedding)).
		Dur("took", time.Since(start)).
		Msg("embedding generated")
	return embedResp.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts with bounded
// parallelism. Results keep the order of texts; the first error cancels the
// remaining requests.
func (a *OllamaAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(a.concurrency).
		WithCancelOnError().
		WithFirstError()
	for i, text := range texts {
		p.Go(func(ctx context.Context) error {
			emb, err := a.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			embeddings[i] = emb
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}
