// Package llm provides the Ollama LLM adapter implementing ports.LLMService.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1"
)

// Options configures the adapter. Zero values select defaults.
type Options struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaLLMAdapter implements ports.LLMService using the Ollama API.
type OllamaLLMAdapter struct {
	baseURL string
	model   string
	client  *http.Client
	logger  zerolog.Logger
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(opts Options, logger zerolog.Logger) *OllamaLLMAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 300 * time.Second
	}
	return &OllamaLLMAdapter{
		baseURL: opts.BaseURL,
		model:   opts.Model,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger.With().Str("component", "llm").Str("model", opts.Model).Logger(),
	}
}

// Model returns the chat model name.
func (a *OllamaLLMAdapter) Model() string { return a.model }

// ollamaGenerateRequest is the Ollama generate API request.
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaGenerateResponse is the Ollama generate API response.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest is the Ollama chat API request.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

// ollamaChatResponse is the Ollama chat API response.
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Generate completes a single prompt via /api/generate.
func (a *OllamaLLMAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	var genResp ollamaGenerateResponse
	err := a.post(ctx, "/api/generate", ollamaGenerateRequest{
		Model:  a.model,
		Prompt: prompt,
		Stream: false,
	}, &genResp)
	if err != nil {
		return "", err
	}
	return genResp.Response, nil
}

// Chat completes a role-tagged message list via /api/chat.
func (a *OllamaLLMAdapter) Chat(ctx context.Context, messages []entities.Turn) (string, error) {
	wire := make([]ollamaMessage, len(messages))
	for i, m := range messages {
		wire[i] = ollamaMessage{Role: string(m.Role), Content: m.Content}
	}

	var chatResp ollamaChatResponse
	err := a.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    a.model,
		Messages: wire,
		Stream:   false,
	}, &chatResp)
	if err != nil {
		return "", err
	}
	return chatResp.Message.Content, nil
}

func (a *OllamaLLMAdapter) post(ctx context.Context, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	a.logger.Debug().Str("path", path).Dur("took", time.Since(start)).Msg("completion received")
	return nil
}
