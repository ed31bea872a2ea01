package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/0xcro3dile/therapychat-go/internal/adapters/audio"
	"github.com/0xcro3dile/therapychat-go/internal/adapters/embedding"
	"github.com/0xcro3dile/therapychat-go/internal/adapters/llm"
	"github.com/0xcro3dile/therapychat-go/internal/adapters/loader"
	"github.com/0xcro3dile/therapychat-go/internal/adapters/speech"
	"github.com/0xcro3dile/therapychat-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/therapychat-go/internal/config"
	"github.com/0xcro3dile/therapychat-go/internal/domain/ports"
	"github.com/0xcro3dile/therapychat-go/internal/domain/usecases"
)

// app holds the components shared by every command. The vector store and
// embedding client are built once here and injected.
type app struct {
	cfg         *config.Config
	logger      zerolog.Logger
	store       ports.VectorStore
	closer      io.Closer
	embedder    *embedding.OllamaAdapter
	llm         *llm.OllamaLLMAdapter
	composer    *usecases.Composer
	transcriber ports.Transcriber
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.VectorDB.Path == "" {
		a.store = vectordb.NewInMemoryStore()
		logger.Warn().Msg("vectordb.path is empty, using in-memory store")
	} else {
		store, err := vectordb.NewSQLiteStore(cfg.VectorDB.Path, cfg.VectorDB.Collection)
		if err != nil {
			return nil, fmt.Errorf("opening vector store: %w", err)
		}
		a.store = store
		a.closer = store
		logger.Info().
			Str("path", cfg.VectorDB.Path).
			Str("collection", store.Collection()).
			Msg("vector store opened")
	}

	a.embedder = embedding.NewOllamaAdapter(embedding.Options{
		BaseURL:     cfg.Ollama.BaseURL,
		Model:       cfg.Ollama.EmbeddingModel,
		Timeout:     cfg.Ollama.EmbedTimeout,
		Concurrency: cfg.Ollama.EmbedConcurrency,
	}, logger)

	a.llm = llm.NewOllamaLLMAdapter(llm.Options{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.ChatModel,
		Timeout: cfg.Ollama.ChatTimeout,
	}, logger)

	retriever := usecases.NewRetriever(a.embedder, a.store, a.llm, usecases.SelectionPolicy{
		TopK:     cfg.Retrieval.TopK,
		Rank:     cfg.Retrieval.Rank,
		Fallback: cfg.Retrieval.Fallback,
	}, logger)

	systemPrompt := cfg.Assistant.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = usecases.DefaultSystemPrompt(cfg.Assistant.Referral)
	}
	a.composer = usecases.NewComposer(
		usecases.NewClassifier(cfg.Classifier.Keywords),
		retriever,
		a.llm,
		systemPrompt,
		logger,
	)

	if cfg.Speech.Enabled {
		a.transcriber = speech.NewWhisperTranscriber(speech.Options{
			BaseURL:  cfg.Speech.BaseURL,
			APIKey:   cfg.Speech.APIKey,
			Model:    cfg.Speech.Model,
			Language: cfg.Speech.Language,
			Timeout:  cfg.Speech.Timeout,
		}, logger)
	}

	return a, nil
}

// newConversation builds a session. recorder may be nil.
func (a *app) newConversation(id string, recorder ports.AudioRecorder) *usecases.Conversation {
	opts := []usecases.Option{usecases.WithLogger(a.logger)}
	if a.transcriber != nil {
		opts = append(opts, usecases.WithTranscriber(a.transcriber))
	}
	if recorder != nil {
		opts = append(opts, usecases.WithRecorder(recorder))
	}
	return usecases.NewConversation(id, a.composer, opts...)
}

// newRecorder builds the local capture device, or nil when speech is off.
func (a *app) newRecorder() (ports.AudioRecorder, error) {
	if a.transcriber == nil {
		return nil, nil
	}
	rec, err := audio.NewCommandRecorder(a.cfg.Audio.RecordCommand, a.logger)
	if err != nil {
		return nil, fmt.Errorf("configuring recorder: %w", err)
	}
	return rec, nil
}

func (a *app) newIngest() *usecases.IngestUseCase {
	return usecases.NewIngestUseCase(
		a.embedder,
		a.store,
		loader.NewTextLoader(),
		a.cfg.Ingest.ChunkSize,
		a.cfg.Ingest.ChunkOverlap,
		a.logger,
	)
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
