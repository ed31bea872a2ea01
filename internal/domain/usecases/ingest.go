// Package usecases contains application business rules.
// Usecases orchestrate entities and depend on port interfaces only.
package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
	"github.com/0xcro3dile/therapychat-go/internal/domain/ports"
)

// IngestUseCase builds the knowledge base the retriever searches.
type IngestUseCase struct {
	embedder     ports.EmbeddingService
	vectorStore  ports.VectorStore
	loader       ports.DocumentLoader
	chunkSize    int
	chunkOverlap int
	logger       zerolog.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	loader ports.DocumentLoader,
	chunkSize, chunkOverlap int,
	logger zerolog.Logger,
) *IngestUseCase {
	if chunkSize <= 0 {
		chunkSize = 500 // characters
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 50
	}
	return &IngestUseCase{
		embedder:     embedder,
		vectorStore:  vectorStore,
		loader:       loader,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest chunks, embeds and stores a document, replacing any earlier version.
// It returns the number of chunks stored.
func (uc *IngestUseCase) Ingest(ctx context.Context, doc *entities.Document) (int, error) {
	chunks := uc.chunkDocument(doc)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %s: %w", doc.Name, err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding %s: got %d vectors for %d chunks", doc.Name, len(embeddings), len(chunks))
	}

	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := uc.vectorStore.Delete(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("replacing %s: %w", doc.Name, err)
	}
	if err := uc.vectorStore.Store(ctx, chunks); err != nil {
		return 0, fmt.Errorf("storing %s: %w", doc.Name, err)
	}
	return len(chunks), nil
}

// IngestFile loads and ingests one file.
func (uc *IngestUseCase) IngestFile(ctx context.Context, path string) (int, error) {
	doc, err := uc.loader.Load(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", path, err)
	}
	n, err := uc.Ingest(ctx, doc)
	if err != nil {
		return 0, err
	}
	uc.logger.Info().Str("file", path).Int("chunks", n).Msg("document ingested")
	return n, nil
}

// IngestDir ingests every supported file under dir. It returns the number of
// documents ingested. A file that fails is logged and skipped; only an
// unreadable dir or a cancelled ctx stops the walk.
func (uc *IngestUseCase) IngestDir(ctx context.Context, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			uc.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !uc.supported(path) {
			return nil
		}
		if _, err := uc.IngestFile(ctx, path); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			uc.logger.Error().Err(err).Str("file", path).Msg("ingest failed")
			return nil
		}
		count++
		return nil
	})
	return count, err
}

// Delete removes a document from the store.
func (uc *IngestUseCase) Delete(ctx context.Context, documentID string) error {
	return uc.vectorStore.Delete(ctx, documentID)
}

// Sync applies watcher events to the store until ctx is done or the event
// channel closes. Failures on single files are logged and skipped.
func (uc *IngestUseCase) Sync(ctx context.Context, events <-chan ports.FileEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			uc.apply(ctx, ev)
		}
	}
}

func (uc *IngestUseCase) apply(ctx context.Context, ev ports.FileEvent) {
	log := uc.logger.With().Str("file", ev.Path).Str("op", ev.Operation.String()).Logger()
	switch ev.Operation {
	case ports.FileCreated, ports.FileModified:
		if _, err := uc.IngestFile(ctx, ev.Path); err != nil {
			log.Error().Err(err).Msg("ingest failed")
		}
	case ports.FileDeleted:
		if err := uc.Delete(ctx, entities.DocumentID(ev.Path)); err != nil {
			log.Error().Err(err).Msg("delete failed")
			return
		}
		log.Info().Msg("document removed")
	}
}

func (uc *IngestUseCase) supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range uc.loader.SupportedExtensions() {
		if ext == e {
			return true
		}
	}
	return false
}

// chunkDocument splits document content into overlapping chunks.
func (uc *IngestUseCase) chunkDocument(doc *entities.Document) []entities.Chunk {
	content := strings.TrimSpace(doc.Content)
	if len(content) == 0 {
		return nil
	}

	var chunks []entities.Chunk
	start := 0
	index := 0

	for start < len(content) {
		end := start + uc.chunkSize
		if end > len(content) {
			end = len(content)
		}

		// Break at a word boundary when possible
		if end < len(content) {
			lastSpace := strings.LastIndex(content[start:end], " ")
			if lastSpace > uc.chunkOverlap {
				end = start + lastSpace
			}
		}
		end = runeBoundary(content, end, start)

		chunkContent := strings.TrimSpace(content[start:end])
		if len(chunkContent) > 0 {
			chunks = append(chunks, entities.Chunk{
				ID:         generateChunkID(doc.ID, index),
				DocumentID: doc.ID,
				Source:     doc.Name,
				Content:    chunkContent,
				Index:      index,
			})
			index++
		}

		if end >= len(content) {
			break
		}
		next := end - uc.chunkOverlap
		for next > start && next < end && !utf8.RuneStart(content[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// runeBoundary moves end back to the start of the rune it splits. When that
// would leave nothing after start, it moves forward past the rune instead.
func runeBoundary(content string, end, start int) int {
	e := end
	for e > start && e < len(content) && !utf8.RuneStart(content[e]) {
		e--
	}
	if e > start {
		return e
	}
	e = end
	for e < len(content) && !utf8.RuneStart(content[e]) {
		e++
	}
	return e
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(docID + ":" + strconv.Itoa(index)))
	return hex.EncodeToString(hash[:8])
}
