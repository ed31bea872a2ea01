// Package loader provides knowledge-base document loaders.
package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
)

// DefaultMaxBytes caps the size of a single document.
const DefaultMaxBytes = 8 << 20

// TextLoader loads plain text documents (.txt, .md).
type TextLoader struct {
	maxBytes int64
}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{maxBytes: DefaultMaxBytes}
}

// Load reads a text document from the given path. Invalid UTF-8 sequences
// are dropped.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), l.maxBytes)
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &entities.Document{
		ID:        entities.DocumentID(path),
		Name:      filepath.Base(path),
		Path:      path,
		Content:   strings.ToValidUTF8(string(content), ""),
		CreatedAt: info.ModTime(),
		UpdatedAt: time.Now(),
	}, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}
