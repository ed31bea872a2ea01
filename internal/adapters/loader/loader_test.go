package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
	"github.com/0xcro3dile/therapychat-go/internal/domain/ports"
)

var _ ports.DocumentLoader = (*TextLoader)(nil)

func TestTextLoader_LoadTxtFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coping.txt")
	require.NoError(t, os.WriteFile(path, []byte("Take a short walk."), 0o644))

	doc, err := NewTextLoader().Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "Take a short walk.", doc.Content)
	assert.Equal(t, "coping.txt", doc.Name)
	assert.Equal(t, entities.DocumentID(path), doc.ID)
}

func TestTextLoader_DropsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("calm\xffdown"), 0o644))

	doc, err := NewTextLoader().Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "calmdown", doc.Content)
}

func TestTextLoader_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	l := &TextLoader{maxBytes: 5}
	_, err := l.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestTextLoader_SupportedExtensions(t *testing.T) {
	exts := NewTextLoader().SupportedExtensions()
	assert.Contains(t, exts, ".txt")
	assert.Contains(t, exts, ".md")
}

func TestTextLoader_Errors(t *testing.T) {
	l := NewTextLoader()

	_, err := l.Load(context.Background(), "/nonexistent/file.txt")
	assert.Error(t, err)

	_, err = l.Load(context.Background(), t.TempDir())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Load(ctx, "/nonexistent/file.txt")
	assert.ErrorIs(t, err, context.Canceled)
}
