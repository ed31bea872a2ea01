package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/therapychat-go/internal/domain/ports"
)

var _ ports.FileWatcher = (*FSNotifyWatcher)(nil)

func TestFSNotifyWatcher_DefaultExtensions(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, zerolog.Nop())
	require.NoError(t, err)
	defer watcher.Stop()

	assert.Equal(t, []string{".txt", ".md", ".markdown"}, watcher.extensions)
}

func TestFSNotifyWatcher_WatchDirectory(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFSNotifyWatcher([]string{".TXT"}, zerolog.Nop())
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644)
	}()

	select {
	case event := <-events:
		assert.Equal(t, ports.FileCreated, event.Operation)
		assert.Equal(t, "notes.txt", filepath.Base(event.Path))
	case <-ctx.Done():
		t.Fatal("timeout waiting for event")
	}
}

func TestFSNotifyWatcher_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFSNotifyWatcher([]string{".txt"}, zerolog.Nop())
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	os.WriteFile(filepath.Join(dir, "test.json"), []byte("{}"), 0o644)

	select {
	case <-events:
		t.Error("should not receive event for .json")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTranslate(t *testing.T) {
	cases := map[fsnotify.Op]ports.FileOperation{
		fsnotify.Create: ports.FileCreated,
		fsnotify.Write:  ports.FileModified,
		fsnotify.Remove: ports.FileDeleted,
		fsnotify.Rename: ports.FileDeleted,
	}
	for op, want := range cases {
		got, ok := translate(op)
		assert.True(t, ok, op.String())
		assert.Equal(t, want, got, op.String())
	}

	_, ok := translate(fsnotify.Chmod)
	assert.False(t, ok)
}

func TestFSNotifyWatcher_Stop(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, watcher.Stop())
}

func TestFSNotifyWatcher_DebounceCoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.md")

	watcher, err := NewFSNotifyWatcher(nil, zerolog.Nop(), WithDebounce(300*time.Millisecond))
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))
	for i := 0; i < 3; i++ {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = f.WriteString(" more")
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	select {
	case event := <-events:
		assert.Equal(t, ports.FileCreated, event.Operation)
		assert.Equal(t, path, event.Path)
	case <-ctx.Done():
		t.Fatal("timeout waiting for event")
	}

	select {
	case event := <-events:
		t.Errorf("burst should yield one event, got extra %s", event.Operation)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestMerge(t *testing.T) {
	assert.Equal(t, ports.FileCreated, merge(ports.FileCreated, ports.FileModified))
	assert.Equal(t, ports.FileDeleted, merge(ports.FileCreated, ports.FileDeleted))
	assert.Equal(t, ports.FileCreated, merge(ports.FileDeleted, ports.FileCreated))
	assert.Equal(t, ports.FileModified, merge(ports.FileModified, ports.FileModified))
}

func TestFSNotifyWatcher_WatchesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "coping", "anxiety")
	require.NoError(t, os.MkdirAll(existing, 0o755))

	watcher, err := NewFSNotifyWatcher(nil, zerolog.Nop(), WithDebounce(0))
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	nested := filepath.Join(existing, "breathing.md")
	require.NoError(t, os.WriteFile(nested, []byte("box breathing"), 0o644))
	waitFor(t, ctx, events, nested)

	// a directory created after Watch is picked up as well
	later := filepath.Join(dir, "sleep")
	require.NoError(t, os.Mkdir(later, 0o755))
	time.Sleep(100 * time.Millisecond)
	fresh := filepath.Join(later, "routine.txt")
	require.NoError(t, os.WriteFile(fresh, []byte("wind down"), 0o644))
	waitFor(t, ctx, events, fresh)
}

func waitFor(t *testing.T, ctx context.Context, events <-chan ports.FileEvent, path string) {
	t.Helper()
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "events closed before %s", path)
			if ev.Path == path {
				assert.NotEqual(t, ports.FileDeleted, ev.Operation)
				return
			}
		case <-ctx.Done():
			t.Fatalf("timeout waiting for event on %s", path)
		}
	}
}
