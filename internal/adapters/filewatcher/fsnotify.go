// Package filewatcher provides the fsnotify-backed ports.FileWatcher used to
// keep the knowledge base in sync with a documents directory.
package filewatcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/0xcro3dile/therapychat-go/internal/domain/ports"
)

// DefaultDebounce is how long a path must stay quiet before its event is
// emitted. Editors save in several writes; each burst becomes one event.
const DefaultDebounce = 250 * time.Millisecond

// Option configures the watcher.
type Option func(*FSNotifyWatcher)

// WithDebounce sets the quiet period. Zero emits every event as it arrives.
func WithDebounce(d time.Duration) Option {
	return func(w *FSNotifyWatcher) { w.debounce = d }
}

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string // lower-cased, with leading dot
	debounce   time.Duration
	logger     zerolog.Logger
}

// NewFSNotifyWatcher creates a watcher reporting files with the given
// extensions. An empty list selects the knowledge-base text formats.
func NewFSNotifyWatcher(extensions []string, logger zerolog.Logger, opts ...Option) (*FSNotifyWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = []string{".txt", ".md", ".markdown"}
	}
	w := &FSNotifyWatcher{
		watcher:  fw,
		debounce: DefaultDebounce,
		logger:   logger.With().Str("component", "filewatcher").Logger(),
	}
	for _, e := range extensions {
		w.extensions = append(w.extensions, strings.ToLower(e))
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch reports changes under dir and all of its subdirectories until ctx
// is done or Stop is called. Directories created later are watched too.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if _, err := w.addTree(dir); err != nil {
		return nil, err
	}

	out := make(chan ports.FileEvent, 100)
	go w.loop(ctx, dir, out)
	return out, nil
}

func (w *FSNotifyWatcher) loop(ctx context.Context, dir string, out chan<- ports.FileEvent) {
	defer close(out)

	pending := make(map[string]ports.FileOperation)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	emit := func(ev ports.FileEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			var found []ports.FileEvent
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					files, err := w.addTree(event.Name)
					if err != nil {
						w.logger.Warn().Err(err).Str("dir", event.Name).Msg("cannot watch new directory")
					}
					// files written before the directory was watched
					for _, f := range files {
						found = append(found, ports.FileEvent{Path: f, Operation: ports.FileCreated})
					}
				}
			}
			if w.isWatchedExtension(event.Name) {
				if op, ok := translate(event.Op); ok {
					found = append(found, ports.FileEvent{Path: event.Name, Operation: op})
				}
			}
			for _, ev := range found {
				if w.debounce <= 0 {
					if !emit(ev) {
						return
					}
					continue
				}
				op := ev.Operation
				if prev, seen := pending[ev.Path]; seen {
					op = merge(prev, op)
				}
				pending[ev.Path] = op
			}
			if len(found) > 0 && w.debounce > 0 {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			for _, p := range paths {
				if !emit(ports.FileEvent{Path: p, Operation: pending[p]}) {
					return
				}
				delete(pending, p)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Str("dir", dir).Msg("watch error")
		}
	}
}

// addTree watches root and every directory below it. It returns the
// watched-extension files it came across.
func (w *FSNotifyWatcher) addTree(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			return nil
		}
		if !d.IsDir() {
			if w.isWatchedExtension(path) {
				files = append(files, path)
			}
			return nil
		}
		return w.watcher.Add(path)
	})
	return files, err
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

// merge folds a new operation into the pending one for the same path. A
// file created and then written is still new; a delete always wins.
func merge(prev, next ports.FileOperation) ports.FileOperation {
	if prev == ports.FileCreated && next == ports.FileModified {
		return ports.FileCreated
	}
	return next
}

// translate maps an fsnotify op onto a file operation. A rename is reported
// as a delete of the old name; the new name arrives as a create.
func translate(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	}
	return 0, false
}

func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}
