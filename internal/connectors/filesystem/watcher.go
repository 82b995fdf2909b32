package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/logger"
)

// settleDelay is how long the watcher waits after a write event before
// reading the file, so half-copied exports are not picked up mid-write.
const settleDelay = 200 * time.Millisecond

// Watcher streams raw inputs for files dropped into a directory tree.
type Watcher struct {
	scanner *Scanner
	fsw     *fsnotify.Watcher
}

// NewWatcher creates a watcher reading files with the given scanner.
func NewWatcher(scanner *Scanner) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{scanner: scanner, fsw: fsw}, nil
}

// Watch begins watching root and every non-hidden subdirectory.
// Created and rewritten files arrive on the returned channel until the
// context is cancelled; the channel closes on shutdown.
func (w *Watcher) Watch(ctx context.Context, root string) (<-chan domain.RawInput, error) {
	if err := w.addRecursive(root); err != nil {
		return nil, err
	}

	inputs := make(chan domain.RawInput)
	go w.run(ctx, inputs)
	return inputs, nil
}

// Close releases the underlying filesystem watches.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// run pumps fsnotify events into raw inputs.
func (w *Watcher) run(ctx context.Context, inputs chan<- domain.RawInput) {
	defer close(inputs)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event, inputs)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// handleEvent reacts to one filesystem event. New directories join the
// watch set; created or rewritten files are read and forwarded.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event, inputs chan<- domain.RawInput) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if isHidden(filepath.Base(event.Name)) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Removed or renamed away before we got here.
		return
	}

	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addRecursive(event.Name); err != nil {
				logger.Warn("watching new directory %s: %v", event.Name, err)
			}
		}
		return
	}

	// Let the writer finish before reading.
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return
	}

	input, ok, err := w.scanner.read(event.Name)
	if err != nil {
		logger.Warn("reading watched file %s: %v", event.Name, err)
		return
	}
	if !ok {
		return
	}

	select {
	case inputs <- input:
	case <-ctx.Done():
	}
}

// addRecursive watches root and all its non-hidden subdirectories.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if isHidden(d.Name()) && path != root {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
