// Package watcher triggers incremental rebuilds when site content or
// templates change on disk. Events are debounced so one editor save burst
// becomes one rebuild.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arcadeforge/arcadeforge/internal/logging"
)

// ChangeEvent is one debounced batch member.
type ChangeEvent struct {
	Path string
	Op   fsnotify.Op
}

// RebuildFunc runs one rebuild for a batch of changes.
type RebuildFunc func(ctx context.Context, events []ChangeEvent) error

// Watcher observes content and template directories and invokes the
// rebuild callback after the debounce window closes.
type Watcher struct {
	fs       *fsnotify.Watcher
	delay    time.Duration
	rebuild  RebuildFunc
	log      logging.Logger
	mutex    sync.Mutex
	pending  []ChangeEvent
	timer    *time.Timer
	triggers chan []ChangeEvent
}

// New creates a watcher with the given debounce delay.
func New(delay time.Duration, rebuild RebuildFunc, log logging.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fs:       fs,
		delay:    delay,
		rebuild:  rebuild,
		log:      log.WithComponent("watcher"),
		triggers: make(chan []ChangeEvent, 4),
	}, nil
}

// AddRecursive watches root and every subdirectory. New subdirectories
// created later are picked up when their create events arrive.
func (w *Watcher) AddRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			return w.fs.Add(path)
		}
		return nil
	})
}

// Start runs the watch loop until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	go w.rebuildLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(ctx, err, "watch error")
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if ignored(event.Name) {
		return
	}

	// Watch directories as they appear so new game folders are covered.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.fs.Add(event.Name)
		}
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.pending = append(w.pending, ChangeEvent{Path: event.Name, Op: event.Op})

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.flush)
}

func (w *Watcher) flush() {
	w.mutex.Lock()
	batch := w.pending
	w.pending = nil
	w.mutex.Unlock()

	if len(batch) == 0 {
		return
	}

	select {
	case w.triggers <- batch:
	default:
		// A rebuild is already queued; the next run picks the changes up
		// through the content fingerprints anyway.
	}
}

func (w *Watcher) rebuildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-w.triggers:
			w.log.Info(ctx, "changes detected, rebuilding", "files", len(batch))
			if err := w.rebuild(ctx, batch); err != nil {
				w.log.Error(ctx, err, "rebuild failed")
			}
		}
	}
}

// ignored filters editor noise and build byproducts.
func ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return true
	}
	switch filepath.Ext(base) {
	case ".swp", ".swx", ".tmp":
		return true
	}
	return false
}
