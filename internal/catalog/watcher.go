package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ai_orchestrator/internal/utils"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads a YAML table file into a Catalog when it changes.
// Invalid files are logged and the previous tables stay active.
type Watcher struct {
	path    string
	catalog *Catalog
	watcher *fsnotify.Watcher
	logger  *utils.Logger

	onReload func(error)

	mu       sync.Mutex
	debounce *time.Timer

	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewWatcher watches the directory of path so editors that replace the file are seen
func NewWatcher(path string, c *Catalog) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:        path,
		catalog:     c,
		watcher:     fw,
		logger:      utils.NewLogger("catalog-watcher"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}, nil
}

// OnReload registers a callback invoked after every reload attempt
func (w *Watcher) OnReload(fn func(error)) {
	w.onReload = fn
}

// Start runs the watch loop until ctx is cancelled or Stop is called
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop ends the watch loop and releases the watcher
func (w *Watcher) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan

	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", "error", err)

		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(reloadDebounce, func() {
		err := w.Reload()
		if w.onReload != nil {
			w.onReload(err)
		}
	})
}

// Reload reads the file and replaces the catalog tables
func (w *Watcher) Reload() error {
	tables, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("Catalog reload failed, keeping previous tables", "path", w.path, "error", err)
		return err
	}
	if err := w.catalog.Replace(tables); err != nil {
		w.logger.Error("Catalog reload rejected", "path", w.path, "error", err)
		return err
	}
	w.logger.Info("Catalog reloaded", "path", w.path, "routes", len(tables.Routes))
	return nil
}
