package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"

	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
	"github.com/fyrsmithlabs/claude-agent/internal/progress"
)

// Watcher signals changes to the project files the dashboard reads.
type Watcher struct {
	dir     string
	names   []string
	watcher *fsnotify.Watcher
	changes chan struct{}
	stop    chan struct{}
}

// WatchedFiles are the project files that trigger a refresh, plus the
// metrics file name passed to NewWatcher.
var WatchedFiles = []string{
	ledger.FeatureListFile,
	ledger.HistoryFile,
	ledger.WorkflowFile,
	progress.FileName,
}

// NewWatcher creates a watcher for dir. metricsFile is the drift metrics
// file name.
func NewWatcher(dir, metricsFile string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	names := slices.Clone(WatchedFiles)
	if metricsFile != "" {
		names = append(names, filepath.Base(metricsFile))
	}
	return &Watcher{
		dir:     dir,
		names:   names,
		watcher: w,
		// One pending signal is enough; the reader reloads everything.
		changes: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}, nil
}

// Start watches the project directory in a background goroutine. Files
// are written by rename, so the directory is watched rather than the
// files themselves.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

// Changes receives a value after any watched file changes.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if w.watches(event.Name) {
				w.notify()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) watches(path string) bool {
	return slices.Contains(w.names, filepath.Base(path))
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
