// Package watcher feeds filesystem events into the sync pipeline as a
// low-latency complement to the polling detector.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/project"
)

// Debouncer coalesces change signals per project path
type Debouncer interface {
	Request(path string)
}

// Watcher listens for native filesystem events on the watch roots and the
// top level of every registered project. Events inside a project collapse
// onto the project path and go through the same debounce funnel as the
// polling detector.
type Watcher struct {
	fs        *fsnotify.Watcher
	registry  *project.Registry
	debouncer Debouncer
	roots     []string
	onNewDir  func()
	logger    *loggy.Logger

	mu      sync.Mutex
	watched map[string]struct{}
}

// New creates a watcher over the given roots. onNewDir fires when an
// unregistered directory appears directly under a root, so the caller can
// trigger a discovery scan ahead of schedule.
func New(roots []string, registry *project.Registry, debouncer Debouncer, onNewDir func(), logger *loggy.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	w := &Watcher{
		fs:        fs,
		registry:  registry,
		debouncer: debouncer,
		roots:     roots,
		onNewDir:  onNewDir,
		logger:    logger,
		watched:   make(map[string]struct{}),
	}

	for _, root := range roots {
		if err := fs.Add(root); err != nil {
			w.logger.Warn("Cannot watch root", "root", root, "error", err)
		}
	}

	return w, nil
}

// WatchProject adds a project directory to the watch set. Watching a root
// alone is not enough: fsnotify is not recursive, so edits to files inside a
// project only surface when the project directory itself is watched.
// Failures are logged and ignored; the polling detector still covers the
// project.
func (w *Watcher) WatchProject(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.watched[path]; ok {
		return
	}
	if err := w.fs.Add(path); err != nil {
		w.logger.Warn("Cannot watch project", "path", path, "error", err)
		return
	}
	w.watched[path] = struct{}{}
}

// syncWatches brings the watch set up to date with the registry so projects
// discovered after startup get native events too.
func (w *Watcher) syncWatches() {
	for _, path := range w.registry.Paths() {
		w.WatchProject(path)
	}
}

// Run consumes events until ctx is cancelled, periodically re-syncing the
// watch set with the registry.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()

	w.syncWatches()

	resync := time.NewTicker(2 * time.Second)
	defer resync.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-resync.C:
			w.syncWatches()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	// Repository bookkeeping churns constantly during a sync; reacting to
	// it would re-trigger the sync that caused it.
	if insideGitDir(ev.Name) {
		return
	}

	path, direct := w.projectPath(ev.Name)
	if path == "" {
		return
	}

	if !w.registry.Has(path) {
		if direct && ev.Op.Has(fsnotify.Create) && w.onNewDir != nil {
			w.logger.Debug("New directory under watch root", "path", path)
			w.onNewDir()
		}
		return
	}

	marked := false
	w.registry.Update(path, func(p *project.Project) {
		switch p.Status {
		case project.StatusQueued, project.StatusSyncing, project.StatusNeedsRepo:
			return
		}
		p.ModTime = time.Now()
		p.Status = project.StatusChanged
		p.Message = "Changes detected"
		marked = true
	})

	if marked {
		w.logger.Debug("Filesystem change", "path", path, "event", ev.Op.String())
	}
	// Request even when already marked so a burst keeps extending the
	// quiet period instead of syncing mid-edit.
	w.debouncer.Request(path)
}

// projectPath maps an event path to the project directory under one of the
// watch roots. direct reports that the event path IS that directory, not
// something nested below it.
func (w *Watcher) projectPath(name string) (path string, direct bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, name)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		parts := strings.Split(rel, string(filepath.Separator))
		return filepath.Join(root, parts[0]), len(parts) == 1
	}
	return "", false
}

func insideGitDir(name string) bool {
	sep := string(filepath.Separator)
	return strings.Contains(name, sep+".git"+sep) || strings.HasSuffix(name, sep+".git")
}
