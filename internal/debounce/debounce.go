// Package debounce coalesces bursts of change signals per project path.
// A path under continuous modification is enqueued exactly once, one quiet
// window after its last observed change.
package debounce

import (
	"sync"
	"time"

	"github.com/tildaslashalef/shepherd/internal/loggy"
)

// Debouncer delays a per-path action by a fixed quiet window. Re-requesting
// the same path before the window elapses cancels and restarts its timer.
type Debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	window time.Duration
	fire   func(path string)
	logger *loggy.Logger
}

// New creates a debouncer that calls fire(path) once per quiet window
func New(window time.Duration, fire func(path string), logger *loggy.Logger) *Debouncer {
	return &Debouncer{
		timers: make(map[string]*time.Timer),
		window: window,
		fire:   fire,
		logger: logger,
	}
}

// Request schedules the action for path after the quiet window, replacing
// any pending timer for the same path.
func (d *Debouncer) Request(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[path]; ok {
		timer.Stop()
		d.logger.Debug("Debounce timer restarted", "path", path)
	}

	d.timers[path] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()

		d.fire(path)
	})
}

// Pending returns the number of paths with an armed timer
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Cancel drops any pending timer for path
func (d *Debouncer) Cancel(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[path]; ok {
		timer.Stop()
		delete(d.timers, path)
	}
}

// Stop cancels every pending timer
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for path, timer := range d.timers {
		timer.Stop()
		delete(d.timers, path)
	}
}
