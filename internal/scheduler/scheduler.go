// Package scheduler owns the background loop: periodic discovery scans,
// change-detection passes, and serial draining of the sync queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tildaslashalef/shepherd/internal/config"
	"github.com/tildaslashalef/shepherd/internal/debounce"
	"github.com/tildaslashalef/shepherd/internal/github"
	"github.com/tildaslashalef/shepherd/internal/history"
	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/notify"
	"github.com/tildaslashalef/shepherd/internal/project"
	"github.com/tildaslashalef/shepherd/internal/workflow"
)

// ErrBatchRunning is returned when a manual sync is requested while a batch
// is already in flight.
var ErrBatchRunning = errors.New("a sync batch is already running")

// Scanner discovers new projects under the watch roots
type Scanner interface {
	ScanOnce(roots []string) int
}

// Detector runs one change-detection pass over known projects
type Detector interface {
	CheckOnce() int
}

// Runner executes the sync pipeline for one project
type Runner interface {
	Run(ctx context.Context, p project.Project, ignorePatterns []string) (*workflow.Result, error)
}

// Recorder persists batch and outcome records. A nil Recorder disables
// history without affecting syncing.
type Recorder interface {
	SaveBatch(ctx context.Context, b *history.Batch) error
	SaveOutcome(ctx context.Context, o *history.Outcome) error
}

// BatchStats is a point-in-time view of the current or most recent batch
type BatchStats struct {
	BatchID          string
	Running          bool
	Total            int
	Completed        int
	Failed           int
	CurrentPath      string
	CurrentOp        string
	StartedAt        time.Time
	FinishedAt       time.Time
	FilesTransferred int

	// Throughput is completed projects per elapsed second, measured live
	// while the batch runs and frozen once it finishes.
	Throughput float64
}

// Scheduler drives the agent's periodic work from a single goroutine.
// Batches run serially; change detection yields to a running batch.
type Scheduler struct {
	cfg      *config.Config
	settings *config.Settings
	registry *project.Registry
	queue    *Queue
	scanner  Scanner
	detector Detector
	runner   Runner
	recorder Recorder
	notifier *notify.Service
	logger   *loggy.Logger

	debouncer *debounce.Debouncer
	busy      atomic.Bool

	statsMu    sync.Mutex
	stats      BatchStats
	totalFiles int
}

// New creates a scheduler. The debounce window and all tick intervals come
// from cfg.Watch. Wire must be called before Run.
func New(cfg *config.Config, settings *config.Settings, registry *project.Registry, recorder Recorder, notifier *notify.Service, logger *loggy.Logger) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		settings: settings,
		registry: registry,
		queue:    NewQueue(),
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
	}
	s.debouncer = debounce.New(cfg.Watch.DebounceWindow, s.EnqueueNow, logger)
	return s
}

// Wire installs the work components. Separate from New because the scanner
// and detector feed the scheduler's queue while the runner reports progress
// back to it, so all three are built around an existing scheduler.
func (s *Scheduler) Wire(scanner Scanner, detector Detector, runner Runner) {
	s.scanner = scanner
	s.detector = detector
	s.runner = runner
}

// Busy reports whether a sync batch is currently running
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// QueueLen returns the number of projects waiting for the next batch
func (s *Scheduler) QueueLen() int {
	return s.queue.Len()
}

// Debouncer exposes the shared debouncer so change sources outside the
// polling loop, like the filesystem watcher, can feed the same funnel.
func (s *Scheduler) Debouncer() *debounce.Debouncer {
	return s.debouncer
}

// Stats returns a copy of the current batch statistics
func (s *Scheduler) Stats() BatchStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	stats := s.stats
	if !stats.StartedAt.IsZero() {
		end := stats.FinishedAt
		if stats.Running || end.IsZero() {
			end = time.Now()
		}
		if elapsed := end.Sub(stats.StartedAt).Seconds(); elapsed > 0 {
			stats.Throughput = float64(stats.Completed) / elapsed
		}
	}
	return stats
}

// TotalFilesTransferred returns the lifetime count of committed files
func (s *Scheduler) TotalFilesTransferred() int {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.totalFiles
}

// EnqueueNow puts a project on the queue without waiting for the debounce
// window. Used for debounce expiry, discovery of repo-less projects, and
// manual syncs.
func (s *Scheduler) EnqueueNow(path string) {
	if !s.registry.Has(path) {
		return
	}
	if s.queue.Add(path) {
		s.registry.Update(path, func(p *project.Project) {
			p.Status = project.StatusQueued
			p.Message = "Waiting for sync"
		})
		s.logger.Debug("Project queued", "path", path, "queue_len", s.queue.Len())
	}
}

// Run executes the scheduling loop until ctx is cancelled. It performs an
// initial scan immediately so a fresh start does not wait a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler started",
		"scan_interval", s.cfg.Watch.ScanInterval,
		"check_interval", s.cfg.Watch.CheckInterval,
		"sync_interval", s.cfg.Watch.SyncInterval)

	scanTicker := time.NewTicker(s.cfg.Watch.ScanInterval)
	checkTicker := time.NewTicker(s.cfg.Watch.CheckInterval)
	syncTicker := time.NewTicker(s.cfg.Watch.SyncInterval)
	defer scanTicker.Stop()
	defer checkTicker.Stop()
	defer syncTicker.Stop()

	s.scanner.ScanOnce(s.settings.WatchRoots)

	for {
		select {
		case <-ctx.Done():
			s.debouncer.Stop()
			s.queue.Drain()
			s.registry.Clear()
			s.logger.Info("Scheduler stopped")
			return
		case <-scanTicker.C:
			s.scanner.ScanOnce(s.settings.WatchRoots)
		case <-checkTicker.C:
			s.detector.CheckOnce()
		case <-syncTicker.C:
			if s.queue.Len() > 0 {
				s.RunBatch(ctx, history.TriggerInterval)
			}
		}
	}
}

// SyncAll queues every known project and runs a batch immediately
func (s *Scheduler) SyncAll(ctx context.Context) (*history.Batch, error) {
	if s.Busy() {
		return nil, ErrBatchRunning
	}
	for _, path := range s.registry.Paths() {
		s.EnqueueNow(path)
	}
	return s.RunBatch(ctx, history.TriggerManual)
}

// RunBatch drains the queue and syncs the snapshot serially. Projects
// enqueued while the batch runs wait for the next one. Returns nil when
// another batch is already running or the queue is empty.
func (s *Scheduler) RunBatch(ctx context.Context, trigger string) (*history.Batch, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBatchRunning
	}
	defer s.busy.Store(false)

	paths := s.queue.Drain()
	if len(paths) == 0 {
		return nil, nil
	}

	batch := history.NewBatch(trigger, len(paths))
	s.logger.Info("Sync batch started", "batch", batch.ID, "projects", len(paths), "trigger", trigger)

	s.statsMu.Lock()
	s.stats = BatchStats{BatchID: batch.ID, Running: true, Total: len(paths), StartedAt: batch.StartedAt}
	s.statsMu.Unlock()

	outcomes := make([]*history.Outcome, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		if outcome := s.syncOne(ctx, batch, path); outcome != nil {
			outcomes = append(outcomes, outcome)
		}
	}

	batch.FinishedAt = time.Now()
	s.record(batch, outcomes)

	s.statsMu.Lock()
	s.stats.Running = false
	s.stats.CurrentPath = ""
	s.stats.CurrentOp = ""
	s.stats.FinishedAt = batch.FinishedAt
	s.statsMu.Unlock()

	s.logger.Info("Sync batch finished",
		"batch", batch.ID,
		"completed", batch.Completed,
		"failed", batch.Failed,
		"elapsed", batch.FinishedAt.Sub(batch.StartedAt))

	if batch.Failed > 0 {
		s.notifier.Notify("Shepherd", fmt.Sprintf("Sync finished: %d synced, %d failed", batch.Completed, batch.Failed))
	} else {
		s.notifier.Notify("Shepherd", fmt.Sprintf("Sync finished: %d project(s) synced", batch.Completed))
	}

	return batch, nil
}

// syncOne runs the pipeline for a single project and folds the result into
// the batch. A failure never aborts the rest of the batch.
func (s *Scheduler) syncOne(ctx context.Context, batch *history.Batch, path string) *history.Outcome {
	p, ok := s.registry.Get(path)
	if !ok {
		s.logger.Debug("Queued project no longer registered", "path", path)
		return nil
	}

	s.statsMu.Lock()
	s.stats.CurrentPath = path
	s.statsMu.Unlock()

	s.registry.Update(path, func(p *project.Project) {
		p.Status = project.StatusSyncing
		p.Message = "Syncing"
		p.Progress = 0
	})

	outcome := history.NewOutcome(batch.ID, path, p.Name)
	res, err := s.runner.Run(ctx, p, s.settings.IgnorePatterns)
	outcome.FinishedAt = time.Now()

	if err != nil {
		batch.Failed++
		s.statsMu.Lock()
		s.stats.Failed++
		s.statsMu.Unlock()

		message := friendlyError(err)
		outcome.Status = history.OutcomeError
		outcome.Error = err.Error()

		s.logger.Error("Project sync failed", "path", path, "error", err)
		s.notifier.Error(message, path)

		// Offline projects stay on the queue so the next batch retries them
		// once connectivity returns.
		if errors.Is(err, workflow.ErrOffline) {
			s.queue.Add(path)
		}
		s.registry.Update(path, func(p *project.Project) {
			p.Status = project.StatusError
			p.Message = message
			p.LastError = err.Error()
		})
		return outcome
	}

	batch.Completed++
	s.statsMu.Lock()
	s.stats.Completed++
	s.statsMu.Unlock()

	outcome.Status = history.OutcomeSynced
	outcome.RepoName = res.RepoName
	outcome.FilesCommitted = res.FilesCommitted
	outcome.CreatedRepo = res.CreatedRepo

	// Committing touches the folder, so the stored mtime is refreshed here
	// to keep the next detection pass from seeing the sync as a change.
	info, statErr := os.Stat(path)

	s.registry.Update(path, func(p *project.Project) {
		p.Status = project.StatusSynced
		p.Message = fmt.Sprintf("Synced to %s", res.RepoName)
		p.Progress = 100
		p.HasRepo = true
		p.LastError = ""
		p.Operation = ""
		if statErr == nil {
			p.ModTime = info.ModTime()
		}
		p.LastChecked = time.Now()
	})

	s.notifier.Success(fmt.Sprintf("Synced %s to %s", p.Name, res.RepoName), path)
	s.logger.Info("Project synced",
		"path", path,
		"repo", res.RepoName,
		"files", res.FilesCommitted,
		"created_repo", res.CreatedRepo)

	return outcome
}

// OnStep implements workflow.Observer
func (s *Scheduler) OnStep(path string, step int, operation string) {
	percent := float64(step-1) / float64(workflow.TotalSteps) * 100

	s.registry.Update(path, func(p *project.Project) {
		p.Operation = operation
		p.SetProgress(percent)
	})

	s.statsMu.Lock()
	s.stats.CurrentOp = operation
	s.statsMu.Unlock()
}

// OnFilesTransferred implements workflow.Observer
func (s *Scheduler) OnFilesTransferred(path string, count int) {
	s.statsMu.Lock()
	s.stats.FilesTransferred += count
	s.totalFiles += count
	s.statsMu.Unlock()
}

func (s *Scheduler) record(batch *history.Batch, outcomes []*history.Outcome) {
	if s.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.recorder.SaveBatch(ctx, batch); err != nil {
		s.logger.Warn("Recording sync batch failed", "batch", batch.ID, "error", err)
		return
	}
	for _, o := range outcomes {
		if err := s.recorder.SaveOutcome(ctx, o); err != nil {
			s.logger.Warn("Recording sync outcome failed", "outcome", o.ID, "error", err)
		}
	}
}

// friendlyError turns pipeline errors into short operator-facing messages
func friendlyError(err error) string {
	switch {
	case errors.Is(err, workflow.ErrOffline):
		return "Offline, waiting for network"
	case errors.Is(err, github.ErrAuth):
		return "GitHub authentication failed, check your token"
	case errors.Is(err, github.ErrRateLimited):
		return "GitHub rate limit exceeded"
	default:
		return err.Error()
	}
}
