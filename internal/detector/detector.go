// Package detector watches registered projects for filesystem changes and
// feeds the sync pipeline through the debouncer.
package detector

import (
	"os"
	"sync"
	"time"

	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/project"
)

// RepoChecker answers whether a folder is a version-controlled repository
type RepoChecker interface {
	IsRepo(path string) bool
}

// Debouncer coalesces change signals per project path
type Debouncer interface {
	Request(path string)
}

// Service periodically compares each registered project against the
// filesystem and marks projects whose contents moved forward in time.
type Service struct {
	registry  *project.Registry
	repos     RepoChecker
	debouncer Debouncer
	busy      func() bool
	logger    *loggy.Logger

	mu       sync.Mutex
	progress float64
}

// NewService creates a change detector. busy reports whether a sync batch is
// running; detection passes are skipped entirely while it returns true.
func NewService(registry *project.Registry, repos RepoChecker, debouncer Debouncer, busy func() bool, logger *loggy.Logger) *Service {
	return &Service{
		registry:  registry,
		repos:     repos,
		debouncer: debouncer,
		busy:      busy,
		logger:    logger,
	}
}

// Progress reports how far through the current detection pass the service is,
// in [0, 1]. It reads 1 when idle.
func (s *Service) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Service) setProgress(v float64) {
	s.mu.Lock()
	s.progress = v
	s.mu.Unlock()
}

// CheckOnce inspects every registered project and returns the number of
// projects newly marked as changed or needing a repository. The whole pass
// is skipped when a sync batch is in flight so the two never fight over
// project state.
func (s *Service) CheckOnce() int {
	if s.busy() {
		s.logger.Debug("Skipping change detection while sync batch is active")
		return 0
	}

	paths := s.registry.Paths()
	if len(paths) == 0 {
		s.setProgress(1)
		return 0
	}

	s.setProgress(0)
	flagged := 0

	for i, path := range paths {
		if s.checkProject(path) {
			flagged++
		}
		s.setProgress(float64(i+1) / float64(len(paths)))
	}

	return flagged
}

// checkProject reconciles one project with the filesystem. Returns true when
// the project was queued for syncing.
func (s *Service) checkProject(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("Project folder removed, forgetting it", "path", path)
			s.registry.Remove(path)
			return false
		}
		s.logger.Warn("Cannot stat project folder", "path", path, "error", err)
		return false
	}

	p, ok := s.registry.Get(path)
	if !ok {
		return false
	}

	hasRepo := s.repos.IsRepo(path)

	queued := false
	s.registry.Update(path, func(p *project.Project) {
		p.LastChecked = time.Now()
		p.HasRepo = hasRepo

		// Terminal-ish statuses owned by the sync pipeline are left alone.
		switch p.Status {
		case project.StatusQueued, project.StatusSyncing:
			return
		}

		switch {
		case !hasRepo:
			if p.Status != project.StatusNeedsRepo {
				queued = true
			}
			p.Status = project.StatusNeedsRepo
			p.Message = "Repository missing"
		case info.ModTime().After(p.ModTime):
			p.ModTime = info.ModTime()
			p.Status = project.StatusChanged
			p.Message = "Changes detected"
			queued = true
		case p.Status == project.StatusChanged || p.Status == project.StatusNeedsRepo:
			// Already flagged from a previous pass, keep waiting on debounce.
		case p.Status == project.StatusError:
			// Failures stay visible until a new change or manual sync.
		default:
			p.Status = project.StatusReady
		}
	})

	if queued {
		s.logger.Debug("Project flagged for sync", "path", path, "has_repo", hasRepo, "was_status", p.Status)
		s.debouncer.Request(path)
	}
	return queued
}
