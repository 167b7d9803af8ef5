// Package scanner discovers candidate project directories under the
// configured watch roots and registers them.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-enry/go-enry/v2"

	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/notify"
	"github.com/tildaslashalef/shepherd/internal/project"
)

// RepoChecker answers whether a folder is a version-controlled repository
type RepoChecker interface {
	IsRepo(path string) bool
}

// Enqueuer schedules a project for syncing without debounce delay
type Enqueuer interface {
	EnqueueNow(path string)
}

// languageSampleLimit caps how many files and bytes the language sniffer reads
const (
	languageSampleFiles = 10
	languageSampleBytes = 8 * 1024
)

// Service walks watch roots and registers newly found projects
type Service struct {
	registry *project.Registry
	repos    RepoChecker
	enqueue  Enqueuer
	notifier *notify.Service
	logger   *loggy.Logger
}

// NewService creates a discovery scanner
func NewService(registry *project.Registry, repos RepoChecker, enqueue Enqueuer, notifier *notify.Service, logger *loggy.Logger) *Service {
	return &Service{
		registry: registry,
		repos:    repos,
		enqueue:  enqueue,
		notifier: notifier,
		logger:   logger,
	}
}

// ScanOnce walks every watch root and registers unknown subdirectories as
// projects. It returns the number of newly registered projects. Missing
// roots are skipped with a warning, never fatal.
func (s *Service) ScanOnce(roots []string) int {
	found := 0

	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			s.notifier.Warning(fmt.Sprintf("Watch root unavailable: %s", root), "")
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			path := filepath.Join(root, entry.Name())
			if s.registry.Has(path) {
				continue
			}

			info, err := os.Stat(path)
			if err != nil {
				s.logger.Debug("Skipping unreadable directory", "path", path, "error", err)
				continue
			}

			hasRepo := s.repos.IsRepo(path)
			p := project.New(path, entry.Name(), info.ModTime(), hasRepo)
			p.Language = DetectLanguage(path)

			if !s.registry.Add(p) {
				continue
			}
			found++

			s.logger.Info("Discovered project",
				"path", path,
				"has_repo", hasRepo,
				"language", p.Language)

			// A project with no repository yet goes straight to the queue;
			// there is no change to debounce.
			if !hasRepo {
				s.enqueue.EnqueueNow(path)
			}
		}
	}

	if found > 0 {
		s.notifier.Info(fmt.Sprintf("Discovered %d new project(s)", found), "")
		s.notifier.Notify("Shepherd", fmt.Sprintf("Found %d new project(s)", found))
	}

	return found
}

// DetectLanguage guesses the dominant programming language of a project by
// sampling its top-level files. Returns "" when nothing recognizable is found.
func DetectLanguage(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	counts := make(map[string]int)
	sampled := 0
	for _, entry := range entries {
		if entry.IsDir() || sampled >= languageSampleFiles {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		content, err := readSample(path)
		if err != nil {
			continue
		}
		sampled++

		lang := enry.GetLanguage(entry.Name(), content)
		if lang == "" || enry.GetLanguageType(lang) != enry.Programming {
			continue
		}
		counts[lang]++
	}

	best := ""
	bestCount := 0
	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if counts[lang] > bestCount {
			best = lang
			bestCount = counts[lang]
		}
	}
	return best
}

func readSample(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, languageSampleBytes)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}
