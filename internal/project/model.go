// Package project defines the project record and the in-memory registry
// that tracks every folder Shepherd watches.
package project

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Status represents the lifecycle state of a tracked project
type Status string

const (
	// StatusReady means the folder is tracked and unchanged since last check
	StatusReady Status = "ready"

	// StatusChanged means the folder modification time increased since last sync
	StatusChanged Status = "changed"

	// StatusQueued means the project is waiting in the sync queue
	StatusQueued Status = "queued"

	// StatusSyncing means a sync workflow is currently running for the project
	StatusSyncing Status = "syncing"

	// StatusSynced means the last sync workflow completed successfully
	StatusSynced Status = "synced"

	// StatusError means the last sync workflow failed
	StatusError Status = "error"

	// StatusNeedsRepo means the folder has no local git repository yet
	StatusNeedsRepo Status = "needs-repo"
)

// Project is a single tracked folder. The absolute path is its identity;
// everything else is mutable working state.
type Project struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	ModTime     time.Time `json:"mod_time"`
	LastChecked time.Time `json:"last_checked"`
	HasRepo     bool      `json:"has_repo"`
	Status      Status    `json:"status"`
	Message     string    `json:"message"`
	Progress    float64   `json:"progress"`
	Operation   string    `json:"operation"`
	LastError   string    `json:"last_error,omitempty"`
	Language    string    `json:"language,omitempty"`
}

// New creates a project record for the given absolute path
func New(path, name string, modTime time.Time, hasRepo bool) *Project {
	status := StatusReady
	if !hasRepo {
		status = StatusNeedsRepo
	}

	return &Project{
		Path:        path,
		Name:        name,
		ModTime:     modTime,
		LastChecked: time.Now(),
		HasRepo:     hasRepo,
		Status:      status,
	}
}

// SetProgress stores the progress percentage rounded to one decimal place
func (p *Project) SetProgress(pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p.Progress = math.Round(pct*10) / 10
}

var repoNameStrip = regexp.MustCompile(`[^a-z0-9\-_.]`)

// SanitizeRepoName converts a project display name into a valid remote
// repository name: lowercase, whitespace runs collapsed to a single hyphen,
// anything outside [a-z0-9-_.] dropped, leading/trailing separators trimmed,
// truncated to 100 characters. The same function must be used everywhere a
// project name becomes a repository name.
func SanitizeRepoName(name string) string {
	s := strings.ToLower(name)
	s = strings.Join(strings.Fields(s), "-")
	s = repoNameStrip.ReplaceAllString(s, "")
	s = strings.Trim(s, "-_.")
	if len(s) > 100 {
		s = s[:100]
		s = strings.Trim(s, "-_.")
	}
	return s
}
