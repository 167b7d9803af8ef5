// Package history persists sync batch and per-project outcome records in
// the local SQLite database.
package history

import (
	"time"

	"github.com/tildaslashalef/shepherd/internal/ulid"
)

// Batch triggers
const (
	TriggerInterval = "interval"
	TriggerManual   = "manual"
)

// Outcome statuses
const (
	OutcomeSynced = "synced"
	OutcomeError  = "error"
)

// Batch is one queue drain: the set of projects synced together
type Batch struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewBatch creates a batch record with a fresh ID
func NewBatch(trigger string, total int) *Batch {
	return &Batch{
		ID:        ulid.BatchID(),
		Trigger:   trigger,
		Total:     total,
		StartedAt: time.Now(),
	}
}

// Outcome is the result of syncing one project within a batch
type Outcome struct {
	ID             string    `json:"id"`
	BatchID        string    `json:"batch_id"`
	ProjectPath    string    `json:"project_path"`
	ProjectName    string    `json:"project_name"`
	RepoName       string    `json:"repo_name"`
	Status         string    `json:"status"`
	FilesCommitted int       `json:"files_committed"`
	CreatedRepo    bool      `json:"created_repo"`
	Error          string    `json:"error,omitempty"`
	FinishedAt     time.Time `json:"finished_at"`
}

// NewOutcome creates an outcome record with a fresh ID
func NewOutcome(batchID, projectPath, projectName string) *Outcome {
	return &Outcome{
		ID:          ulid.OutcomeID(),
		BatchID:     batchID,
		ProjectPath: projectPath,
		ProjectName: projectName,
		FinishedAt:  time.Now(),
	}
}
