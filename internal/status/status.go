// Package status assembles a point-in-time view of the whole agent for the
// CLI surfaces.
package status

import (
	"time"

	"github.com/tildaslashalef/shepherd/internal/project"
	"github.com/tildaslashalef/shepherd/internal/scheduler"
)

// Phase summarizes what the agent is doing right now
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseSyncing Phase = "syncing"
	PhaseOffline Phase = "offline"
)

// Reachability reports network probe state
type Reachability interface {
	Online() bool
	LastProbe() time.Time
}

// SchedulerState is the scheduler surface the aggregator reads
type SchedulerState interface {
	Busy() bool
	QueueLen() int
	Stats() scheduler.BatchStats
	TotalFilesTransferred() int
}

// DetectionState reports how far the current change-detection pass has
// come, in [0, 1], so long passes over many projects stay observable.
type DetectionState interface {
	Progress() float64
}

// Snapshot is a copy of agent state safe to render or serialize
type Snapshot struct {
	Phase            Phase                `json:"phase"`
	Online           bool                 `json:"online"`
	LastProbe        time.Time            `json:"last_probe"`
	QueueLen         int                  `json:"queue_len"`
	CheckProgress    float64              `json:"check_progress"`
	FilesTransferred int                  `json:"files_transferred"`
	Batch            scheduler.BatchStats `json:"batch"`
	Projects         []project.Project    `json:"projects"`
	TakenAt          time.Time            `json:"taken_at"`
}

// Counts tallies projects per status
func (s *Snapshot) Counts() map[project.Status]int {
	counts := make(map[project.Status]int)
	for _, p := range s.Projects {
		counts[p.Status]++
	}
	return counts
}

// Aggregator composes snapshots from the live components
type Aggregator struct {
	registry *project.Registry
	sched    SchedulerState
	detect   DetectionState
	net      Reachability
}

// NewAggregator creates a status aggregator
func NewAggregator(registry *project.Registry, sched SchedulerState, detect DetectionState, net Reachability) *Aggregator {
	return &Aggregator{registry: registry, sched: sched, detect: detect, net: net}
}

// Snapshot assembles the current agent state. It only copies in-memory
// state; calling it frequently is cheap.
func (a *Aggregator) Snapshot() Snapshot {
	snap := Snapshot{
		Online:           a.net.Online(),
		LastProbe:        a.net.LastProbe(),
		QueueLen:         a.sched.QueueLen(),
		CheckProgress:    a.detect.Progress(),
		FilesTransferred: a.sched.TotalFilesTransferred(),
		Batch:            a.sched.Stats(),
		Projects:         a.registry.List(),
		TakenAt:          time.Now(),
	}

	switch {
	case !snap.Online:
		snap.Phase = PhaseOffline
	case a.sched.Busy():
		snap.Phase = PhaseSyncing
	default:
		snap.Phase = PhaseIdle
	}

	return snap
}
