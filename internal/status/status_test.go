package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/shepherd/internal/project"
	"github.com/tildaslashalef/shepherd/internal/scheduler"
)

type fakeNet struct {
	online bool
	probed time.Time
}

func (f fakeNet) Online() bool         { return f.online }
func (f fakeNet) LastProbe() time.Time { return f.probed }

type fakeSched struct {
	busy  bool
	queue int
	stats scheduler.BatchStats
	files int
}

func (f fakeSched) Busy() bool                  { return f.busy }
func (f fakeSched) QueueLen() int               { return f.queue }
func (f fakeSched) Stats() scheduler.BatchStats { return f.stats }
func (f fakeSched) TotalFilesTransferred() int  { return f.files }

type fakeDetect struct{ progress float64 }

func (f fakeDetect) Progress() float64 { return f.progress }

func TestSnapshotPhases(t *testing.T) {
	registry := project.NewRegistry()

	tests := []struct {
		name   string
		online bool
		busy   bool
		want   Phase
	}{
		{"idle", true, false, PhaseIdle},
		{"syncing", true, true, PhaseSyncing},
		{"offline wins", false, true, PhaseOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(registry, fakeSched{busy: tt.busy}, fakeDetect{}, fakeNet{online: tt.online})
			assert.Equal(t, tt.want, agg.Snapshot().Phase)
		})
	}
}

func TestSnapshotCopiesState(t *testing.T) {
	registry := project.NewRegistry()
	require.True(t, registry.Add(project.New("/p/a", "a", time.Now(), true)))
	registry.Update("/p/a", func(p *project.Project) { p.Status = project.StatusError })
	require.True(t, registry.Add(project.New("/p/b", "b", time.Now(), true)))

	probed := time.Now().Add(-time.Second)
	sched := fakeSched{
		queue: 3,
		files: 42,
		stats: scheduler.BatchStats{BatchID: "batch-01", Total: 2, Completed: 1},
	}
	agg := NewAggregator(registry, sched, fakeDetect{progress: 0.5}, fakeNet{online: true, probed: probed})

	snap := agg.Snapshot()
	assert.True(t, snap.Online)
	assert.Equal(t, probed, snap.LastProbe)
	assert.Equal(t, 3, snap.QueueLen)
	assert.Equal(t, 0.5, snap.CheckProgress)
	assert.Equal(t, 42, snap.FilesTransferred)
	assert.Equal(t, "batch-01", snap.Batch.BatchID)
	assert.Len(t, snap.Projects, 2)

	counts := snap.Counts()
	assert.Equal(t, 1, counts[project.StatusError])
	assert.Equal(t, 1, counts[project.StatusReady])
}
