package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/shepherd/internal/config"
	"github.com/tildaslashalef/shepherd/internal/github"
	"github.com/tildaslashalef/shepherd/internal/history"
	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/notify"
	"github.com/tildaslashalef/shepherd/internal/project"
	"github.com/tildaslashalef/shepherd/internal/workflow"
)

type fakeScanner struct{ calls int }

func (f *fakeScanner) ScanOnce([]string) int {
	f.calls++
	return 0
}

type fakeDetector struct{ calls int }

func (f *fakeDetector) CheckOnce() int {
	f.calls++
	return 0
}

type fakeRunner struct {
	mu      sync.Mutex
	results map[string]*workflow.Result
	errs    map[string]error
	ran     []string
	block   chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, p project.Project, ignore []string) (*workflow.Result, error) {
	f.mu.Lock()
	f.ran = append(f.ran, p.Path)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if err, ok := f.errs[p.Path]; ok {
		return nil, err
	}
	if res, ok := f.results[p.Path]; ok {
		return res, nil
	}
	return &workflow.Result{RepoName: project.SanitizeRepoName(p.Name), Pushed: true}, nil
}

func (f *fakeRunner) ranPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	batches  []*history.Batch
	outcomes []*history.Outcome
}

func (f *fakeRecorder) SaveBatch(ctx context.Context, b *history.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
	return nil
}

func (f *fakeRecorder) SaveOutcome(ctx context.Context, o *history.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, o)
	return nil
}

func testScheduler(t *testing.T, runner Runner, recorder Recorder) (*Scheduler, *project.Registry) {
	t.Helper()
	cfg := &config.Config{
		Watch: config.WatchConfig{
			ScanInterval:   time.Hour,
			CheckInterval:  time.Hour,
			SyncInterval:   time.Hour,
			DebounceWindow: 10 * time.Millisecond,
		},
		Git: config.GitConfig{DefaultBranch: "main"},
	}
	settings := config.DefaultSettings()
	registry := project.NewRegistry()
	s := New(cfg, settings, registry, recorder, notify.NewService(loggy.NewNoopLogger()), loggy.NewNoopLogger())
	s.Wire(&fakeScanner{}, &fakeDetector{}, runner)
	return s, registry
}

func addProject(t *testing.T, registry *project.Registry, path, name string) {
	t.Helper()
	require.True(t, registry.Add(project.New(path, name, time.Now(), true)))
}

func TestEnqueueNowMarksQueued(t *testing.T) {
	s, registry := testScheduler(t, &fakeRunner{}, nil)
	dir := t.TempDir()
	addProject(t, registry, dir, "app")

	s.EnqueueNow(dir)
	assert.Equal(t, 1, s.QueueLen())

	p, _ := registry.Get(dir)
	assert.Equal(t, project.StatusQueued, p.Status)

	// Unknown paths are ignored.
	s.EnqueueNow("/not/registered")
	assert.Equal(t, 1, s.QueueLen())
}

func TestRunBatchSyncsQueuedProjects(t *testing.T) {
	runner := &fakeRunner{results: map[string]*workflow.Result{}}
	recorder := &fakeRecorder{}
	s, registry := testScheduler(t, runner, recorder)

	a, b := t.TempDir(), t.TempDir()
	addProject(t, registry, a, "alpha")
	addProject(t, registry, b, "beta")
	runner.results[a] = &workflow.Result{RepoName: "alpha", FilesCommitted: 3, Pushed: true}
	runner.results[b] = &workflow.Result{RepoName: "beta", CreatedRepo: true, Pushed: true}

	s.EnqueueNow(a)
	s.EnqueueNow(b)

	batch, err := s.RunBatch(context.Background(), history.TriggerInterval)
	require.NoError(t, err)
	require.NotNil(t, batch)

	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 2, batch.Completed)
	assert.Equal(t, 0, batch.Failed)
	assert.Equal(t, 0, s.QueueLen())
	assert.Len(t, runner.ranPaths(), 2)

	pa, _ := registry.Get(a)
	assert.Equal(t, project.StatusSynced, pa.Status)
	assert.Equal(t, "Synced to alpha", pa.Message)
	assert.Equal(t, 100.0, pa.Progress)

	require.Len(t, recorder.batches, 1)
	require.Len(t, recorder.outcomes, 2)
	assert.Equal(t, history.OutcomeSynced, recorder.outcomes[0].Status)
}

func TestStatsReportThroughput(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{}}
	s, registry := testScheduler(t, runner, nil)

	a, b, c := t.TempDir(), t.TempDir(), t.TempDir()
	addProject(t, registry, a, "alpha")
	addProject(t, registry, b, "beta")
	addProject(t, registry, c, "gamma")
	runner.errs[c] = fmt.Errorf("push failed")

	s.EnqueueNow(a)
	s.EnqueueNow(b)
	s.EnqueueNow(c)

	_, err := s.RunBatch(context.Background(), history.TriggerManual)
	require.NoError(t, err)

	stats := s.Stats()
	assert.False(t, stats.Running)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.False(t, stats.FinishedAt.IsZero())
	assert.Greater(t, stats.Throughput, 0.0)
}

func TestRunBatchFailureDoesNotAbortOthers(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{}}
	s, registry := testScheduler(t, runner, nil)

	a, b := t.TempDir(), t.TempDir()
	addProject(t, registry, a, "alpha")
	addProject(t, registry, b, "beta")
	runner.errs[a] = fmt.Errorf("creating repository alpha: %w", github.ErrAuth)

	s.EnqueueNow(a)
	s.EnqueueNow(b)

	batch, err := s.RunBatch(context.Background(), history.TriggerInterval)
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Completed)
	assert.Equal(t, 1, batch.Failed)
	assert.Len(t, runner.ranPaths(), 2)

	pa, _ := registry.Get(a)
	assert.Equal(t, project.StatusError, pa.Status)
	assert.Equal(t, "GitHub authentication failed, check your token", pa.Message)
	assert.Contains(t, pa.LastError, "creating repository")
}

func TestRunBatchOfflineRequeues(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{}}
	s, registry := testScheduler(t, runner, nil)

	dir := t.TempDir()
	addProject(t, registry, dir, "app")
	runner.errs[dir] = workflow.ErrOffline

	s.EnqueueNow(dir)
	batch, err := s.RunBatch(context.Background(), history.TriggerInterval)
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 1, s.QueueLen())

	p, _ := registry.Get(dir)
	assert.Equal(t, project.StatusError, p.Status)
	assert.Equal(t, "Offline, waiting for network", p.Message)
}

func TestRunBatchEmptyQueue(t *testing.T) {
	s, _ := testScheduler(t, &fakeRunner{}, nil)

	batch, err := s.RunBatch(context.Background(), history.TriggerInterval)
	require.NoError(t, err)
	assert.Nil(t, batch)
	assert.False(t, s.Busy())
}

func TestRunBatchExclusion(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s, registry := testScheduler(t, runner, nil)

	dir := t.TempDir()
	addProject(t, registry, dir, "app")
	s.EnqueueNow(dir)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.RunBatch(context.Background(), history.TriggerInterval)
		assert.NoError(t, err)
	}()

	// Wait until the batch has actually taken the busy flag.
	require.Eventually(t, s.Busy, time.Second, 5*time.Millisecond)

	_, err := s.RunBatch(context.Background(), history.TriggerManual)
	assert.ErrorIs(t, err, ErrBatchRunning)
	_, err = s.SyncAll(context.Background())
	assert.ErrorIs(t, err, ErrBatchRunning)

	close(runner.block)
	<-done
	assert.False(t, s.Busy())
}

func TestSyncAllQueuesEverything(t *testing.T) {
	runner := &fakeRunner{}
	s, registry := testScheduler(t, runner, nil)

	a, b := t.TempDir(), t.TempDir()
	addProject(t, registry, a, "alpha")
	addProject(t, registry, b, "beta")

	batch, err := s.SyncAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)

	assert.Equal(t, history.TriggerManual, batch.Trigger)
	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 2, batch.Completed)
}

func TestObserverUpdatesProgress(t *testing.T) {
	s, registry := testScheduler(t, &fakeRunner{}, nil)

	dir := t.TempDir()
	addProject(t, registry, dir, "app")

	s.OnStep(dir, 4, "Preparing local repository")
	p, _ := registry.Get(dir)
	assert.Equal(t, "Preparing local repository", p.Operation)
	assert.InDelta(t, 42.9, p.Progress, 0.1)

	s.OnFilesTransferred(dir, 5)
	s.OnFilesTransferred(dir, 2)
	assert.Equal(t, 7, s.TotalFilesTransferred())
}

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"offline", workflow.ErrOffline, "Offline, waiting for network"},
		{"auth", fmt.Errorf("checking repo: %w", github.ErrAuth), "GitHub authentication failed, check your token"},
		{"rate limit", github.ErrRateLimited, "GitHub rate limit exceeded"},
		{"other", errors.New("remote hung up"), "remote hung up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, friendlyError(tt.err))
		})
	}
}
