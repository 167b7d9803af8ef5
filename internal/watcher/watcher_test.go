package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/project"
)

type recordingDebouncer struct {
	mu       sync.Mutex
	requests []string
}

func (r *recordingDebouncer) Request(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, path)
}

func (r *recordingDebouncer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func TestWatcherMarksProjectChanged(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "app")
	require.NoError(t, os.Mkdir(dir, 0o755))

	registry := project.NewRegistry()
	require.True(t, registry.Add(project.New(dir, "app", time.Now().Add(-time.Minute), true)))

	deb := &recordingDebouncer{}
	w, err := New([]string{root}, registry, deb, nil, loggy.NewNoopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Run watches registered projects itself; edits nested inside the
	// project must produce a change signal without any extra setup.
	require.Eventually(t, func() bool {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
		return deb.count() > 0
	}, 3*time.Second, 50*time.Millisecond)

	p, ok := registry.Get(dir)
	require.True(t, ok)
	assert.Equal(t, project.StatusChanged, p.Status)
}

func TestWatcherFollowsLateRegistration(t *testing.T) {
	root := t.TempDir()

	registry := project.NewRegistry()
	deb := &recordingDebouncer{}
	w, err := New([]string{root}, registry, deb, nil, loggy.NewNoopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	dir := filepath.Join(root, "late")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.True(t, registry.Add(project.New(dir, "late", time.Now(), true)))

	// The watch set re-syncs with the registry, so a project registered
	// after startup gets native events for nested edits too.
	require.Eventually(t, func() bool {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x\n"), 0o644))
		return deb.count() > 0
	}, 5*time.Second, 100*time.Millisecond)

	p, ok := registry.Get(dir)
	require.True(t, ok)
	assert.Equal(t, project.StatusChanged, p.Status)
}

func TestWatcherNewDirectoryTriggersCallback(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	fired := 0
	onNewDir := func() {
		mu.Lock()
		fired++
		mu.Unlock()
	}

	w, err := New([]string{root}, project.NewRegistry(), &recordingDebouncer{}, onNewDir, loggy.NewNoopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.Mkdir(filepath.Join(root, "fresh"), 0o755))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProjectPathMapping(t *testing.T) {
	root := t.TempDir()
	w := &Watcher{roots: []string{root}}

	path, direct := w.projectPath(filepath.Join(root, "app"))
	assert.Equal(t, filepath.Join(root, "app"), path)
	assert.True(t, direct)

	path, direct = w.projectPath(filepath.Join(root, "app", "src", "main.go"))
	assert.Equal(t, filepath.Join(root, "app"), path)
	assert.False(t, direct)

	path, _ = w.projectPath("/somewhere/else/file")
	assert.Equal(t, "", path)

	path, _ = w.projectPath(root)
	assert.Equal(t, "", path)
}

func TestInsideGitDir(t *testing.T) {
	assert.True(t, insideGitDir("/r/app/.git"))
	assert.True(t, insideGitDir("/r/app/.git/objects/ab"))
	assert.False(t, insideGitDir("/r/app/.gitignore"))
	assert.False(t, insideGitDir("/r/app/src/main.go"))
}
