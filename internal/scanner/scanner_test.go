package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/notify"
	"github.com/tildaslashalef/shepherd/internal/project"
)

type fakeRepoChecker struct {
	repos map[string]bool
}

func (f *fakeRepoChecker) IsRepo(path string) bool {
	return f.repos[path]
}

type fakeEnqueuer struct {
	paths []string
}

func (f *fakeEnqueuer) EnqueueNow(path string) {
	f.paths = append(f.paths, path)
}

func newTestService(t *testing.T, repos map[string]bool) (*Service, *project.Registry, *fakeEnqueuer) {
	t.Helper()
	registry := project.NewRegistry()
	enq := &fakeEnqueuer{}
	svc := NewService(registry, &fakeRepoChecker{repos: repos}, enq, notify.NewService(loggy.NewNoopLogger()), loggy.NewNoopLogger())
	return svc, registry, enq
}

func TestScanOnceDiscoversDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "alpha"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "beta"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	svc, registry, _ := newTestService(t, map[string]bool{
		filepath.Join(root, "alpha"): true,
		filepath.Join(root, "beta"):  true,
	})

	found := svc.ScanOnce([]string{root})
	assert.Equal(t, 2, found)
	assert.Equal(t, 2, registry.Len())

	p, ok := registry.Get(filepath.Join(root, "alpha"))
	require.True(t, ok)
	assert.Equal(t, "alpha", p.Name)
	assert.True(t, p.HasRepo)
	assert.Equal(t, project.StatusReady, p.Status)
}

func TestScanOnceEnqueuesProjectsWithoutRepo(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "fresh")
	require.NoError(t, os.Mkdir(dir, 0o755))

	svc, registry, enq := newTestService(t, map[string]bool{})

	svc.ScanOnce([]string{root})

	p, ok := registry.Get(dir)
	require.True(t, ok)
	assert.False(t, p.HasRepo)
	assert.Equal(t, project.StatusNeedsRepo, p.Status)
	assert.Equal(t, []string{dir}, enq.paths)
}

func TestScanOnceSkipsKnownProjects(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "known")
	require.NoError(t, os.Mkdir(dir, 0o755))

	svc, registry, _ := newTestService(t, map[string]bool{dir: true})

	assert.Equal(t, 1, svc.ScanOnce([]string{root}))
	assert.Equal(t, 0, svc.ScanOnce([]string{root}))
	assert.Equal(t, 1, registry.Len())
}

func TestScanOnceMissingRootIsNotFatal(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "proj")
	require.NoError(t, os.Mkdir(dir, 0o755))

	svc, registry, _ := newTestService(t, map[string]bool{dir: true})

	found := svc.ScanOnce([]string{filepath.Join(root, "does-not-exist"), root})
	assert.Equal(t, 1, found)
	assert.Equal(t, 1, registry.Len())
}

func TestDetectLanguage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# readme\n"), 0o644))

	assert.Equal(t, "Go", DetectLanguage(dir))
}

func TestDetectLanguageEmptyDir(t *testing.T) {
	assert.Equal(t, "", DetectLanguage(t.TempDir()))
}
