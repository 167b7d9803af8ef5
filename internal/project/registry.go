package project

import (
	"sort"
	"sync"
)

// Registry is the single source of truth for tracked projects.
// Discovery and change detection add/remove records; the scheduler and
// workflow only mutate status fields on records the registry owns.
type Registry struct {
	mu       sync.RWMutex
	projects map[string]*Project
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		projects: make(map[string]*Project),
	}
}

// Add inserts a project record. It returns false if the path is already
// tracked, in which case the existing record is left untouched.
func (r *Registry) Add(p *Project) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[p.Path]; ok {
		return false
	}
	r.projects[p.Path] = p
	return true
}

// Get returns a copy of the record for the given path
func (r *Registry) Get(path string) (Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[path]
	if !ok {
		return Project{}, false
	}
	return *p, true
}

// Has reports whether the path is tracked
func (r *Registry) Has(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.projects[path]
	return ok
}

// Remove deletes the record for the given path
func (r *Registry) Remove(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[path]; !ok {
		return false
	}
	delete(r.projects, path)
	return true
}

// Update applies fn to the record for path while holding the registry lock.
// It returns false if the path is not tracked.
func (r *Registry) Update(path string, fn func(*Project)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[path]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// Paths returns all tracked paths, sorted for deterministic iteration order
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.projects))
	for path := range r.projects {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// List returns copies of all records, sorted by path
func (r *Registry) List() []Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Project, 0, len(r.projects))
	for _, p := range r.projects {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
	return list
}

// Len returns the number of tracked projects
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.projects)
}

// Clear removes every record. Used on shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.projects = make(map[string]*Project)
}
