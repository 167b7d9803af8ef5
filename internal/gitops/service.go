// Package gitops wraps the local git operations the sync workflow needs.
// It is a thin collaborator over go-git: repository bootstrap, status,
// commit and push. Nothing here is ever destructive: no force pushes,
// no resets, no deletions.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/tildaslashalef/shepherd/internal/loggy"
)

// Service provides git operations on project folders
type Service struct {
	logger *loggy.Logger
}

// NewService creates a new git service
func NewService(logger *loggy.Logger) *Service {
	return &Service{
		logger: logger,
	}
}

// IsRepo checks if the provided path contains a valid git repository
func (s *Service) IsRepo(path string) bool {
	_, err := git.PlainOpen(path)
	if err != nil {
		s.logger.Debug("Not a git repository", "path", path, "error", err)
		return false
	}
	return true
}

// Init initializes a new repository at path with the given default branch
func (s *Service) Init(path, defaultBranch string) error {
	_, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(defaultBranch),
		},
	})
	if err != nil {
		return fmt.Errorf("initializing repository: %w", err)
	}

	s.logger.Info("Initialized repository", "path", path, "branch", defaultBranch)
	return nil
}

// SetIdentity writes the commit author identity into the repository config
func (s *Service) SetIdentity(path, name, email string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("reading repository config: %w", err)
	}

	cfg.User.Name = name
	cfg.User.Email = email

	if err := repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("writing repository config: %w", err)
	}
	return nil
}

// WriteIgnoreFile writes a .gitignore from the given patterns.
// An existing .gitignore is left untouched.
func (s *Service) WriteIgnoreFile(path string, patterns []string) error {
	ignorePath := filepath.Join(path, ".gitignore")
	if _, err := os.Stat(ignorePath); err == nil {
		s.logger.Debug("Keeping existing .gitignore", "path", ignorePath)
		return nil
	}

	content := strings.Join(patterns, "\n") + "\n"
	if err := os.WriteFile(ignorePath, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}

// ChangedFiles returns the paths of files the worktree reports as changed,
// staged or untracked, sorted for deterministic output.
func (s *Service) ChangedFiles(path string) ([]string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("getting worktree status: %w", err)
	}

	var files []string
	for file, fileStatus := range status {
		if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
			continue
		}
		files = append(files, file)
	}
	sort.Strings(files)
	return files, nil
}

// CommitAll stages every change and commits with the given message,
// returning the number of files in the commit. When the worktree is clean
// it commits nothing and returns 0, except in a repository without any
// commit yet, where an empty initial commit is allowed so the branch exists.
func (s *Service) CommitAll(path, message, authorName, authorEmail string) (int, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return 0, fmt.Errorf("opening repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return 0, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return 0, fmt.Errorf("getting worktree status: %w", err)
	}

	changed := 0
	for _, fileStatus := range status {
		if fileStatus.Staging != git.Unmodified || fileStatus.Worktree != git.Unmodified {
			changed++
		}
	}

	_, headErr := repo.Head()
	unborn := errors.Is(headErr, plumbing.ErrReferenceNotFound)

	if changed == 0 && !unborn {
		s.logger.Debug("Nothing to commit", "path", path)
		return 0, nil
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return 0, fmt.Errorf("staging changes: %w", err)
	}

	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
		AllowEmptyCommits: unborn,
	})
	if err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}

	s.logger.Info("Committed changes", "path", path, "files", changed)
	return changed, nil
}

// EnsureDefaultBranch makes sure HEAD points at the given branch name,
// renaming the current branch when it differs.
func (s *Service) EnsureDefaultBranch(path, branch string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}

	target := plumbing.NewBranchReferenceName(branch)

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Unborn HEAD: just point it at the target branch
			return repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, target))
		}
		return fmt.Errorf("getting HEAD: %w", err)
	}

	if head.Name() == target {
		return nil
	}

	if err := repo.Storer.SetReference(plumbing.NewHashReference(target, head.Hash())); err != nil {
		return fmt.Errorf("creating branch %s: %w", branch, err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, target)); err != nil {
		return fmt.Errorf("moving HEAD to %s: %w", branch, err)
	}
	if err := repo.Storer.RemoveReference(head.Name()); err != nil {
		return fmt.Errorf("removing old branch %s: %w", head.Name().Short(), err)
	}

	s.logger.Info("Renamed branch", "path", path, "from", head.Name().Short(), "to", branch)
	return nil
}

// RemoveRemote deletes the named remote. A missing remote is not an error.
func (s *Service) RemoveRemote(path, name string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}

	if err := repo.DeleteRemote(name); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return nil
		}
		return fmt.Errorf("removing remote %s: %w", name, err)
	}
	return nil
}

// SetRemote points the named remote at url, replacing any existing one
func (s *Service) SetRemote(path, name, url string) error {
	if err := s.RemoveRemote(path, name); err != nil {
		return err
	}

	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}

	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if err != nil {
		return fmt.Errorf("adding remote %s: %w", name, err)
	}
	return nil
}

// Push pushes the given branch to origin. An already up-to-date remote is
// treated as success.
func (s *Service) Push(ctx context.Context, path, branch string) error {
	return s.push(ctx, path, branch, false)
}

// PushSetUpstream pushes the branch and records origin as its upstream,
// the equivalent of `git push -u origin <branch>`.
func (s *Service) PushSetUpstream(ctx context.Context, path, branch string) error {
	return s.push(ctx, path, branch, true)
}

func (s *Service) push(ctx context.Context, path, branch string, setUpstream bool) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pushing %s: %w", branch, err)
	}

	if setUpstream {
		err = repo.CreateBranch(&gitconfig.Branch{
			Name:   branch,
			Remote: "origin",
			Merge:  plumbing.NewBranchReferenceName(branch),
		})
		if err != nil && !errors.Is(err, git.ErrBranchExists) {
			return fmt.Errorf("recording upstream for %s: %w", branch, err)
		}
	}

	return nil
}

// IsMissingUpstream reports whether a push failure looks like a branch
// without upstream tracking, which merits one retry with PushSetUpstream.
func IsMissingUpstream(err error) bool {
	if err == nil {
		return false
	}

	var noMatch git.NoMatchingRefSpecError
	if errors.As(err, &noMatch) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "upstream") ||
		strings.Contains(msg, "couldn't find remote ref") ||
		strings.Contains(msg, "src refspec")
}
