// Package workflow implements the per-project sync pipeline: making sure a
// remote repository exists, bootstrapping the local one, committing pending
// changes and pushing them.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tildaslashalef/shepherd/internal/config"
	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/project"
)

// TotalSteps is the number of pipeline stages reported to observers
const TotalSteps = 7

// noreplyDomain is the address suffix used for commit author emails
const noreplyDomain = "users.noreply.github.com"

// ErrOffline is returned when the network probe reports no connectivity
var ErrOffline = errors.New("network unreachable")

// GitClient is the local repository surface the pipeline drives
type GitClient interface {
	IsRepo(path string) bool
	Init(path, defaultBranch string) error
	SetIdentity(path, name, email string) error
	WriteIgnoreFile(path string, patterns []string) error
	ChangedFiles(path string) ([]string, error)
	CommitAll(path, message, authorName, authorEmail string) (int, error)
	EnsureDefaultBranch(path, branch string) error
	RemoveRemote(path, name string) error
	SetRemote(path, name, url string) error
	Push(ctx context.Context, path, branch string) error
	PushSetUpstream(ctx context.Context, path, branch string) error
}

// HostClient is the remote hosting surface the pipeline drives
type HostClient interface {
	Account() string
	RepoExists(ctx context.Context, name string) (bool, error)
	CreateRepo(ctx context.Context, name, description string) error
	AuthenticatedRemoteURL(repoName string) string
	BrowseURL(repoName string) string
}

// Reachability reports whether the network probe currently succeeds
type Reachability interface {
	Online() bool
}

// MissingUpstreamChecker recognizes push failures caused by an absent
// upstream branch so the pipeline can retry with one configured.
type MissingUpstreamChecker func(err error) bool

// Observer receives pipeline progress callbacks. Implementations must be
// fast; they run on the sync goroutine.
type Observer interface {
	OnStep(path string, step int, operation string)
	OnFilesTransferred(path string, count int)
}

// NopObserver discards all callbacks
type NopObserver struct{}

func (NopObserver) OnStep(string, int, string)     {}
func (NopObserver) OnFilesTransferred(string, int) {}

// Result summarizes a completed pipeline run for one project
type Result struct {
	RepoName       string
	RepoURL        string
	CreatedRepo    bool
	Bootstrapped   bool
	FilesCommitted int
	Pushed         bool
}

// Runner executes the sync pipeline for individual projects
type Runner struct {
	git             GitClient
	host            HostClient
	net             Reachability
	missingUpstream MissingUpstreamChecker
	cfg             *config.Config
	observer        Observer
	logger          *loggy.Logger
	now             func() time.Time
}

// NewRunner creates a pipeline runner
func NewRunner(git GitClient, host HostClient, net Reachability, missingUpstream MissingUpstreamChecker, cfg *config.Config, observer Observer, logger *loggy.Logger) *Runner {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Runner{
		git:             git,
		host:            host,
		net:             net,
		missingUpstream: missingUpstream,
		cfg:             cfg,
		observer:        observer,
		logger:          logger,
		now:             time.Now,
	}
}

// Run syncs one project end to end. Any error leaves the local repository in
// a consistent state; no step ever rewrites or discards local history.
func (r *Runner) Run(ctx context.Context, p project.Project, ignorePatterns []string) (*Result, error) {
	account := r.host.Account()
	authorEmail := fmt.Sprintf("%s@%s", account, noreplyDomain)
	branch := r.cfg.Git.DefaultBranch

	repoName := project.SanitizeRepoName(p.Name)
	if repoName == "" {
		return nil, fmt.Errorf("folder name %q yields no usable repository name", p.Name)
	}

	res := &Result{
		RepoName: repoName,
		RepoURL:  r.host.BrowseURL(repoName),
	}

	// Step 1: preconditions.
	r.observer.OnStep(p.Path, 1, "Checking preconditions")
	if _, err := os.Stat(p.Path); err != nil {
		return nil, fmt.Errorf("project folder unavailable: %w", err)
	}
	if !r.net.Online() {
		return nil, ErrOffline
	}

	// Step 2: remote existence.
	r.observer.OnStep(p.Path, 2, "Checking remote repository")
	exists, err := r.host.RepoExists(ctx, repoName)
	if err != nil {
		return nil, fmt.Errorf("checking repository %s: %w", repoName, err)
	}

	// Step 3: remote creation.
	r.observer.OnStep(p.Path, 3, "Creating remote repository")
	if !exists {
		description := repoDescription(p.Language)
		if err := r.host.CreateRepo(ctx, repoName, description); err != nil {
			return nil, fmt.Errorf("creating repository %s: %w", repoName, err)
		}
		res.CreatedRepo = true
		r.logger.Info("Created remote repository", "repo", repoName, "project", p.Path)
	}

	// Step 4: local bootstrap.
	r.observer.OnStep(p.Path, 4, "Preparing local repository")
	if !r.git.IsRepo(p.Path) {
		if err := r.bootstrap(p.Path, branch, account, authorEmail, ignorePatterns); err != nil {
			return nil, err
		}
		res.Bootstrapped = true
	}

	// Step 5: remote URL configuration. The token lives in the remote URL,
	// so it is rewritten on every run to pick up credential changes.
	r.observer.OnStep(p.Path, 5, "Configuring remote")
	remoteURL := r.host.AuthenticatedRemoteURL(repoName)
	if err := r.git.RemoveRemote(p.Path, "origin"); err != nil {
		r.logger.Warn("Removing remote failed", "project", p.Path, "error", err)
	}
	if err := r.git.SetRemote(p.Path, "origin", remoteURL); err != nil {
		r.logger.Warn("Configuring remote failed, reusing existing remote", "project", p.Path, "error", err)
	}

	// Step 6: commit pending changes.
	r.observer.OnStep(p.Path, 6, "Committing changes")
	changed, err := r.git.ChangedFiles(p.Path)
	if err != nil {
		return nil, fmt.Errorf("listing changes: %w", err)
	}
	if len(changed) > 0 {
		message := fmt.Sprintf("Automated sync %s", r.now().Format("2006-01-02 15:04:05"))
		n, err := r.git.CommitAll(p.Path, message, account, authorEmail)
		if err != nil {
			return nil, fmt.Errorf("committing changes: %w", err)
		}
		res.FilesCommitted = n
		r.observer.OnFilesTransferred(p.Path, n)
	}

	// Step 7: push.
	r.observer.OnStep(p.Path, 7, "Pushing to remote")
	if err := r.push(ctx, p.Path, branch); err != nil {
		return nil, fmt.Errorf("pushing %s: %w", repoName, err)
	}
	res.Pushed = true

	return res, nil
}

// bootstrap initializes a brand-new repository: identity, ignore file, an
// initial commit with everything present, and the configured default branch.
func (r *Runner) bootstrap(path, branch, account, authorEmail string, ignorePatterns []string) error {
	r.logger.Info("Bootstrapping local repository", "project", path, "branch", branch)

	if err := r.git.Init(path, branch); err != nil {
		return fmt.Errorf("initializing repository: %w", err)
	}
	if err := r.git.SetIdentity(path, account, authorEmail); err != nil {
		return fmt.Errorf("setting identity: %w", err)
	}
	if err := r.git.WriteIgnoreFile(path, ignorePatterns); err != nil {
		return fmt.Errorf("writing ignore file: %w", err)
	}
	if _, err := r.git.CommitAll(path, "Initial commit", account, authorEmail); err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}
	if err := r.git.EnsureDefaultBranch(path, branch); err != nil {
		return fmt.Errorf("setting default branch: %w", err)
	}
	return nil
}

// push pushes the branch, configuring the upstream once when the first
// attempt fails for lack of one.
func (r *Runner) push(ctx context.Context, path, branch string) error {
	err := r.git.Push(ctx, path, branch)
	if err == nil {
		return nil
	}
	if r.missingUpstream != nil && r.missingUpstream(err) {
		r.logger.Debug("Push retry with upstream", "project", path, "branch", branch)
		return r.git.PushSetUpstream(ctx, path, branch)
	}
	return err
}

func repoDescription(language string) string {
	if language == "" {
		return "Synced by shepherd"
	}
	return fmt.Sprintf("%s project synced by shepherd", language)
}
