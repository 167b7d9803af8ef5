// Package github is the remote-hosting collaborator: it answers whether a
// repository exists and creates missing ones. API failures are classified
// into distinct causes so the workflow can report them precisely.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/tildaslashalef/shepherd/internal/config"
	"github.com/tildaslashalef/shepherd/internal/loggy"
)

// Error causes surfaced to the workflow. Rate limiting is reported as-is:
// there is deliberately no automatic backoff or retry scheduling for it.
var (
	// ErrNotFound means the repository does not exist on the remote
	ErrNotFound = errors.New("repository not found")

	// ErrAuth means the access token was rejected
	ErrAuth = errors.New("authentication failed")

	// ErrRateLimited means the API rate limit was exhausted
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Client talks to the GitHub API on behalf of one account
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	cfg     *config.GitHubConfig
	logger  *loggy.Logger
	account string
	token   string
}

// NewClient creates a GitHub client for the given account and token
func NewClient(cfg *config.Config, account, token string, logger *loggy.Logger) (*Client, error) {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)

	timeout := cfg.GitHub.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = timeout

	var gh *github.Client
	if cfg.GitHub.APIURL != "" && cfg.GitHub.APIURL != "https://api.github.com" {
		var err error
		gh, err = github.NewEnterpriseClient(cfg.GitHub.APIURL, cfg.GitHub.APIURL, tc)
		if err != nil {
			return nil, fmt.Errorf("creating enterprise client: %w", err)
		}
	} else {
		gh = github.NewClient(tc)
	}

	perMinute := cfg.GitHub.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	return &Client{
		gh:      gh,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		cfg:     &cfg.GitHub,
		logger:  logger,
		account: account,
		token:   token,
	}, nil
}

// Account returns the account login the client acts for
func (c *Client) Account() string {
	return c.account
}

// Verify checks that the token authenticates as the configured account
func (c *Client) Verify(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return c.classify(err)
	}
	if login := user.GetLogin(); !strings.EqualFold(login, c.account) {
		return fmt.Errorf("token belongs to %q, not %q", login, c.account)
	}
	return nil
}

// RepoExists reports whether a repository with the given name exists under
// the account.
func (c *Client) RepoExists(ctx context.Context, name string) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	_, resp, err := c.gh.Repositories.Get(ctx, c.account, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, c.classify(err)
	}
	return true, nil
}

// CreateRepo creates a private repository under the account. A conflict
// response (the repository already exists) is success, not failure.
func (c *Client) CreateRepo(ctx context.Context, name, description string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CreateTimeout)
	defer cancel()

	repo := &github.Repository{
		Name:        github.String(name),
		Private:     github.Bool(true),
		Description: github.String(description),
	}

	_, resp, err := c.gh.Repositories.Create(ctx, "", repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity && isNameConflict(err) {
			c.logger.Debug("Repository already exists", "name", name)
			return nil
		}
		return c.classify(err)
	}

	c.logger.Info("Created repository", "name", name, "account", c.account)
	return nil
}

// AuthenticatedRemoteURL builds the clone URL with embedded credentials.
// This is the single place credentials are attached to a URL, so it can be
// swapped for a credential-helper approach later.
func (c *Client) AuthenticatedRemoteURL(repoName string) string {
	host := "github.com"
	if c.cfg.APIURL != "" && c.cfg.APIURL != "https://api.github.com" {
		if u, err := url.Parse(c.cfg.APIURL); err == nil && u.Host != "" {
			host = u.Host
		}
	}
	return fmt.Sprintf("https://%s:%s@%s/%s/%s.git", c.account, c.token, host, c.account, repoName)
}

// BrowseURL builds the human-facing repository page URL (no credentials)
func (c *Client) BrowseURL(repoName string) string {
	host := "github.com"
	if c.cfg.APIURL != "" && c.cfg.APIURL != "https://api.github.com" {
		if u, err := url.Parse(c.cfg.APIURL); err == nil && u.Host != "" {
			host = u.Host
		}
	}
	return fmt.Sprintf("https://%s/%s/%s", host, c.account, repoName)
}

// classify maps a go-github error to one of the workflow-visible causes
func (c *Client) classify(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	var apiErr *github.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		switch apiErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case http.StatusForbidden:
			if strings.Contains(strings.ToLower(apiErr.Message), "rate limit") {
				return fmt.Errorf("%w: %v", ErrRateLimited, err)
			}
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}

	return err
}

// isNameConflict reports whether a 422 is the "name already exists" case
// rather than some other validation failure.
func isNameConflict(err error) bool {
	var apiErr *github.ErrorResponse
	if !errors.As(err, &apiErr) {
		return false
	}

	for _, e := range apiErr.Errors {
		if e.Field == "name" && strings.Contains(e.Message, "already exists") {
			return true
		}
	}
	// GitHub's message wording has shifted over time; fall back to the
	// top-level message.
	return strings.Contains(strings.ToLower(apiErr.Message), "already exists") ||
		strings.Contains(strings.ToLower(apiErr.Message), "name already")
}
