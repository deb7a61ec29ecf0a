// Package preflight verifies the environment before a workflow run touches
// the repository or any remote service.
package preflight

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/holon-run/prflow/pkg/config"
	"github.com/holon-run/prflow/pkg/git"
	"github.com/holon-run/prflow/pkg/github"
	"github.com/holon-run/prflow/pkg/log"
)

// CheckLevel represents the severity level of a preflight check
type CheckLevel int

const (
	// LevelError indicates a critical failure that prevents execution
	LevelError CheckLevel = iota
	// LevelWarn indicates a warning that should be addressed but doesn't block execution
	LevelWarn
	// LevelInfo indicates informational output
	LevelInfo
)

// CheckResult represents the result of a single preflight check
type CheckResult struct {
	Name    string     // Check name
	Level   CheckLevel // Severity level
	Message string     // Human-readable message
	Error   error      // Underlying error (if any)
}

// Check represents a single preflight check
type Check interface {
	// Name returns the check name
	Name() string
	// Run executes the check and returns a CheckResult
	Run(ctx context.Context) CheckResult
}

// Checker runs a collection of preflight checks
type Checker struct {
	checks  []Check
	skipped bool
	quiet   bool
}

// Config configures the preflight checker
type Config struct {
	// Skip skips all preflight checks
	Skip bool
	// Quiet suppresses info-level messages
	Quiet bool
	// RequireGit checks that the git binary is on PATH
	RequireGit bool
	// Repo, when set, must be a git repository with a GitHub remote
	Repo *git.Client
	// Settings is where credentials are looked up
	Settings config.Reader
	// RequireGitHubToken checks that a GitHub token is configured
	RequireGitHubToken bool
	// RequireLinearKey checks that a Linear API key is configured
	RequireLinearKey bool
	// NetworkURL, when set, is probed with a HEAD request
	NetworkURL string
}

// NewChecker creates a new preflight checker with the given configuration
func NewChecker(cfg Config) *Checker {
	c := &Checker{
		skipped: cfg.Skip,
		quiet:   cfg.Quiet,
	}

	if cfg.RequireGit {
		c.checks = append(c.checks, &GitCheck{})
	}
	if cfg.Repo != nil {
		c.checks = append(c.checks, &RepositoryCheck{Repo: cfg.Repo})
	}
	if cfg.RequireGitHubToken {
		c.checks = append(c.checks, &CredentialCheck{
			Settings: cfg.Settings,
			Key:      config.KeyGitHubToken,
			Label:    "github-token",
			Hint:     "run 'prflow setup' or set " + config.EnvName(config.KeyGitHubToken),
		})
	}
	if cfg.RequireLinearKey {
		c.checks = append(c.checks, &CredentialCheck{
			Settings: cfg.Settings,
			Key:      config.KeyLinearAPIKey,
			Label:    "linear-api-key",
			Hint:     "run 'prflow setup' or set " + config.EnvName(config.KeyLinearAPIKey),
		})
	}
	if cfg.NetworkURL != "" {
		c.checks = append(c.checks, &NetworkCheck{URL: cfg.NetworkURL})
	}

	return c
}

// Checks returns the names of the registered checks in run order.
func (c *Checker) Checks() []string {
	names := make([]string, len(c.checks))
	for i, check := range c.checks {
		names[i] = check.Name()
	}
	return names
}

// Run executes all registered checks and returns an error if any critical checks fail
func (c *Checker) Run(ctx context.Context) error {
	if c.skipped {
		log.Debug("preflight checks skipped")
		return nil
	}

	var errs []error
	var warnings []string

	for _, check := range c.checks {
		result := check.Run(ctx)

		switch result.Level {
		case LevelError:
			log.Debug("preflight check failed", "check", result.Name, "message", result.Message)
			errs = append(errs, fmt.Errorf("%s: %s", result.Name, result.Message))
		case LevelWarn:
			log.Warn("preflight check warning", "check", result.Name, "message", result.Message)
			warnings = append(warnings, fmt.Sprintf("%s: %s", result.Name, result.Message))
		case LevelInfo:
			if !c.quiet {
				log.Debug("preflight check", "check", result.Name, "message", result.Message)
			}
		}
	}

	if len(warnings) > 0 {
		log.Debug("preflight warnings", "count", len(warnings))
	}

	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("preflight checks failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}

	return nil
}

// GitCheck checks if git is installed
type GitCheck struct{}

func (c *GitCheck) Name() string {
	return "git"
}

func (c *GitCheck) Run(ctx context.Context) CheckResult {
	_, err := exec.LookPath("git")
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: "git command not found. Please install Git from https://git-scm.com/downloads",
			Error:   err,
		}
	}

	output, err := exec.CommandContext(ctx, "git", "--version").CombinedOutput()
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: "git is installed but may not be working correctly",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("git is available (%s)", strings.TrimSpace(string(output))),
	}
}

// RepositoryCheck checks that the working directory is a repository whose
// remote points at GitHub.
type RepositoryCheck struct {
	Repo *git.Client
}

func (c *RepositoryCheck) Name() string {
	return "repository"
}

func (c *RepositoryCheck) Run(ctx context.Context) CheckResult {
	if !c.Repo.IsRepo(ctx) {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("%s is not a git repository", c.Repo.Dir),
			Error:   fmt.Errorf("not a git repository"),
		}
	}

	remoteURL, err := c.Repo.RemoteURL(ctx)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("remote %q is not configured", c.Repo.Remote),
			Error:   err,
		}
	}

	ref, err := github.ParseRemoteURL(remoteURL)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("remote %q does not point at a GitHub repository: %s", c.Repo.Remote, remoteURL),
			Error:   err,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("repository %s", ref),
	}
}

// CredentialCheck checks that a credential is present in the configuration.
// It does not contact the service.
type CredentialCheck struct {
	Settings config.Reader
	Key      string
	Label    string
	Hint     string
}

func (c *CredentialCheck) Name() string {
	return c.Label
}

func (c *CredentialCheck) Run(ctx context.Context) CheckResult {
	if c.Settings == nil || strings.TrimSpace(c.Settings.Get(c.Key)) == "" {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("%s is not configured; %s", c.Key, c.Hint),
			Error:   config.ErrMissing,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("%s is configured", c.Key),
	}
}

// NetworkCheck performs a basic network connectivity check
// This is best-effort and may not catch all network issues
type NetworkCheck struct {
	URL    string
	Client *http.Client
}

func (c *NetworkCheck) Name() string {
	return "network"
}

func (c *NetworkCheck) Run(ctx context.Context) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, c.URL, nil)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: "failed to create network check request",
			Error:   err,
		}
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: fmt.Sprintf("%s is unreachable; remote calls will likely fail", c.URL),
			Error:   err,
		}
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		log.Debug("failed to drain response body", "error", err)
	}

	if resp.StatusCode >= 500 {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: fmt.Sprintf("network check returned unexpected status: %d", resp.StatusCode),
			Error:   fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: "network connectivity appears functional",
	}
}
