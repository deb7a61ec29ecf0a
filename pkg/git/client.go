// Package git drives the local repository for the pull request workflow.
//
// Read-only queries (current branch, local refs, remote URLs) go through go-git.
// Anything that touches the network or mutates the work tree shells out to the
// system git binary so that the user's credential helpers, hooks and config apply.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// DefaultRemote is the remote used when none is configured.
const DefaultRemote = "origin"

// ErrDetachedHead is returned by CurrentBranch when HEAD is not on a branch.
var ErrDetachedHead = errors.New("HEAD is detached")

// ErrBranchDiverged is returned by UpdateBranch when the local branch cannot be fast-forwarded.
var ErrBranchDiverged = errors.New("branch has diverged")

// Runner executes git commands in a directory and returns trimmed stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("git %s failed: %w", sanitizeArgs(args), err)
		}
		return "", fmt.Errorf("git %s failed: %w: %s", sanitizeArgs(args), err, msg)
	}
	return strings.TrimSpace(string(out)), nil
}

// sanitizeArgs hides identity overrides so they do not end up in logs.
func sanitizeArgs(args []string) string {
	safe := make([]string, len(args))
	for i, arg := range args {
		if strings.HasPrefix(arg, "user.email=") {
			safe[i] = "user.email=[REDACTED]"
			continue
		}
		safe[i] = arg
	}
	return strings.Join(safe, " ")
}

// Client operates on one repository.
type Client struct {
	Dir    string
	Remote string
	runner Runner
}

// Option configures a Client.
type Option func(*Client)

// WithRemote sets the remote branches are fetched from and pushed to.
func WithRemote(remote string) Option {
	return func(c *Client) {
		if remote != "" {
			c.Remote = remote
		}
	}
}

// WithRunner injects a custom command runner.
func WithRunner(runner Runner) Option {
	return func(c *Client) {
		c.runner = runner
	}
}

// NewClient creates a client for the repository at dir.
func NewClient(dir string, opts ...Option) *Client {
	c := &Client{
		Dir:    dir,
		Remote: DefaultRemote,
		runner: execRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) git(ctx context.Context, args ...string) (string, error) {
	return c.runner.Run(ctx, c.Dir, args...)
}

func (c *Client) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(c.Dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", c.Dir, err)
	}
	return repo, nil
}

// IsRepo reports whether Dir is inside a git repository.
func (c *Client) IsRepo(ctx context.Context) bool {
	_, err := c.open()
	return err == nil
}

// CurrentBranch returns the short name of the checked out branch.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	repo, err := c.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Name().Short(), nil
}

// BranchExistsLocal reports whether refs/heads/<name> exists.
func (c *Client) BranchExistsLocal(ctx context.Context, name string) (bool, error) {
	return c.hasRef(plumbing.NewBranchReferenceName(name))
}

func (c *Client) hasRef(name plumbing.ReferenceName) (bool, error) {
	repo, err := c.open()
	if err != nil {
		return false, err
	}
	_, err = repo.Reference(name, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	return true, nil
}

// RemoteURL returns the first URL configured for the client's remote.
func (c *Client) RemoteURL(ctx context.Context) (string, error) {
	repo, err := c.open()
	if err != nil {
		return "", err
	}
	remote, err := repo.Remote(c.Remote)
	if err != nil {
		return "", fmt.Errorf("failed to read remote %s: %w", c.Remote, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no URL", c.Remote)
	}
	return urls[0], nil
}

// RemoteRef returns <remote>/<branch>.
func (c *Client) RemoteRef(branch string) string {
	return c.Remote + "/" + branch
}

// BranchExistsRemote asks the remote whether it has a branch called name.
func (c *Client) BranchExistsRemote(ctx context.Context, name string) (bool, error) {
	out, err := c.git(ctx, "ls-remote", "--heads", c.Remote, name)
	if err != nil {
		return false, err
	}
	want := "refs/heads/" + name
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == want {
			return true, nil
		}
	}
	return false, nil
}

// Fetch updates the remote-tracking ref for branch.
func (c *Client) Fetch(ctx context.Context, branch string) error {
	_, err := c.git(ctx, "fetch", c.Remote, branch)
	return err
}

// Checkout switches to an existing local branch.
func (c *Client) Checkout(ctx context.Context, branch string) error {
	_, err := c.git(ctx, "checkout", branch)
	return err
}

// CheckoutTracking creates a local branch tracking <remote>/<branch> and switches to it.
func (c *Client) CheckoutTracking(ctx context.Context, branch string) error {
	_, err := c.git(ctx, "checkout", "-b", branch, "--track", c.RemoteRef(branch))
	return err
}

// CreateBranch creates branch at startPoint and switches to it.
func (c *Client) CreateBranch(ctx context.Context, branch, startPoint string) error {
	args := []string{"checkout", "--no-track", "-b", branch}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	_, err := c.git(ctx, args...)
	return err
}

// UpdateBranch fast-forwards the local branch to target, creating it with
// target as upstream when missing. A branch holding commits that target lacks
// is left alone and ErrBranchDiverged is returned.
func (c *Client) UpdateBranch(ctx context.Context, branch, target string) error {
	current, err := c.CurrentBranch(ctx)
	if err == nil && current == branch {
		_, err := c.git(ctx, "merge", "--ff-only", target)
		return err
	}

	exists, err := c.BranchExistsLocal(ctx, branch)
	if err != nil {
		return err
	}
	if !exists {
		_, err := c.git(ctx, "branch", "--track", branch, target)
		return err
	}

	if _, err := c.git(ctx, "merge-base", "--is-ancestor", branch, target); err != nil {
		return fmt.Errorf("%w: %s is not contained in %s: %v", ErrBranchDiverged, branch, target, err)
	}
	if _, err := c.git(ctx, "update-ref", "refs/heads/"+branch, target); err != nil {
		return err
	}
	_, err = c.git(ctx, "branch", "--set-upstream-to="+target, branch)
	return err
}

// CommitsAhead counts commits reachable from head but not from base.
func (c *Client) CommitsAhead(ctx context.Context, base, head string) (int, error) {
	out, err := c.git(ctx, "rev-list", "--count", base+".."+head)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output %q: %w", out, err)
	}
	return n, nil
}

// EmptyCommit records a commit with no changes on the current branch.
func (c *Client) EmptyCommit(ctx context.Context, message string) error {
	id := c.ResolveIdentity(ctx)
	_, err := c.git(ctx,
		"-c", "user.name="+id.Name,
		"-c", "user.email="+id.Email,
		"commit", "--allow-empty", "--no-verify", "-m", message)
	return err
}

// Push publishes branch to the remote and sets it as upstream.
func (c *Client) Push(ctx context.Context, branch string) error {
	_, err := c.git(ctx, "push", "--set-upstream", c.Remote, branch)
	return err
}
