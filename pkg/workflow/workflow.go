// Package workflow turns a task reference into a pushed branch and a draft pull request.
//
// The Orchestrator runs a fixed sequence of stages:
//
//	ParseInput → ResolveIssue → CheckAssignment (optional) → ResolveModule →
//	ReconcileBranch → ComposeTitle → PushAndOpenPR → Annotate (best effort)
//
// Any stage failure aborts the run. Work already published by earlier stages
// (a pushed branch, an opened pull request) is left in place.
package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/holon-run/prflow/pkg/config"
	"github.com/holon-run/prflow/pkg/github"
	"github.com/holon-run/prflow/pkg/linear"
	"github.com/holon-run/prflow/pkg/log"
	"github.com/holon-run/prflow/pkg/taskid"
)

// IssueTracker is the issue tracker the workflow reads issues from.
type IssueTracker interface {
	// Issue returns nil, nil when the identifier does not exist.
	Issue(ctx context.Context, identifier string) (*linear.Issue, error)
	Viewer(ctx context.Context) (*linear.User, error)
	CommentOnIssue(ctx context.Context, issueID, body string) error
}

// SourceHost is the repository host pull requests are opened on.
type SourceHost interface {
	Repository(ctx context.Context) (*github.Repository, error)
	CreatePullRequest(ctx context.Context, newPR github.NewPullRequest) (*github.PullRequest, error)
}

// VersionControl is the local repository.
type VersionControl interface {
	CurrentBranch(ctx context.Context) (string, error)
	BranchExistsLocal(ctx context.Context, name string) (bool, error)
	BranchExistsRemote(ctx context.Context, name string) (bool, error)
	Fetch(ctx context.Context, branch string) error
	Checkout(ctx context.Context, branch string) error
	CheckoutTracking(ctx context.Context, branch string) error
	CreateBranch(ctx context.Context, branch, startPoint string) error
	UpdateBranch(ctx context.Context, branch, target string) error
	CommitsAhead(ctx context.Context, base, head string) (int, error)
	EmptyCommit(ctx context.Context, message string) error
	Push(ctx context.Context, branch string) error
}

// Prompter asks the user for a module when the one given cannot be used as is.
type Prompter interface {
	// ConfirmScope offers formatted in place of original.
	ConfirmScope(original, formatted string) (bool, error)
	// AskScope asks for a module, pre-filled with suggestion.
	AskScope(suggestion string) (string, error)
}

// Settings are the configuration values the workflow reads.
type Settings struct {
	BaseBranch     string
	Remote         string
	CommentOnIssue bool
}

// SettingsFromConfig resolves Settings from the configuration store.
func SettingsFromConfig(r config.Reader) Settings {
	s := Settings{
		BaseBranch:     r.Get(config.KeyBaseBranch),
		Remote:         r.Get(config.KeyRemote),
		CommentOnIssue: config.Bool(r, config.KeyCommentOnIssue),
	}
	if s.BaseBranch == "" {
		s.BaseBranch = config.DefaultBaseBranch
	}
	if s.Remote == "" {
		s.Remote = config.DefaultRemote
	}
	return s
}

// Options is the fully resolved input for one run.
type Options struct {
	// Reference is an identifier (ENG-42) or a branch name containing one.
	Reference         string
	Type              taskid.Type
	Module            string
	EnforceAssignment bool
	// ExactBranch uses Reference verbatim as the branch name.
	ExactBranch bool
}

// Result describes what a run produced.
type Result struct {
	Issue       *linear.Issue
	Plan        BranchPlan
	Spec        PullRequestSpec
	PullRequest *github.PullRequest
}

// Orchestrator drives the gateways through the workflow stages.
type Orchestrator struct {
	issues   IssueTracker
	host     SourceHost
	vcs      VersionControl
	prompt   Prompter
	settings Settings
}

// New creates an Orchestrator. prompt may be nil for non-interactive use, in
// which case a module that needs confirming is an error.
func New(issues IssueTracker, host SourceHost, vcs VersionControl, prompt Prompter, settings Settings) *Orchestrator {
	if settings.BaseBranch == "" {
		settings.BaseBranch = config.DefaultBaseBranch
	}
	if settings.Remote == "" {
		settings.Remote = config.DefaultRemote
	}
	return &Orchestrator{
		issues:   issues,
		host:     host,
		vcs:      vcs,
		prompt:   prompt,
		settings: settings,
	}
}

// Run executes the workflow for opts.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Type == "" {
		opts.Type = taskid.DefaultType
	}

	ref, err := ParseReference(opts.Reference)
	if err != nil {
		return nil, err
	}
	log.Debug("parsed reference", "input", opts.Reference, "id", ref.ID, "branch_like", ref.BranchLike)

	issue, err := o.resolveIssue(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	log.Progressf("Found %s: %s", issue.Identifier, issue.Title)

	if opts.EnforceAssignment {
		if err := o.checkAssignment(ctx, issue); err != nil {
			return nil, err
		}
	}

	scope, err := o.resolveModule(opts.Module, issue)
	if err != nil {
		return nil, err
	}

	plan, err := o.reconcileBranch(ctx, ref, opts.ExactBranch, issue)
	if err != nil {
		return nil, err
	}

	spec := ComposeSpec(opts.Type, scope, ref.ID, issue)

	pr, err := o.pushAndOpen(ctx, plan, spec)
	if err != nil {
		return nil, err
	}

	o.annotate(ctx, issue, pr)

	return &Result{
		Issue:       issue,
		Plan:        plan,
		Spec:        spec,
		PullRequest: pr,
	}, nil
}

// Reference is a parsed task reference.
type Reference struct {
	Raw        string
	ID         string
	BranchLike bool
}

// ParseReference resolves raw input into a canonical identifier. Input with a
// "/" or a "-" that is not a bare identifier is treated as a branch name.
func ParseReference(raw string) (Reference, error) {
	if raw == "" {
		return Reference{}, fmt.Errorf("task identifier or branch name is required")
	}

	if taskid.IsBranchLike(raw) {
		id, ok := taskid.Extract(raw)
		if !ok {
			return Reference{}, fmt.Errorf("could not find a task identifier in %q (expected something like ENG-123)", raw)
		}
		return Reference{Raw: raw, ID: id, BranchLike: true}, nil
	}

	if !taskid.IsCanonical(raw) {
		return Reference{}, fmt.Errorf("invalid task identifier %q (expected something like ENG-123)", raw)
	}
	return Reference{Raw: raw, ID: strings.ToUpper(raw)}, nil
}

func (o *Orchestrator) resolveIssue(ctx context.Context, id string) (*linear.Issue, error) {
	issue, err := o.issues.Issue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue %s: %w", id, err)
	}
	if issue == nil {
		return nil, fmt.Errorf("issue %s not found", id)
	}
	return issue, nil
}

// checkAssignment fails closed: if the viewer cannot be determined the issue
// counts as not assigned.
func (o *Orchestrator) checkAssignment(ctx context.Context, issue *linear.Issue) error {
	viewer, err := o.issues.Viewer(ctx)
	if err != nil {
		return fmt.Errorf("issue %s is not assigned to you (could not verify assignment: %v)", issue.Identifier, err)
	}
	if viewer == nil {
		return fmt.Errorf("issue %s is not assigned to you (could not determine the current user)", issue.Identifier)
	}

	assignee := issue.AssigneeID()
	switch {
	case assignee == "":
		return fmt.Errorf("issue %s is not assigned to anyone; assign it to yourself or drop --enforce-assignment", issue.Identifier)
	case assignee != viewer.ID:
		name := issue.Assignee.DisplayName
		if name == "" {
			name = issue.Assignee.Name
		}
		return fmt.Errorf("issue %s is assigned to %s, not to you", issue.Identifier, name)
	}
	log.Debug("assignment verified", "issue", issue.Identifier, "user", viewer.ID)
	return nil
}

// resolveModule picks the PR scope. A valid module is used as is; an invalid one
// is offered reformatted and only replaced by a fresh prompt if declined. With no
// module the issue's project name is used, else the user is asked.
func (o *Orchestrator) resolveModule(module string, issue *linear.Issue) (string, error) {
	if module != "" {
		if taskid.ValidScope(module) {
			return module, nil
		}

		formatted := taskid.FormatScope(module)
		if formatted != "" {
			if o.prompt == nil {
				return "", fmt.Errorf("invalid module %q (did you mean %q?)", module, formatted)
			}
			ok, err := o.prompt.ConfirmScope(module, formatted)
			if err != nil {
				return "", err
			}
			if ok {
				return formatted, nil
			}
		}
		return o.askScope(formatted)
	}

	if project := taskid.FormatScope(issue.ProjectName()); project != "" {
		log.Debug("using project as module", "project", issue.ProjectName(), "module", project)
		return project, nil
	}
	return o.askScope("")
}

func (o *Orchestrator) askScope(suggestion string) (string, error) {
	if o.prompt == nil {
		return "", fmt.Errorf("module is required (pass --module)")
	}
	answer, err := o.prompt.AskScope(suggestion)
	if err != nil {
		return "", err
	}
	scope := taskid.FormatScope(answer)
	if scope == "" {
		return "", fmt.Errorf("invalid module %q: use lowercase letters, digits and hyphens", answer)
	}
	return scope, nil
}

func (o *Orchestrator) annotate(ctx context.Context, issue *linear.Issue, pr *github.PullRequest) {
	if !o.settings.CommentOnIssue {
		log.Debug("comment-back disabled", "issue", issue.Identifier)
		return
	}

	body := fmt.Sprintf("Pull request opened: [#%d %s](%s)", pr.Number, pr.Title, pr.HTMLURL)
	if err := o.issues.CommentOnIssue(ctx, issue.ID, body); err != nil {
		log.Warn("failed to comment on issue", "issue", issue.Identifier, "error", err)
		return
	}
	log.Info("linked pull request on issue", "issue", issue.Identifier)
}
