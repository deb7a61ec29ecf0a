package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/holon-run/prflow/pkg/github"
	"github.com/holon-run/prflow/pkg/linear"
	"github.com/holon-run/prflow/pkg/log"
	"github.com/holon-run/prflow/pkg/taskid"
)

const noDescription = "_No description provided._"

// PullRequestSpec is the pull request a run opens.
type PullRequestSpec struct {
	Type   taskid.Type
	Scope  string
	TaskID string
	// Summary is the human part of the title, taken from the issue.
	Summary string
	// Title is the composed type(scope): [ID] summary line.
	Title string
	Body  string
	Draft bool
}

// ComposeSpec builds the pull request title and body for issue.
func ComposeSpec(prType taskid.Type, scope, taskID string, issue *linear.Issue) PullRequestSpec {
	return PullRequestSpec{
		Type:    prType,
		Scope:   taskid.FormatScope(scope),
		TaskID:  strings.ToUpper(taskID),
		Summary: issue.Title,
		Title:   taskid.ComposeTitle(prType, scope, taskID, issue.Title),
		Body:    RenderBody(issue),
		Draft:   true,
	}
}

// RenderBody renders the markdown body linking back to the issue.
func RenderBody(issue *linear.Issue) string {
	description := strings.TrimSpace(issue.Description)
	if description == "" {
		description = noDescription
	}

	var b strings.Builder
	b.WriteString("## Linear Issue\n")
	fmt.Fprintf(&b, "[%s](%s)\n\n", issue.Identifier, issue.URL)
	b.WriteString("## Description\n")
	b.WriteString(description)
	b.WriteString("\n")
	return b.String()
}

// placeholderMessage is the commit created when a branch has nothing to review yet.
func placeholderMessage(taskID string) string {
	return fmt.Sprintf("chore: start work on %s", taskID)
}

// pushAndOpen makes sure the branch differs from the base, pushes it and opens
// the draft pull request.
func (o *Orchestrator) pushAndOpen(ctx context.Context, plan BranchPlan, spec PullRequestSpec) (*github.PullRequest, error) {
	if err := o.ensureCommit(ctx, plan, spec.TaskID); err != nil {
		return nil, err
	}

	if err := o.vcs.Push(ctx, plan.Branch); err != nil {
		log.Warn("push failed, opening the pull request anyway", "branch", plan.Branch, "error", err)
	} else {
		log.Progressf("Pushed %s to %s", plan.Branch, o.settings.Remote)
	}

	repo, err := o.host.Repository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}

	target := github.RepoRef{Owner: repo.Owner, Name: repo.Name}
	if repo.Fork && repo.Parent != nil {
		target = *repo.Parent
		log.Debug("repository is a fork, targeting parent", "fork", repo.FullName, "parent", target.String())
	}

	var lastErr error
	for i, head := range headCandidates(repo, plan.Branch) {
		pr, err := o.host.CreatePullRequest(ctx, github.NewPullRequest{
			Owner:               target.Owner,
			Repo:                target.Name,
			Title:               spec.Title,
			Head:                head,
			Base:                plan.Base,
			Body:                spec.Body,
			Draft:               spec.Draft,
			MaintainerCanModify: true,
		})
		if err == nil {
			return pr, nil
		}
		lastErr = err
		if !github.IsAPIError(err) || github.IsRateLimitError(err) {
			break
		}
		if i == 0 {
			log.Warn("pull request creation rejected, retrying with plain branch name", "head", head, "error", err)
		}
	}

	return nil, createError(lastErr, target, plan.Base)
}

// createError adds a hint for the rejections a user can act on.
func createError(err error, target github.RepoRef, base string) error {
	switch {
	case github.IsRateLimitError(err):
		return fmt.Errorf("failed to create pull request (GitHub rate limit reached, retry later): %w", err)
	case github.IsNotFoundError(err):
		return fmt.Errorf("failed to create pull request (%s or base branch %s not found): %w", target.String(), base, err)
	}
	return fmt.Errorf("failed to create pull request: %w", err)
}

// headCandidates lists the head refs to try: owner:branch for forks, then the
// bare branch name.
func headCandidates(repo *github.Repository, branch string) []string {
	var candidates []string
	if repo.Fork && repo.Owner != "" {
		candidates = append(candidates, github.QualifiedHead(repo.Owner, branch))
	}
	candidates = append(candidates, branch)

	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// ensureCommit adds an empty commit when the branch has nothing over the base,
// since the host refuses pull requests without commits. If the comparison
// itself fails the commit is skipped.
func (o *Orchestrator) ensureCommit(ctx context.Context, plan BranchPlan, taskID string) error {
	ahead, err := o.commitsAhead(ctx, plan)
	if err != nil {
		log.Warn("could not compare branch with base, skipping placeholder commit", "branch", plan.Branch, "error", err)
		return nil
	}
	if ahead > 0 {
		return nil
	}

	if err := o.vcs.EmptyCommit(ctx, placeholderMessage(taskID)); err != nil {
		return fmt.Errorf("failed to create placeholder commit: %w", err)
	}
	log.Progressf("Added placeholder commit to %s", plan.Branch)
	return nil
}

// commitsAhead compares against the start point, then the remote base, then the local base.
func (o *Orchestrator) commitsAhead(ctx context.Context, plan BranchPlan) (int, error) {
	var bases []string
	if plan.StartPoint != "" {
		bases = append(bases, plan.StartPoint)
	}
	for _, b := range []string{o.remoteRef(plan.Base), plan.Base} {
		if b != plan.StartPoint {
			bases = append(bases, b)
		}
	}

	var lastErr error
	for _, base := range bases {
		n, err := o.vcs.CommitsAhead(ctx, base, plan.Branch)
		if err == nil {
			return n, nil
		}
		lastErr = err
	}
	return 0, lastErr
}
