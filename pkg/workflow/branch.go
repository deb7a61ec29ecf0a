package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/holon-run/prflow/pkg/git"
	"github.com/holon-run/prflow/pkg/linear"
	"github.com/holon-run/prflow/pkg/log"
	"github.com/holon-run/prflow/pkg/taskid"
)

// Outcome records how the target branch was obtained.
type Outcome string

const (
	OutcomeReuseLocal             Outcome = "reuse-local"
	OutcomeCheckoutRemote         Outcome = "checkout-remote"
	OutcomeCreateFromBase         Outcome = "create-from-base"
	OutcomeCreateFromHeadFallback Outcome = "create-from-head-fallback"
)

// BranchPlan is the reconciled branch for a run.
type BranchPlan struct {
	Branch string
	Base   string
	// StartPoint is the ref a new branch was created from; empty when the
	// branch already existed or was created from HEAD.
	StartPoint string
	Outcome    Outcome
}

// branchStrategy creates a branch that exists neither locally nor on the remote.
// It returns the start point used.
type branchStrategy struct {
	name    string
	outcome Outcome
	create  func(ctx context.Context, o *Orchestrator, branch, base string) (string, error)
}

// branchStrategies are tried in order; each runs only if the previous failed.
var branchStrategies = []branchStrategy{
	{name: "base-from-remote-ref", outcome: OutcomeCreateFromBase, create: createFromRemoteBase},
	{name: "base-from-local-ref", outcome: OutcomeCreateFromBase, create: createFromLocalBase},
	{name: "branch-from-current-head", outcome: OutcomeCreateFromHeadFallback, create: createFromHead},
}

// createFromRemoteBase fetches the base, refreshes the local copy of it and
// branches from the remote-tracking ref.
func createFromRemoteBase(ctx context.Context, o *Orchestrator, branch, base string) (string, error) {
	if err := o.vcs.Fetch(ctx, base); err != nil {
		return "", fmt.Errorf("fetch %s: %w", base, err)
	}

	remoteBase := o.remoteRef(base)
	if err := o.vcs.UpdateBranch(ctx, base, remoteBase); errors.Is(err, git.ErrBranchDiverged) {
		log.Warn("local base branch has commits not on the remote, leaving it unchanged", "branch", base, "remote", remoteBase)
	} else if err != nil {
		log.Warn("could not update local base branch", "branch", base, "error", err)
	}

	if err := o.vcs.CreateBranch(ctx, branch, remoteBase); err != nil {
		return "", err
	}
	return remoteBase, nil
}

func createFromLocalBase(ctx context.Context, o *Orchestrator, branch, base string) (string, error) {
	exists, err := o.vcs.BranchExistsLocal(ctx, base)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("no local branch %s", base)
	}
	if err := o.vcs.CreateBranch(ctx, branch, base); err != nil {
		return "", err
	}
	return base, nil
}

func createFromHead(ctx context.Context, o *Orchestrator, branch, _ string) (string, error) {
	if current, err := o.vcs.CurrentBranch(ctx); err == nil {
		log.Debug("branching from current HEAD", "current", current, "branch", branch)
	}
	if err := o.vcs.CreateBranch(ctx, branch, ""); err != nil {
		return "", err
	}
	return "", nil
}

func (o *Orchestrator) remoteRef(branch string) string {
	return o.settings.Remote + "/" + branch
}

// TargetBranch returns the branch name for a run: the literal input when exact
// names are requested or the input already is a branch, otherwise a name
// synthesized from the issue.
func TargetBranch(ref Reference, exact bool, issue *linear.Issue) string {
	if exact || ref.BranchLike {
		return ref.Raw
	}
	return taskid.BranchName(ref.ID, issue.Title)
}

// reconcileBranch checks out the target branch, reusing a local or remote copy
// when one exists and otherwise creating it through branchStrategies.
func (o *Orchestrator) reconcileBranch(ctx context.Context, ref Reference, exact bool, issue *linear.Issue) (BranchPlan, error) {
	plan := BranchPlan{
		Branch: TargetBranch(ref, exact, issue),
		Base:   o.settings.BaseBranch,
	}

	local, err := o.vcs.BranchExistsLocal(ctx, plan.Branch)
	if err != nil {
		return plan, fmt.Errorf("failed to check local branch %s: %w", plan.Branch, err)
	}
	if local {
		if err := o.vcs.Checkout(ctx, plan.Branch); err != nil {
			return plan, fmt.Errorf("failed to check out %s: %w", plan.Branch, err)
		}
		plan.Outcome = OutcomeReuseLocal
		log.Progressf("Switched to existing branch %s", plan.Branch)
		return plan, nil
	}

	remote, err := o.vcs.BranchExistsRemote(ctx, plan.Branch)
	if err != nil {
		// An unreachable remote counts as not having the branch.
		log.Warn("could not query remote branches", "branch", plan.Branch, "error", err)
	}
	if remote {
		if err := o.vcs.Fetch(ctx, plan.Branch); err != nil {
			return plan, fmt.Errorf("failed to fetch %s: %w", plan.Branch, err)
		}
		if err := o.vcs.CheckoutTracking(ctx, plan.Branch); err != nil {
			return plan, fmt.Errorf("failed to check out %s: %w", plan.Branch, err)
		}
		plan.Outcome = OutcomeCheckoutRemote
		log.Progressf("Checked out %s from %s", plan.Branch, o.settings.Remote)
		return plan, nil
	}

	var errs []error
	for _, s := range branchStrategies {
		start, err := s.create(ctx, o, plan.Branch, plan.Base)
		if err != nil {
			log.Warn("branch strategy failed", "strategy", s.name, "branch", plan.Branch, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		plan.StartPoint = start
		plan.Outcome = s.outcome
		if start == "" {
			log.Progressf("Created branch %s from the current HEAD", plan.Branch)
		} else {
			log.Progressf("Created branch %s from %s", plan.Branch, start)
		}
		return plan, nil
	}

	return plan, fmt.Errorf("failed to create branch %s: %w", plan.Branch, errors.Join(errs...))
}
