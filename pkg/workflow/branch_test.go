package workflow

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/holon-run/prflow/pkg/git"
)

func TestBranchStrategies_Order(t *testing.T) {
	want := []string{"base-from-remote-ref", "base-from-local-ref", "branch-from-current-head"}
	if len(branchStrategies) != len(want) {
		t.Fatalf("got %d strategies, want %d", len(branchStrategies), len(want))
	}
	for i, s := range branchStrategies {
		if s.name != want[i] {
			t.Errorf("strategy %d = %q, want %q", i, s.name, want[i])
		}
	}
}

func TestTargetBranch(t *testing.T) {
	issue := testIssue()
	tests := []struct {
		name  string
		input string
		exact bool
		want  string
	}{
		{name: "exact identifier", input: "ENG-42", exact: true, want: "ENG-42"},
		{name: "synthesized", input: "ENG-42", want: "feature/eng-42-totals-are-off-by-one-cent"},
		{name: "branch-like kept", input: "fix/eng-42-cents", want: "fix/eng-42-cents"},
		{name: "branch-like exact", input: "fix/eng-42-cents", exact: true, want: "fix/eng-42-cents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseReference(tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if got := TargetBranch(ref, tt.exact, issue); got != tt.want {
				t.Errorf("TargetBranch() = %q, want %q", got, tt.want)
			}
		})
	}
}

func reconcile(t *testing.T, h *harness, input string) (BranchPlan, error) {
	t.Helper()
	ref, err := ParseReference(input)
	if err != nil {
		t.Fatal(err)
	}
	return h.orchestrator(Settings{}).reconcileBranch(context.Background(), ref, true, testIssue())
}

func TestReconcileBranch_ReuseLocal(t *testing.T) {
	h := newHarness()
	h.vcs.local["ENG-42"] = true

	plan, err := reconcile(t, h, "ENG-42")
	if err != nil {
		t.Fatal(err)
	}
	if plan.Outcome != OutcomeReuseLocal {
		t.Errorf("Outcome = %q", plan.Outcome)
	}
	if n := h.vcs.count("CreateBranch"); n != 0 {
		t.Errorf("CreateBranch called %d times for an existing branch", n)
	}
	if n := h.vcs.count("Fetch"); n != 0 {
		t.Errorf("Fetch called %d times for an existing branch", n)
	}
	if h.vcs.count("Checkout ENG-42") != 1 {
		t.Errorf("calls = %v", h.vcs.calls)
	}
}

func TestReconcileBranch_CheckoutRemote(t *testing.T) {
	h := newHarness()
	h.vcs.remote["ENG-42"] = true

	plan, err := reconcile(t, h, "ENG-42")
	if err != nil {
		t.Fatal(err)
	}
	if plan.Outcome != OutcomeCheckoutRemote {
		t.Errorf("Outcome = %q", plan.Outcome)
	}
	if h.vcs.count("Fetch develop") != 0 {
		t.Errorf("base should not be fetched when the branch is on the remote: %v", h.vcs.calls)
	}
	if h.vcs.count("Fetch ENG-42") != 1 || h.vcs.count("CheckoutTracking ENG-42") != 1 {
		t.Errorf("calls = %v", h.vcs.calls)
	}
	if h.vcs.count("CreateBranch") != 0 {
		t.Errorf("calls = %v", h.vcs.calls)
	}
}

func TestReconcileBranch_LocalBaseFallback(t *testing.T) {
	h := newHarness()
	h.vcs.fail["Fetch"] = errBoom
	h.vcs.local["develop"] = true

	plan, err := reconcile(t, h, "ENG-42")
	if err != nil {
		t.Fatalf("reconcileBranch() error = %v", err)
	}
	if plan.Outcome != OutcomeCreateFromBase || plan.StartPoint != "develop" {
		t.Errorf("plan = %+v", plan)
	}
	if h.vcs.count("CreateBranch ENG-42 develop") != 1 {
		t.Errorf("calls = %v", h.vcs.calls)
	}
}

func TestReconcileBranch_HeadFallback(t *testing.T) {
	h := newHarness()
	h.vcs.fail["Fetch"] = errBoom

	plan, err := reconcile(t, h, "ENG-42")
	if err != nil {
		t.Fatalf("reconcileBranch() error = %v", err)
	}
	if plan.Outcome != OutcomeCreateFromHeadFallback || plan.StartPoint != "" {
		t.Errorf("plan = %+v", plan)
	}
	if h.vcs.count("CreateBranch ENG-42") != 1 {
		t.Errorf("calls = %v", h.vcs.calls)
	}
}

func TestReconcileBranch_UpdateBaseFailureIsNotFatal(t *testing.T) {
	h := newHarness()
	h.vcs.fail["UpdateBranch"] = errBoom

	plan, err := reconcile(t, h, "ENG-42")
	if err != nil {
		t.Fatal(err)
	}
	if plan.StartPoint != "origin/develop" {
		t.Errorf("StartPoint = %q", plan.StartPoint)
	}
}

func TestReconcileBranch_DivergedBaseStillBranchesFromRemote(t *testing.T) {
	h := newHarness()
	h.vcs.fail["UpdateBranch"] = fmt.Errorf("%w: develop is not contained in origin/develop", git.ErrBranchDiverged)

	plan, err := reconcile(t, h, "ENG-42")
	if err != nil {
		t.Fatal(err)
	}
	if plan.Outcome != OutcomeCreateFromBase || plan.StartPoint != "origin/develop" {
		t.Errorf("plan = %+v", plan)
	}
	if h.vcs.count("CreateBranch ENG-42 origin/develop") != 1 {
		t.Errorf("calls = %v", h.vcs.calls)
	}
}

func TestReconcileBranch_AllStrategiesFail(t *testing.T) {
	h := newHarness()
	h.vcs.fail["CreateBranch"] = errBoom
	h.vcs.local["develop"] = true

	_, err := reconcile(t, h, "ENG-42")
	if err == nil {
		t.Fatal("expected error when every strategy fails")
	}
	for _, name := range []string{"base-from-remote-ref", "base-from-local-ref", "branch-from-current-head"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
	if n := h.vcs.count("CreateBranch"); n != 3 {
		t.Errorf("CreateBranch called %d times, want 3", n)
	}
}

func TestReconcileBranch_RemoteQueryFailureFallsThrough(t *testing.T) {
	h := newHarness()
	h.vcs.remoteErr = errBoom

	plan, err := reconcile(t, h, "ENG-42")
	if err != nil {
		t.Fatal(err)
	}
	if plan.Outcome != OutcomeCreateFromBase {
		t.Errorf("Outcome = %q", plan.Outcome)
	}
}

func TestReconcileBranch_CustomRemote(t *testing.T) {
	h := newHarness()
	ref, _ := ParseReference("ENG-42")

	plan, err := h.orchestrator(Settings{Remote: "upstream", BaseBranch: "main"}).reconcileBranch(context.Background(), ref, true, testIssue())
	if err != nil {
		t.Fatal(err)
	}
	if plan.StartPoint != "upstream/main" || plan.Base != "main" {
		t.Errorf("plan = %+v", plan)
	}
}
