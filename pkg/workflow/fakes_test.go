package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/holon-run/prflow/pkg/git"
	"github.com/holon-run/prflow/pkg/github"
	"github.com/holon-run/prflow/pkg/linear"
)

var (
	_ IssueTracker   = (*linear.Client)(nil)
	_ SourceHost     = (*github.Repo)(nil)
	_ VersionControl = (*git.Client)(nil)
)

var errBoom = errors.New("boom")

// fakeVCS records every call as "method arg1 arg2" and fails the methods
// listed in fail.
type fakeVCS struct {
	local  map[string]bool
	remote map[string]bool
	ahead  map[string]int
	fail   map[string]error

	remoteErr error
	calls     []string
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{
		local:  map[string]bool{},
		remote: map[string]bool{},
		ahead:  map[string]int{},
		fail:   map[string]error{},
	}
}

func (f *fakeVCS) record(method string, args ...string) error {
	f.calls = append(f.calls, strings.TrimSpace(method+" "+strings.Join(args, " ")))
	if err, ok := f.fail[method]; ok {
		return err
	}
	return nil
}

// count returns how many recorded calls start with prefix.
func (f *fakeVCS) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeVCS) CurrentBranch(ctx context.Context) (string, error) {
	return "main", f.record("CurrentBranch")
}

func (f *fakeVCS) BranchExistsLocal(ctx context.Context, name string) (bool, error) {
	if err := f.record("BranchExistsLocal", name); err != nil {
		return false, err
	}
	return f.local[name], nil
}

func (f *fakeVCS) BranchExistsRemote(ctx context.Context, name string) (bool, error) {
	f.calls = append(f.calls, "BranchExistsRemote "+name)
	if f.remoteErr != nil {
		return false, f.remoteErr
	}
	return f.remote[name], nil
}

func (f *fakeVCS) Fetch(ctx context.Context, branch string) error {
	return f.record("Fetch", branch)
}

func (f *fakeVCS) Checkout(ctx context.Context, branch string) error {
	return f.record("Checkout", branch)
}

func (f *fakeVCS) CheckoutTracking(ctx context.Context, branch string) error {
	if err := f.record("CheckoutTracking", branch); err != nil {
		return err
	}
	f.local[branch] = true
	return nil
}

func (f *fakeVCS) CreateBranch(ctx context.Context, branch, startPoint string) error {
	if err := f.record("CreateBranch", branch, startPoint); err != nil {
		return err
	}
	f.local[branch] = true
	return nil
}

func (f *fakeVCS) UpdateBranch(ctx context.Context, branch, target string) error {
	return f.record("UpdateBranch", branch, target)
}

func (f *fakeVCS) CommitsAhead(ctx context.Context, base, head string) (int, error) {
	if err := f.record("CommitsAhead", base, head); err != nil {
		return 0, err
	}
	n, ok := f.ahead[base]
	if !ok {
		return 0, fmt.Errorf("unknown revision %s", base)
	}
	return n, nil
}

func (f *fakeVCS) EmptyCommit(ctx context.Context, message string) error {
	return f.record("EmptyCommit", message)
}

func (f *fakeVCS) Push(ctx context.Context, branch string) error {
	return f.record("Push", branch)
}

type fakeTracker struct {
	issues    map[string]*linear.Issue
	viewer    *linear.User
	viewerErr error
	issueErr  error

	commentErr error
	comments   []string
}

func (f *fakeTracker) Issue(ctx context.Context, identifier string) (*linear.Issue, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return f.issues[identifier], nil
}

func (f *fakeTracker) Viewer(ctx context.Context) (*linear.User, error) {
	if f.viewerErr != nil {
		return nil, f.viewerErr
	}
	return f.viewer, nil
}

func (f *fakeTracker) CommentOnIssue(ctx context.Context, issueID, body string) error {
	f.comments = append(f.comments, issueID+": "+body)
	return f.commentErr
}

// fakeHost fails CreatePullRequest with the errors in createErrs, in order,
// before succeeding.
type fakeHost struct {
	repo       *github.Repository
	repoErr    error
	createErrs []error
	requests   []github.NewPullRequest
}

func (f *fakeHost) Repository(ctx context.Context) (*github.Repository, error) {
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	return f.repo, nil
}

func (f *fakeHost) CreatePullRequest(ctx context.Context, newPR github.NewPullRequest) (*github.PullRequest, error) {
	f.requests = append(f.requests, newPR)
	if n := len(f.requests); n <= len(f.createErrs) && f.createErrs[n-1] != nil {
		return nil, f.createErrs[n-1]
	}
	return &github.PullRequest{
		Number:  7,
		Title:   newPR.Title,
		HTMLURL: "https://github.com/acme/widgets/pull/7",
		State:   "open",
		Draft:   newPR.Draft,
		HeadRef: newPR.Head,
		BaseRef: newPR.Base,
	}, nil
}

type fakePrompter struct {
	confirm    bool
	answer     string
	confirmed  []string
	asked      []string
	confirmErr error
}

func (f *fakePrompter) ConfirmScope(original, formatted string) (bool, error) {
	f.confirmed = append(f.confirmed, original+"->"+formatted)
	return f.confirm, f.confirmErr
}

func (f *fakePrompter) AskScope(suggestion string) (string, error) {
	f.asked = append(f.asked, suggestion)
	return f.answer, nil
}

func testIssue() *linear.Issue {
	return &linear.Issue{
		ID:          "9f1c2a40",
		Identifier:  "ENG-42",
		Title:       "Totals are off by one cent",
		Description: "Rounding happens before tax.",
		URL:         "https://linear.app/acme/issue/ENG-42",
		Project:     &linear.Project{Name: "Billing"},
		Assignee:    &linear.User{ID: "user-1", Name: "Dana Smith", DisplayName: "dana"},
	}
}

type harness struct {
	vcs     *fakeVCS
	tracker *fakeTracker
	host    *fakeHost
	prompt  *fakePrompter
}

func newHarness() *harness {
	return &harness{
		vcs: newFakeVCS(),
		tracker: &fakeTracker{
			issues: map[string]*linear.Issue{"ENG-42": testIssue()},
			viewer: &linear.User{ID: "user-1"},
		},
		host: &fakeHost{repo: &github.Repository{
			Owner:         "acme",
			Name:          "widgets",
			FullName:      "acme/widgets",
			DefaultBranch: "main",
		}},
		prompt: &fakePrompter{},
	}
}

func (h *harness) orchestrator(settings Settings) *Orchestrator {
	return New(h.tracker, h.host, h.vcs, h.prompt, settings)
}
