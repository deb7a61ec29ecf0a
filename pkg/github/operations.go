package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"
)

// GetCurrentUser returns the account the token belongs to.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", wrapError(err))
	}

	return &User{
		ID:    user.GetID(),
		Login: user.GetLogin(),
		Name:  user.GetName(),
		Type:  user.GetType(),
	}, nil
}

// GetRepository fetches repository metadata, including the fork parent.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s/%s: %w", owner, name, wrapError(err))
	}
	return convertFromGitHubRepository(repo), nil
}

func convertFromGitHubRepository(repo *github.Repository) *Repository {
	out := &Repository{
		Owner:         repo.GetOwner().GetLogin(),
		Name:          repo.GetName(),
		FullName:      repo.GetFullName(),
		DefaultBranch: repo.GetDefaultBranch(),
		Private:       repo.GetPrivate(),
		Fork:          repo.GetFork(),
	}
	if parent := repo.GetParent(); parent != nil {
		out.Parent = &RepoRef{
			Owner: parent.GetOwner().GetLogin(),
			Name:  parent.GetName(),
		}
	}
	return out
}

// CreatePullRequest opens a pull request against newPR.Owner/newPR.Repo.
// Failures reported by the API come back as *APIError.
func (c *Client) CreatePullRequest(ctx context.Context, newPR NewPullRequest) (*PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Create(ctx, newPR.Owner, newPR.Repo, &github.NewPullRequest{
		Title:               github.Ptr(newPR.Title),
		Head:                github.Ptr(newPR.Head),
		Base:                github.Ptr(newPR.Base),
		Body:                github.Ptr(newPR.Body),
		Draft:               github.Ptr(newPR.Draft),
		MaintainerCanModify: github.Ptr(newPR.MaintainerCanModify),
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return convertFromGitHubPR(pr), nil
}

func convertFromGitHubPR(pr *github.PullRequest) *PullRequest {
	var headRef, baseRef string
	if pr.Head != nil {
		headRef = pr.Head.GetRef()
	}
	if pr.Base != nil {
		baseRef = pr.Base.GetRef()
	}

	return &PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		HTMLURL: pr.GetHTMLURL(),
		State:   pr.GetState(),
		Draft:   pr.GetDraft(),
		HeadRef: headRef,
		BaseRef: baseRef,
	}
}
