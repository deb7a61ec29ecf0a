// Package github wraps the go-github SDK with the few REST calls prflow needs:
// identifying the token owner, reading repository fork information and opening
// pull requests.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds every API request.
const DefaultTimeout = 30 * time.Second

// Client is an authenticated GitHub REST client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	gh         *github.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (tests, GitHub Enterprise).
func WithBaseURL(rawURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(rawURL, "/")
	}
}

// WithHTTPClient sets the transport used underneath the token source.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a client that authenticates every request with token.
func NewClient(token string, opts ...Option) (*Client, error) {
	c := &Client{
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	authed.Timeout = c.httpClient.Timeout

	c.gh = github.NewClient(authed)
	if c.baseURL != "" {
		u, err := url.Parse(c.baseURL + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", c.baseURL, err)
		}
		c.gh.BaseURL = u
	}
	return c, nil
}

// ForRepository binds the client to a single repository.
func (c *Client) ForRepository(ref RepoRef) *Repo {
	return &Repo{client: c, ref: ref}
}

// Repo is a Client bound to one repository. It is what the pull request
// workflow talks to.
type Repo struct {
	client *Client
	ref    RepoRef
}

// Ref returns the bound repository.
func (r *Repo) Ref() RepoRef {
	return r.ref
}

// Repository fetches the bound repository, including its fork parent.
func (r *Repo) Repository(ctx context.Context) (*Repository, error) {
	return r.client.GetRepository(ctx, r.ref.Owner, r.ref.Name)
}

// CreatePullRequest opens a pull request described by newPR.
func (r *Repo) CreatePullRequest(ctx context.Context, newPR NewPullRequest) (*PullRequest, error) {
	return r.client.CreatePullRequest(ctx, newPR)
}
