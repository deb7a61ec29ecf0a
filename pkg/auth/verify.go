// Package auth captures and verifies the credentials prflow needs: a GitHub token
// (pasted or obtained through an OAuth2 loopback flow) and a Linear API key.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/holon-run/prflow/pkg/github"
	"github.com/holon-run/prflow/pkg/linear"
)

// Verifier checks credentials against the who-am-I endpoints.
// The zero value talks to the public APIs.
type Verifier struct {
	GitHubBaseURL  string
	LinearEndpoint string
	HTTPClient     *http.Client
}

// GitHubToken returns the account token belongs to.
func (v Verifier) GitHubToken(ctx context.Context, token string) (*github.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("GitHub token is empty")
	}

	var opts []github.Option
	if v.GitHubBaseURL != "" {
		opts = append(opts, github.WithBaseURL(v.GitHubBaseURL))
	}
	if v.HTTPClient != nil {
		opts = append(opts, github.WithHTTPClient(v.HTTPClient))
	}

	client, err := github.NewClient(token, opts...)
	if err != nil {
		return nil, err
	}
	user, err := client.GetCurrentUser(ctx)
	if err != nil {
		if github.IsAuthenticationError(err) {
			return nil, fmt.Errorf("GitHub rejected the token: %w", err)
		}
		return nil, fmt.Errorf("failed to verify GitHub token: %w", err)
	}
	return user, nil
}

// LinearKey returns the user the API key belongs to.
func (v Verifier) LinearKey(ctx context.Context, key string) (*linear.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("Linear API key is empty")
	}

	client := linear.NewClient(key)
	if v.LinearEndpoint != "" {
		client = client.WithEndpoint(v.LinearEndpoint)
	}
	if v.HTTPClient != nil {
		client = client.WithHTTPClient(v.HTTPClient)
	}

	user, err := client.Viewer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify Linear API key: %w", err)
	}
	return user, nil
}

// VerifyGitHubToken checks token against api.github.com.
func VerifyGitHubToken(ctx context.Context, token string) (*github.User, error) {
	return Verifier{}.GitHubToken(ctx, token)
}

// VerifyLinearKey checks key against the Linear API.
func VerifyLinearKey(ctx context.Context, key string) (*linear.User, error) {
	return Verifier{}.LinearKey(ctx, key)
}
