package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const issueFields = `
	id
	identifier
	title
	description
	url
	state { id name type }
	project { id name }
	assignee { id name displayName email }
	team { id key name }
`

const issueByIdentifierQuery = `query IssueByIdentifier($teamKey: String!, $number: Float!) {
  issues(first: 1, filter: { team: { key: { eq: $teamKey } }, number: { eq: $number } }) {
    nodes {` + issueFields + `}
  }
}`

const assignedIssuesQuery = `query AssignedIssues($first: Int!, $after: String) {
  viewer {
    assignedIssues(
      first: $first
      after: $after
      filter: { state: { type: { nin: ["completed", "canceled"] } } }
    ) {
      nodes {` + issueFields + `}
      pageInfo { hasNextPage endCursor }
    }
  }
}`

const viewerQuery = `query Viewer {
  viewer { id name displayName email }
}`

const commentCreateMutation = `mutation CommentCreate($input: CommentCreateInput!) {
  commentCreate(input: $input) { success }
}`

// NewClient creates a client authenticated with a personal API key.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:   apiKey,
		Endpoint: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithEndpoint returns a copy of the client that talks to endpoint.
func (c *Client) WithEndpoint(endpoint string) *Client {
	return &Client{
		APIKey:     c.APIKey,
		Endpoint:   endpoint,
		HTTPClient: c.HTTPClient,
	}
}

// WithHTTPClient returns a copy of the client that uses httpClient.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		APIKey:     c.APIKey,
		Endpoint:   c.Endpoint,
		HTTPClient: httpClient,
	}
}

// Execute sends a GraphQL request and returns the raw data payload.
func (c *Client) Execute(ctx context.Context, req *GraphQLRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	const maxResponseSize = 10 * 1024 * 1024
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error: %s (status %d)", strings.TrimSpace(string(respBody)), resp.StatusCode)
	}

	var gqlResp GraphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		msgs := make([]string, 0, len(gqlResp.Errors))
		for _, e := range gqlResp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("GraphQL error: %s", strings.Join(msgs, "; "))
	}

	return gqlResp.Data, nil
}

// Issue fetches a single issue by identifier such as ENG-42.
// It returns nil, nil when no such issue exists.
func (c *Client) Issue(ctx context.Context, identifier string) (*Issue, error) {
	teamKey, number, err := splitIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	data, err := c.Execute(ctx, &GraphQLRequest{
		Query:         issueByIdentifierQuery,
		OperationName: "IssueByIdentifier",
		Variables: map[string]interface{}{
			"teamKey": teamKey,
			"number":  number,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue %s: %w", identifier, err)
	}

	var result struct {
		Issues IssueConnection `json:"issues"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse issue response: %w", err)
	}

	if len(result.Issues.Nodes) == 0 {
		return nil, nil
	}
	issue := result.Issues.Nodes[0]
	return &issue, nil
}

// AssignedIssues lists the open issues assigned to the authenticated user,
// following cursor pagination until exhausted.
func (c *Client) AssignedIssues(ctx context.Context) ([]Issue, error) {
	var all []Issue
	var cursor string

	for {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		vars := map[string]interface{}{"first": MaxPageSize}
		if cursor != "" {
			vars["after"] = cursor
		}

		data, err := c.Execute(ctx, &GraphQLRequest{
			Query:         assignedIssuesQuery,
			OperationName: "AssignedIssues",
			Variables:     vars,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch assigned issues: %w", err)
		}

		var result struct {
			Viewer struct {
				AssignedIssues IssueConnection `json:"assignedIssues"`
			} `json:"viewer"`
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to parse assigned issues response: %w", err)
		}

		page := result.Viewer.AssignedIssues
		all = append(all, page.Nodes...)

		if !page.PageInfo.HasNextPage || page.PageInfo.EndCursor == "" {
			break
		}
		cursor = page.PageInfo.EndCursor
	}

	return all, nil
}

// Viewer returns the user the API key belongs to.
func (c *Client) Viewer(ctx context.Context) (*User, error) {
	data, err := c.Execute(ctx, &GraphQLRequest{
		Query:         viewerQuery,
		OperationName: "Viewer",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch viewer: %w", err)
	}

	var result struct {
		Viewer User `json:"viewer"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse viewer response: %w", err)
	}
	if result.Viewer.ID == "" {
		return nil, fmt.Errorf("viewer response had no user id")
	}
	return &result.Viewer, nil
}

// CommentOnIssue posts a markdown comment on the issue with the given id.
func (c *Client) CommentOnIssue(ctx context.Context, issueID, body string) error {
	data, err := c.Execute(ctx, &GraphQLRequest{
		Query:         commentCreateMutation,
		OperationName: "CommentCreate",
		Variables: map[string]interface{}{
			"input": map[string]interface{}{
				"issueId": issueID,
				"body":    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to comment on issue %s: %w", issueID, err)
	}

	var result struct {
		CommentCreate struct {
			Success bool `json:"success"`
		} `json:"commentCreate"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("failed to parse comment response: %w", err)
	}
	if !result.CommentCreate.Success {
		return fmt.Errorf("comment on issue %s was not accepted", issueID)
	}
	return nil
}

// splitIdentifier turns ENG-42 into ("ENG", 42).
func splitIdentifier(identifier string) (string, int, error) {
	team, num, ok := strings.Cut(strings.TrimSpace(identifier), "-")
	if !ok || team == "" {
		return "", 0, fmt.Errorf("invalid issue identifier %q", identifier)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("invalid issue identifier %q", identifier)
	}
	return strings.ToUpper(team), n, nil
}
