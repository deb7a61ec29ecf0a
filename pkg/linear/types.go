// Package linear is a small client for the Linear GraphQL API.
//
// It covers the handful of calls prflow needs: looking up an issue by its
// identifier, listing the viewer's assigned issues, identifying the viewer and
// commenting on an issue.
package linear

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	// DefaultAPIEndpoint is the public Linear GraphQL endpoint.
	DefaultAPIEndpoint = "https://api.linear.app/graphql"
	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second
	// MaxPageSize is the page size used for connection queries.
	MaxPageSize = 50
)

// Client talks to the Linear GraphQL API.
type Client struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

// User is a Linear user.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// State is the workflow state of an issue.
type State struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Project groups issues; its name doubles as the default PR scope.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Team owns issues and supplies the identifier key.
type Team struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Issue is a Linear issue as prflow sees it.
type Issue struct {
	ID          string   `json:"id"`
	Identifier  string   `json:"identifier"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	State       *State   `json:"state"`
	Project     *Project `json:"project"`
	Assignee    *User    `json:"assignee"`
	Team        *Team    `json:"team"`
}

// ProjectName returns the project name or "" when the issue has no project.
func (i *Issue) ProjectName() string {
	if i == nil || i.Project == nil {
		return ""
	}
	return i.Project.Name
}

// StateName returns the workflow state name or "".
func (i *Issue) StateName() string {
	if i == nil || i.State == nil {
		return ""
	}
	return i.State.Name
}

// AssigneeID returns the assignee's user id or "" when unassigned.
func (i *Issue) AssigneeID() string {
	if i == nil || i.Assignee == nil {
		return ""
	}
	return i.Assignee.ID
}

// GraphQLRequest is the POST body sent to the API.
type GraphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLResponse is the envelope returned by the API.
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError is a single error entry from the API.
type GraphQLError struct {
	Message    string   `json:"message"`
	Path       []string `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code,omitempty"`
		Type string `json:"type,omitempty"`
	} `json:"extensions,omitempty"`
}

// PageInfo carries cursor pagination state.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// IssueConnection is a page of issues.
type IssueConnection struct {
	Nodes    []Issue  `json:"nodes"`
	PageInfo PageInfo `json:"pageInfo"`
}
