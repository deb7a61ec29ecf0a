package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("ghp_test", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestGetCurrentUser(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1001,"login":"dana","name":"Dana Smith","type":"User"}`))
	})

	client := newTestClient(t, mux)
	user, err := client.GetCurrentUser(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}

	if user.Login != "dana" || user.ID != 1001 {
		t.Errorf("GetCurrentUser() = %+v", user)
	}
	if gotAuth != "Bearer ghp_test" {
		t.Errorf("Authorization header = %q, want Bearer ghp_test", gotAuth)
	}
}

func TestGetCurrentUser_BadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	})

	client := newTestClient(t, mux)
	_, err := client.GetCurrentUser(context.Background())
	if !IsAuthenticationError(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestRepository_ForkParent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/dana/shop", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "shop",
			"full_name": "dana/shop",
			"owner": {"login": "dana"},
			"default_branch": "develop",
			"fork": true,
			"parent": {"name": "shop", "full_name": "acme/shop", "owner": {"login": "acme"}}
		}`))
	})

	client := newTestClient(t, mux)
	repo, err := client.ForRepository(RepoRef{Owner: "dana", Name: "shop"}).Repository(context.Background())
	if err != nil {
		t.Fatalf("Repository() error = %v", err)
	}

	if !repo.Fork {
		t.Error("expected fork")
	}
	if repo.Parent == nil || repo.Parent.String() != "acme/shop" {
		t.Errorf("Parent = %+v, want acme/shop", repo.Parent)
	}
	if repo.Owner != "dana" || repo.DefaultBranch != "develop" {
		t.Errorf("Repository() = %+v", repo)
	}
}

func TestRepository_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})

	client := newTestClient(t, mux)
	_, err := client.GetRepository(context.Background(), "acme", "missing")
	if !IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCreatePullRequest_SendsDraft(t *testing.T) {
	var got map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/shop/pulls", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"number": 7,
			"title": "fix(billing): [ENG-42] Totals are off by one cent",
			"html_url": "https://github.com/acme/shop/pull/7",
			"state": "open",
			"draft": true,
			"head": {"ref": "feature/eng-42"},
			"base": {"ref": "develop"}
		}`))
	})

	client := newTestClient(t, mux)
	pr, err := client.CreatePullRequest(context.Background(), NewPullRequest{
		Owner: "acme",
		Repo:  "shop",
		Title: "fix(billing): [ENG-42] Totals are off by one cent",
		Head:  "dana:feature/eng-42",
		Base:  "develop",
		Body:  "body",
		Draft: true,
	})
	if err != nil {
		t.Fatalf("CreatePullRequest() error = %v", err)
	}

	if got["draft"] != true {
		t.Errorf("draft = %v, want true", got["draft"])
	}
	if got["head"] != "dana:feature/eng-42" || got["base"] != "develop" {
		t.Errorf("head/base = %v/%v", got["head"], got["base"])
	}
	if pr.Number != 7 || pr.HTMLURL != "https://github.com/acme/shop/pull/7" || !pr.Draft {
		t.Errorf("CreatePullRequest() = %+v", pr)
	}
}

func TestCreatePullRequest_ValidationFailureIsStructured(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/shop/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Validation Failed","errors":[{"resource":"PullRequest","field":"head","code":"invalid"}]}`))
	})

	client := newTestClient(t, mux)
	_, err := client.CreatePullRequest(context.Background(), NewPullRequest{
		Owner: "acme", Repo: "shop", Title: "t", Head: "dana:feature/eng-42", Base: "develop",
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if len(apiErr.Errors) != 1 || apiErr.Errors[0].Field != "head" {
		t.Errorf("Errors = %+v", apiErr.Errors)
	}
}

func TestCreatePullRequest_TransportErrorIsNotStructured(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient("ghp_test", WithBaseURL(url))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.CreatePullRequest(context.Background(), NewPullRequest{Owner: "acme", Repo: "shop"})
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if IsAPIError(err) {
		t.Errorf("transport failure classified as API error: %v", err)
	}
}
