package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/holon-run/prflow/pkg/auth"
	"github.com/holon-run/prflow/pkg/config"
	"github.com/holon-run/prflow/pkg/git"
	"github.com/holon-run/prflow/pkg/github"
	"github.com/holon-run/prflow/pkg/linear"
	"github.com/holon-run/prflow/pkg/workflow"
)

func newVerifier(t *testing.T) auth.Verifier {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ghp_good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"login":"dana","type":"User"}`))
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "lin_api_good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":[{"message":"Authentication required"}]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"viewer":{"id":"user-1","name":"Dana Smith"}}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return auth.Verifier{GitHubBaseURL: server.URL, LinearEndpoint: server.URL + "/graphql"}
}

func TestStoreCredentials(t *testing.T) {
	v := newVerifier(t)

	t.Run("both verified", func(t *testing.T) {
		store := config.NewMemoryStore(nil)
		var out bytes.Buffer

		err := storeCredentials(context.Background(), store, v, " lin_api_good ", "ghp_good", config.AuthModeToken, &out)
		if err != nil {
			t.Fatalf("storeCredentials() error = %v", err)
		}
		if store.Get(config.KeyLinearAPIKey) != "lin_api_good" || store.Get(config.KeyGitHubToken) != "ghp_good" {
			t.Errorf("stored linear=%q github=%q", store.Get(config.KeyLinearAPIKey), store.Get(config.KeyGitHubToken))
		}
		if !strings.Contains(out.String(), "authenticated as dana") || !strings.Contains(out.String(), "authenticated as Dana Smith") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("rejected token stores nothing", func(t *testing.T) {
		store := config.NewMemoryStore(nil)

		err := storeCredentials(context.Background(), store, v, "lin_api_good", "ghp_bad", config.AuthModeToken, &bytes.Buffer{})
		if err == nil {
			t.Fatal("expected error for rejected token")
		}
		if store.Get(config.KeyLinearAPIKey) != "" {
			t.Error("Linear key should not be stored when the GitHub token is rejected")
		}
	})

	t.Run("oauth mode recorded", func(t *testing.T) {
		store := config.NewMemoryStore(nil)

		if err := storeCredentials(context.Background(), store, v, "", "ghp_good", config.AuthModeOAuth, &bytes.Buffer{}); err != nil {
			t.Fatal(err)
		}
		if got := store.Get(config.KeyGitHubAuthMode); got != config.AuthModeOAuth {
			t.Errorf("auth mode = %q", got)
		}
	})
}

func TestSaveOAuthApp(t *testing.T) {
	store := config.NewMemoryStore(nil)

	if err := saveOAuthApp(store, "", "secret"); err == nil {
		t.Error("expected error without client id")
	}
	if store.Saves() != 0 {
		t.Errorf("store saved %d times on invalid input", store.Saves())
	}

	if err := saveOAuthApp(store, " Iv1.abc ", "secret"); err != nil {
		t.Fatal(err)
	}
	if store.Get(config.KeyOAuthClientID) != "Iv1.abc" || store.Saves() != 1 {
		t.Errorf("client id = %q, saves = %d", store.Get(config.KeyOAuthClientID), store.Saves())
	}
}

func TestOAuthTokenRequiresApp(t *testing.T) {
	_, err := oauthToken(context.Background(), config.NewMemoryStore(nil))
	if err == nil || !strings.Contains(err.Error(), "config-oauth") {
		t.Fatalf("error = %v", err)
	}
}

func TestIssueLabel(t *testing.T) {
	label := issueLabel(linear.Issue{
		Identifier: "ENG-42",
		Title:      "Totals are off by one cent",
		State:      &linear.State{Name: "Todo"},
		Project:    &linear.Project{Name: "Billing"},
	})
	for _, want := range []string{"ENG-42", "Totals are off by one cent", "Todo", "Billing"} {
		if !strings.Contains(label, want) {
			t.Errorf("label %q missing %q", label, want)
		}
	}

	if _, err := pickIssue(nil); err == nil {
		t.Error("expected error for empty issue list")
	}
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, &workflow.Result{
		Issue: &linear.Issue{Identifier: "ENG-42"},
		Plan:  workflow.BranchPlan{Branch: "ENG-42", Base: "develop"},
		PullRequest: &github.PullRequest{
			Number:  7,
			Title:   "feat(billing): [ENG-42] Totals are off by one cent",
			HTMLURL: "https://github.com/acme/widgets/pull/7",
		},
	})

	for _, want := range []string{"#7", "feat(billing): [ENG-42]", "develop", "https://github.com/acme/widgets/pull/7"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestCreatePreflight(t *testing.T) {
	checker := createPreflight(git.NewClient(t.TempDir()), config.NewMemoryStore(nil))

	want := []string{"git", "repository", "github-token", "linear-api-key", "network"}
	if got := checker.Checks(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Checks() = %v, want %v", got, want)
	}
}
