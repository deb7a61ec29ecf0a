package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/holon-run/prflow/pkg/auth"
	"github.com/holon-run/prflow/pkg/config"
	"github.com/holon-run/prflow/pkg/git"
	"github.com/holon-run/prflow/pkg/log"
	"github.com/spf13/cobra"
)

var (
	setupLinearKey   string
	setupGitHubToken string
)

// verifier checks credentials before they are stored.
var verifier = auth.Verifier{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Store Linear and GitHub credentials",
	Long: `Setup verifies and stores the credentials prflow needs.

With --linear-api-key or --github-token the given values are verified and
stored without prompting. Otherwise an interactive form asks for the GitHub
authentication method (personal token or browser OAuth), the keys, the
repository path and the base branch.`,
	Example: `  prflow setup
  prflow setup --linear-api-key lin_api_xxx --github-token ghp_xxx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if setupLinearKey != "" || setupGitHubToken != "" {
			if err := storeCredentials(ctx, store, verifier, setupLinearKey, setupGitHubToken, config.AuthModeToken, cmd.OutOrStdout()); err != nil {
				return err
			}
		} else if err := setupInteractive(ctx, store, cmd.OutOrStdout()); err != nil {
			return err
		}

		if err := store.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", store.Path())
		return nil
	},
}

// storeCredentials verifies the non-empty values and records them in store.
// Nothing is recorded unless every given value verifies.
func storeCredentials(ctx context.Context, store config.ReadWriter, v auth.Verifier, linearKey, githubToken, authMode string, out io.Writer) error {
	linearKey = strings.TrimSpace(linearKey)
	githubToken = strings.TrimSpace(githubToken)

	values := map[string]string{}
	if linearKey != "" {
		user, err := v.LinearKey(ctx, linearKey)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Linear: authenticated as %s\n", displayName(user.DisplayName, user.Name, user.Email))
		values[config.KeyLinearAPIKey] = linearKey
	}
	if githubToken != "" {
		user, err := v.GitHubToken(ctx, githubToken)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "GitHub: authenticated as %s\n", user.Login)
		values[config.KeyGitHubToken] = githubToken
		values[config.KeyGitHubAuthMode] = authMode
	}

	for k, val := range values {
		if err := store.Set(k, val); err != nil {
			return err
		}
	}
	return nil
}

func displayName(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return "unknown user"
}

func setupInteractive(ctx context.Context, store config.ReadWriter, out io.Writer) error {
	authMode := store.Get(config.KeyGitHubAuthMode)
	if authMode == "" {
		authMode = config.AuthModeToken
	}
	linearKey := store.Get(config.KeyLinearAPIKey)
	githubToken := ""
	repoPath := store.Get(config.KeyRepoPath)
	if repoPath == "" {
		if wd, err := os.Getwd(); err == nil {
			repoPath = wd
		}
	}
	baseBranch := store.Get(config.KeyBaseBranch)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Linear API key").
				Description("Create one under Settings → API in Linear").
				EchoMode(huh.EchoModePassword).
				Value(&linearKey).
				Validate(required("Linear API key")),

			huh.NewSelect[string]().
				Title("GitHub authentication").
				Options(
					huh.NewOption("Personal access token", config.AuthModeToken),
					huh.NewOption("Sign in with the browser (OAuth)", config.AuthModeOAuth),
				).
				Value(&authMode),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("GitHub token").
				Description("Needs the repo scope").
				EchoMode(huh.EchoModePassword).
				Value(&githubToken).
				Validate(required("GitHub token")),
		).WithHideFunc(func() bool { return authMode != config.AuthModeToken }),

		huh.NewGroup(
			huh.NewInput().
				Title("Repository path").
				Value(&repoPath).
				Validate(func(s string) error {
					if !git.NewClient(s).IsRepo(ctx) {
						return fmt.Errorf("%s is not a git repository", s)
					}
					return nil
				}),

			huh.NewInput().
				Title("Base branch").
				Description("New branches start from this branch").
				Placeholder(config.DefaultBaseBranch).
				Value(&baseBranch),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if authMode == config.AuthModeOAuth {
		token, err := oauthToken(ctx, store)
		if err != nil {
			return err
		}
		githubToken = token
	}

	if err := storeCredentials(ctx, store, verifier, linearKey, githubToken, authMode, out); err != nil {
		return err
	}

	if abs, err := filepath.Abs(repoPath); err == nil {
		repoPath = abs
	}
	if err := store.Set(config.KeyRepoPath, repoPath); err != nil {
		return err
	}
	if baseBranch = strings.TrimSpace(baseBranch); baseBranch != "" {
		if err := store.Set(config.KeyBaseBranch, baseBranch); err != nil {
			return err
		}
	}
	return nil
}

// oauthToken runs the browser flow with the stored OAuth app credentials.
func oauthToken(ctx context.Context, store config.Reader) (string, error) {
	clientID, err := config.Require(store, config.KeyOAuthClientID, "OAuth client id")
	if err != nil {
		return "", fmt.Errorf("%w; run 'prflow config-oauth' first", err)
	}
	clientSecret, err := config.Require(store, config.KeyOAuthClientSecret, "OAuth client secret")
	if err != nil {
		return "", fmt.Errorf("%w; run 'prflow config-oauth' first", err)
	}

	log.Progress("Opening the browser to sign in to GitHub")
	flow := &auth.LoopbackFlow{ClientID: clientID, ClientSecret: clientSecret}
	token, err := flow.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("GitHub sign-in failed: %w", err)
	}
	return token.AccessToken, nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func init() {
	setupCmd.Flags().StringVar(&setupLinearKey, "linear-api-key", "", "Linear API key")
	setupCmd.Flags().StringVar(&setupGitHubToken, "github-token", "", "GitHub personal access token")
	rootCmd.AddCommand(setupCmd)
}
