package main

import (
	"context"
	"fmt"

	"github.com/holon-run/prflow/pkg/config"
	"github.com/holon-run/prflow/pkg/git"
	"github.com/holon-run/prflow/pkg/github"
	"github.com/holon-run/prflow/pkg/linear"
	"github.com/holon-run/prflow/pkg/log"
	"github.com/holon-run/prflow/pkg/preflight"
	"github.com/holon-run/prflow/pkg/taskid"
	"github.com/holon-run/prflow/pkg/workflow"
	"github.com/spf13/cobra"
)

var (
	createType              string
	createModule            string
	createEnforceAssignment bool
	createExactBranch       bool
	createVerbose           bool
)

var createCmd = &cobra.Command{
	Use:   "create [taskIdOrBranch]",
	Short: "Create a branch and draft pull request for a Linear issue",
	Long: `Create resolves a Linear issue, checks out its branch (creating it from the
base branch when needed), pushes it and opens a draft pull request.

Without an argument, the issues assigned to you are listed for selection.`,
	Example: `  prflow create ENG-42
  prflow create ENG-42 -t fix -m billing
  prflow create feature/eng-42-rounding --enforce-assignment
  prflow create`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if createVerbose {
			if err := initLogging(string(log.LevelDebug)); err != nil {
				return err
			}
		}

		prType, err := taskid.ParseType(createType)
		if err != nil {
			return err
		}
		var reference string
		if len(args) == 1 {
			if _, err := workflow.ParseReference(args[0]); err != nil {
				return err
			}
			reference = args[0]
		}

		store, err := loadConfig()
		if err != nil {
			return err
		}
		settings := workflow.SettingsFromConfig(store)

		repoPath := store.Get(config.KeyRepoPath)
		if repoPath == "" {
			repoPath = "."
		}
		vcs := git.NewClient(repoPath, git.WithRemote(settings.Remote))

		ctx := cmd.Context()
		checker := createPreflight(vcs, store)
		log.Debug("running preflight checks", "checks", checker.Checks())
		if err := checker.Run(ctx); err != nil {
			return err
		}

		orch, issues, err := newOrchestrator(ctx, store, vcs, settings)
		if err != nil {
			return err
		}

		if reference == "" {
			assigned, err := issues.AssignedIssues(ctx)
			if err != nil {
				return fmt.Errorf("failed to list assigned issues: %w", err)
			}
			if reference, err = pickIssue(assigned); err != nil {
				return err
			}
		}

		result, err := orch.Run(ctx, workflow.Options{
			Reference:         reference,
			Type:              prType,
			Module:            createModule,
			EnforceAssignment: createEnforceAssignment,
			ExactBranch:       createExactBranch,
		})
		if err != nil {
			return err
		}

		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

// createPreflight checks the tools and credentials create needs. The Linear
// API probe only warns.
func createPreflight(vcs *git.Client, store config.Reader) *preflight.Checker {
	return preflight.NewChecker(preflight.Config{
		RequireGit:         true,
		Repo:               vcs,
		Settings:           store,
		RequireGitHubToken: true,
		RequireLinearKey:   true,
		NetworkURL:         linear.DefaultAPIEndpoint,
	})
}

// newOrchestrator wires the Linear, GitHub and git clients from the store.
func newOrchestrator(ctx context.Context, store config.Reader, vcs *git.Client, settings workflow.Settings) (*workflow.Orchestrator, *linear.Client, error) {
	linearKey, err := config.Require(store, config.KeyLinearAPIKey, "Linear API key")
	if err != nil {
		return nil, nil, err
	}
	ghToken, err := config.Require(store, config.KeyGitHubToken, "GitHub token")
	if err != nil {
		return nil, nil, err
	}

	remoteURL, err := vcs.RemoteURL(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read remote %s: %w", settings.Remote, err)
	}
	repoRef, err := github.ParseRemoteURL(remoteURL)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("resolved repository", "repo", repoRef.String(), "remote", settings.Remote)

	gh, err := github.NewClient(ghToken)
	if err != nil {
		return nil, nil, err
	}

	issues := linear.NewClient(linearKey)
	orch := workflow.New(issues, gh.ForRepository(repoRef), vcs, huhPrompter{}, settings)
	return orch, issues, nil
}

func init() {
	createCmd.Flags().StringVarP(&createType, "type", "t", string(taskid.DefaultType), "Pull request type (feat, fix, docs, refactor, chore, ...)")
	createCmd.Flags().StringVarP(&createModule, "module", "m", "", "Module used as the title scope (defaults to the issue's project)")
	createCmd.Flags().BoolVarP(&createEnforceAssignment, "enforce-assignment", "a", false, "Fail unless the issue is assigned to you")
	createCmd.Flags().BoolVarP(&createExactBranch, "exact-branch", "e", true, "Use the identifier as the branch name instead of synthesizing one from the title")
	createCmd.Flags().BoolVarP(&createVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(createCmd)
}
