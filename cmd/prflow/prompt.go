package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/holon-run/prflow/pkg/linear"
	"github.com/holon-run/prflow/pkg/taskid"
	"github.com/holon-run/prflow/pkg/workflow"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(8)
	idStyle      = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	linkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)
)

// huhPrompter asks for a pull request scope on the terminal.
type huhPrompter struct{}

var _ workflow.Prompter = huhPrompter{}

func (huhPrompter) ConfirmScope(original, formatted string) (bool, error) {
	ok := true
	err := huh.NewConfirm().
		Title(fmt.Sprintf("%q is not a valid module. Use %q instead?", original, formatted)).
		Affirmative("Use it").
		Negative("Enter another").
		Value(&ok).
		Run()
	return ok, err
}

func (huhPrompter) AskScope(suggestion string) (string, error) {
	answer := suggestion
	err := huh.NewInput().
		Title("Module").
		Description("Scope for the pull request title, e.g. billing or web-app").
		Placeholder("billing").
		Value(&answer).
		Validate(func(s string) error {
			if taskid.FormatScope(s) == "" {
				return fmt.Errorf("use lowercase letters, digits and hyphens")
			}
			return nil
		}).
		Run()
	return answer, err
}

// issueLabel renders one row of the issue picker.
func issueLabel(issue linear.Issue) string {
	var meta []string
	if s := issue.StateName(); s != "" {
		meta = append(meta, s)
	}
	if p := issue.ProjectName(); p != "" {
		meta = append(meta, p)
	}

	label := idStyle.Render(issue.Identifier) + "  " + issue.Title
	if len(meta) > 0 {
		label += "  " + dimStyle.Render("("+strings.Join(meta, " · ")+")")
	}
	return label
}

// pickIssue lets the user choose one of issues after picking a sort order.
func pickIssue(issues []linear.Issue) (string, error) {
	if len(issues) == 0 {
		return "", fmt.Errorf("no open issues are assigned to you; pass an issue identifier instead")
	}

	sortBy := string(workflow.SortByID)
	sortOptions := make([]huh.Option[string], 0, len(workflow.SortKeys()))
	for _, k := range workflow.SortKeys() {
		sortOptions = append(sortOptions, huh.NewOption(strings.ToUpper(string(k[:1]))+string(k[1:]), string(k)))
	}
	if err := huh.NewSelect[string]().
		Title("Sort issues by").
		Options(sortOptions...).
		Value(&sortBy).
		Run(); err != nil {
		return "", err
	}

	key, err := workflow.ParseSortKey(sortBy)
	if err != nil {
		return "", err
	}
	sorted := append([]linear.Issue(nil), issues...)
	workflow.SortIssues(sorted, key)

	options := make([]huh.Option[string], len(sorted))
	for i, issue := range sorted {
		options[i] = huh.NewOption(issueLabel(issue), issue.Identifier)
	}

	var identifier string
	err = huh.NewSelect[string]().
		Title("Select an issue").
		Description("Type / to filter").
		Options(options...).
		Filtering(true).
		Height(15).
		Value(&identifier).
		Run()
	return identifier, err
}

func printResult(w io.Writer, result *workflow.Result) {
	pr := result.PullRequest
	lines := []string{
		successStyle.Render(fmt.Sprintf("Draft pull request #%d opened", pr.Number)),
		labelStyle.Render("Title") + pr.Title,
		labelStyle.Render("Branch") + fmt.Sprintf("%s → %s", result.Plan.Branch, result.Plan.Base),
		labelStyle.Render("Issue") + result.Issue.Identifier,
		labelStyle.Render("URL") + linkStyle.Render(pr.HTMLURL),
	}
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
}
