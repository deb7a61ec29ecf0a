// Package taskid normalizes issue identifiers, branch names and pull request titles.
// Everything here is pure string handling; no I/O.
package taskid

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// canonicalPattern matches a full identifier such as ENG-123 (case-insensitive)
	canonicalPattern = regexp.MustCompile(`^[A-Za-z]+-\d+$`)
	// embeddedPattern finds an identifier inside a branch-like string
	embeddedPattern = regexp.MustCompile(`[A-Za-z]+-\d+`)

	titleStripPattern = regexp.MustCompile(`[^\w\s-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	scopeInvalidChars = regexp.MustCompile(`[^a-z0-9-]`)
	repeatedHyphens   = regexp.MustCompile(`-+`)
)

// BranchPrefix is prepended to synthesized branch names.
const BranchPrefix = "feature/"

// IsCanonical reports whether s is a bare identifier like ENG-123.
func IsCanonical(s string) bool {
	return canonicalPattern.MatchString(s)
}

// Extract finds the identifier embedded in a branch-like string.
// Everything up to the last "/" is ignored. The identifier is returned uppercased;
// ok is false when the remainder holds no identifier.
func Extract(branchLike string) (id string, ok bool) {
	rest := branchLike
	if idx := strings.LastIndex(rest, "/"); idx >= 0 {
		rest = rest[idx+1:]
	}

	match := embeddedPattern.FindString(rest)
	if match == "" {
		return "", false
	}
	return strings.ToUpper(match), true
}

// IsBranchLike reports whether a raw reference should be treated as a branch name
// rather than a bare identifier.
func IsBranchLike(ref string) bool {
	if strings.Contains(ref, "/") {
		return true
	}
	return strings.Contains(ref, "-") && !IsCanonical(ref)
}

// SanitizeTitle turns a free-form title into a hyphenated branch slug.
func SanitizeTitle(title string) string {
	s := strings.ToLower(title)
	s = titleStripPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = whitespacePattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// BranchName synthesizes feature/{team}-{number}-{title} from an identifier and issue title.
func BranchName(taskID, title string) string {
	team, number, _ := strings.Cut(strings.ToLower(taskID), "-")
	slug := SanitizeTitle(title)

	name := fmt.Sprintf("%s%s-%s", BranchPrefix, team, number)
	if slug != "" {
		name += "-" + slug
	}
	return name
}

// FormatScope coerces s into the scope grammar: lowercase, [a-z0-9-] only,
// no leading, trailing or repeated hyphens.
func FormatScope(s string) string {
	s = strings.ToLower(s)
	s = scopeInvalidChars.ReplaceAllString(s, "-")
	s = repeatedHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ValidScope reports whether s already satisfies the scope grammar.
func ValidScope(s string) bool {
	return s != "" && FormatScope(s) == s
}

// ComposeTitle builds the pull request title: type(scope): [ID] description.
func ComposeTitle(prType Type, scope, taskID, description string) string {
	return fmt.Sprintf("%s(%s): [%s] %s", prType, FormatScope(scope), strings.ToUpper(taskID), description)
}
