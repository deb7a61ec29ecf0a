package github

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Remote URL patterns:
	// - git@github.com:owner/repo.git
	// - ssh://git@github.com/owner/repo.git
	// - https://github.com/owner/repo(.git)
	// - owner/repo
	scpRemotePattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+:([^/]+)/([^/]+?)(?:\.git)?/?$`)
	urlRemotePattern = regexp.MustCompile(`^(?:https?|ssh|git)://(?:[^@/]+@)?[^/]+/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	shortRefPattern  = regexp.MustCompile(`^([\w.-]+)/([\w.-]+)$`)
)

// RepoRef identifies a repository by owner and name.
type RepoRef struct {
	Owner string
	Name  string
}

// String returns owner/name.
func (r RepoRef) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// ParseRemoteURL extracts owner/name from a git remote URL or an owner/name shorthand.
func ParseRemoteURL(remote string) (RepoRef, error) {
	remote = strings.TrimSpace(remote)

	for _, pattern := range []*regexp.Regexp{scpRemotePattern, urlRemotePattern, shortRefPattern} {
		if matches := pattern.FindStringSubmatch(remote); matches != nil {
			return RepoRef{Owner: matches[1], Name: matches[2]}, nil
		}
	}

	return RepoRef{}, fmt.Errorf("invalid GitHub remote %q (expected git@host:owner/repo.git, https://host/owner/repo or owner/repo)", remote)
}

// QualifiedHead returns the owner:branch form used to open a pull request
// from a fork.
func QualifiedHead(owner, branch string) string {
	return owner + ":" + branch
}
