package github

// User is the authenticated account behind a token.
type User struct {
	ID    int64
	Login string
	Name  string
	Type  string
}

// Repository is the subset of repository metadata prflow uses.
type Repository struct {
	Owner         string
	Name          string
	FullName      string
	DefaultBranch string
	Private       bool
	Fork          bool
	// Parent is set for forks.
	Parent *RepoRef
}

// NewPullRequest describes a pull request to open. Owner and Repo name the
// repository the pull request is opened against; for a fork that is the parent.
type NewPullRequest struct {
	Owner               string
	Repo                string
	Title               string
	Head                string
	Base                string
	Body                string
	Draft               bool
	MaintainerCanModify bool
}

// PullRequest is an opened pull request.
type PullRequest struct {
	Number  int
	Title   string
	HTMLURL string
	State   string
	Draft   bool
	HeadRef string
	BaseRef string
}
