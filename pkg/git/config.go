package git

import (
	"context"
	"os"
)

// DefaultAuthorName is used for placeholder commits when no identity is configured.
const DefaultAuthorName = "prflow"

// DefaultAuthorEmail is used for placeholder commits when no identity is configured.
const DefaultAuthorEmail = "prflow@users.noreply.github.com"

// Identity is a commit author.
type Identity struct {
	Name  string
	Email string
}

// ResolveIdentity resolves the author for commits made by prflow with the following priority:
// 1. Repository git config (local > global > system)
// 2. Environment variables (GIT_AUTHOR_NAME, GIT_AUTHOR_EMAIL)
// 3. Defaults
func (c *Client) ResolveIdentity(ctx context.Context) Identity {
	id := Identity{
		Name:  DefaultAuthorName,
		Email: DefaultAuthorEmail,
	}

	if v := os.Getenv("GIT_AUTHOR_NAME"); v != "" {
		id.Name = v
	}
	if v := os.Getenv("GIT_AUTHOR_EMAIL"); v != "" {
		id.Email = v
	}

	if v := c.configGet(ctx, "user.name"); v != "" {
		id.Name = v
	}
	if v := c.configGet(ctx, "user.email"); v != "" {
		id.Email = v
	}

	return id
}

// configGet returns "" when the key is unset.
func (c *Client) configGet(ctx context.Context, key string) string {
	out, err := c.git(ctx, "config", "--get", key)
	if err != nil {
		return ""
	}
	return out
}
