package workflow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/holon-run/prflow/pkg/linear"
)

// SortKey orders issues in the interactive picker.
type SortKey string

const (
	SortByID      SortKey = "id"
	SortByState   SortKey = "state"
	SortByProject SortKey = "project"
)

// SortKeys lists the supported keys in display order.
func SortKeys() []SortKey {
	return []SortKey{SortByID, SortByState, SortByProject}
}

// ParseSortKey parses a sort key, defaulting to SortByID for empty input.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortByID, nil
	case SortByID, SortByState, SortByProject:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q (expected id, state or project)", s)
	}
}

// SortIssues sorts issues in place. Identifiers compare by team key and then
// numerically, so ENG-9 sorts before ENG-10. State and project ties fall back
// to the identifier; issues without a project sort last.
func SortIssues(issues []linear.Issue, key SortKey) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := &issues[i], &issues[j]
		switch key {
		case SortByState:
			if sa, sb := a.StateName(), b.StateName(); sa != sb {
				return sa < sb
			}
		case SortByProject:
			pa, pb := strings.ToLower(a.ProjectName()), strings.ToLower(b.ProjectName())
			if pa != pb {
				if pa == "" || pb == "" {
					return pb == ""
				}
				return pa < pb
			}
		}
		return lessIdentifier(a.Identifier, b.Identifier)
	})
}

func lessIdentifier(a, b string) bool {
	teamA, numA := splitIdentifier(a)
	teamB, numB := splitIdentifier(b)
	if teamA != teamB {
		return teamA < teamB
	}
	if numA != numB {
		return numA < numB
	}
	return a < b
}

func splitIdentifier(id string) (string, int) {
	i := strings.LastIndex(id, "-")
	if i < 0 {
		return strings.ToUpper(id), -1
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return strings.ToUpper(id), -1
	}
	return strings.ToUpper(id[:i]), n
}
