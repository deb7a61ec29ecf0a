package taskid

import (
	"fmt"
	"strings"
)

// Type is a conventional-commit style pull request type.
type Type string

const (
	TypeFeat     Type = "feat"
	TypeFix      Type = "fix"
	TypeDocs     Type = "docs"
	TypeStyle    Type = "style"
	TypeRefactor Type = "refactor"
	TypePerf     Type = "perf"
	TypeTest     Type = "test"
	TypeChore    Type = "chore"
	TypeCI       Type = "ci"
	TypeBuild    Type = "build"
	TypeRevert   Type = "revert"
)

// DefaultType is used when the caller does not pick one.
const DefaultType = TypeFeat

var allTypes = []Type{
	TypeFeat,
	TypeFix,
	TypeDocs,
	TypeStyle,
	TypeRefactor,
	TypePerf,
	TypeTest,
	TypeChore,
	TypeCI,
	TypeBuild,
	TypeRevert,
}

// Types returns the supported pull request types in display order.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// ParseType accepts a type name case-insensitively.
func ParseType(s string) (Type, error) {
	want := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range allTypes {
		if t == want {
			return t, nil
		}
	}
	names := make([]string, len(allTypes))
	for i, t := range allTypes {
		names[i] = string(t)
	}
	return "", fmt.Errorf("invalid type %q (expected one of: %s)", s, strings.Join(names, ", "))
}

func (t Type) String() string {
	return string(t)
}
