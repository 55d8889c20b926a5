// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"fmt"
	"strings"

	"github.com/forgepkg/forge/pkg/semver"
)

// Requirement is a dependency on another recipe.
type Requirement struct {
	Name       string
	Constraint semver.Constraint
}

// ParseRequirement parses "name/constraint". The constraint defaults to any
// version when it is "*".
func ParseRequirement(s string) (Requirement, error) {
	name, constraint, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || name == "" || constraint == "" {
		return Requirement{}, fmt.Errorf("invalid requirement %q: expected name/constraint", s)
	}
	c, err := semver.ParseConstraint(constraint)
	if err != nil {
		return Requirement{}, fmt.Errorf("invalid requirement %q: %w", s, err)
	}
	return Requirement{Name: name, Constraint: c}, nil
}

// MustParseRequirement is like ParseRequirement but panics on error.
func MustParseRequirement(s string) Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Requirement) String() string {
	return r.Name + "/" + r.Constraint.String()
}
