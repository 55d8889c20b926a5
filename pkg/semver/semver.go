// SPDX-License-Identifier: MPL-2.0

package semver

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	xsemver "golang.org/x/mod/semver"
)

type (
	// Version is a parsed recipe version. Recipes often declare short
	// versions ("3.2"), which compare equal to their zero-padded form ("3.2.0").
	Version struct {
		Major      int
		Minor      int
		Patch      int
		Prerelease string
		// Original is the text the version was parsed from.
		Original string
	}

	// Term is a single operator/version pair of a constraint.
	Term struct {
		// Op is one of =, ^, ~, >, >=, <, <=.
		Op      string
		Version Version
	}

	// Constraint is a conjunction of terms. An empty term list matches any version.
	Constraint struct {
		Terms    []Term
		Original string
	}
)

var (
	versionRegex = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:-([0-9A-Za-z\-\.]+))?(?:\+[0-9A-Za-z\-\.]+)?$`)
	termRegex    = regexp.MustCompile(`^([~^]|>=|<=|>|<|=)?\s*(v?\d[0-9A-Za-z\-\.+]*)$`)
)

// ParseVersion parses a version string.
func ParseVersion(s string) (Version, error) {
	matches := versionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}

	v := Version{Original: s, Prerelease: matches[4]}
	var err error
	if v.Major, err = strconv.Atoi(matches[1]); err != nil {
		return Version{}, fmt.Errorf("invalid major version in %q: %w", s, err)
	}
	if matches[2] != "" {
		if v.Minor, err = strconv.Atoi(matches[2]); err != nil {
			return Version{}, fmt.Errorf("invalid minor version in %q: %w", s, err)
		}
	}
	if matches[3] != "" {
		if v.Patch, err = strconv.Atoi(matches[3]); err != nil {
			return Version{}, fmt.Errorf("invalid patch version in %q: %w", s, err)
		}
	}
	return v, nil
}

// MustParseVersion is like ParseVersion but panics on error. Intended for tests
// and package-level fixtures.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the text the version was parsed from.
func (v Version) String() string {
	if v.Original != "" {
		return v.Original
	}
	return strings.TrimPrefix(v.canonical(), "v")
}

func (v Version) canonical() string {
	s := fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}

// Compare returns -1, 0 or 1 as v is lower than, equal to or higher than other.
func (v Version) Compare(other Version) int {
	return xsemver.Compare(v.canonical(), other.canonical())
}

// Equal reports whether both versions denote the same release.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// ParseConstraint parses a version constraint.
//
// Accepted forms:
//
//	1.2          exact (same as =1.2.0)
//	>=1.2 <2     conjunction, space or comma separated
//	[>=1.2 <2]   bracketed range
//	^1.2 ~1.2.3  caret and tilde ranges
//	*            any version
func ParseConstraint(s string) (Constraint, error) {
	original := s
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return Constraint{}, fmt.Errorf("invalid constraint %q: unterminated range", original)
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	c := Constraint{Original: original}
	if s == "" || s == "*" {
		return c, nil
	}

	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	// Rejoin dangling operators: ">= 1.2" is split into [">=", "1.2"].
	for i := 0; i < len(fields); i++ {
		field := fields[i]
		if isOperator(field) {
			if i+1 >= len(fields) {
				return Constraint{}, fmt.Errorf("invalid constraint %q: operator %q without version", original, field)
			}
			field += fields[i+1]
			i++
		}
		term, err := parseTerm(field)
		if err != nil {
			return Constraint{}, fmt.Errorf("invalid constraint %q: %w", original, err)
		}
		c.Terms = append(c.Terms, term)
	}
	return c, nil
}

func isOperator(s string) bool {
	switch s {
	case "=", "^", "~", ">", ">=", "<", "<=":
		return true
	}
	return false
}

func parseTerm(s string) (Term, error) {
	matches := termRegex.FindStringSubmatch(s)
	if matches == nil {
		return Term{}, fmt.Errorf("invalid term %q", s)
	}
	v, err := ParseVersion(matches[2])
	if err != nil {
		return Term{}, err
	}
	op := matches[1]
	if op == "" {
		op = "="
	}
	return Term{Op: op, Version: v}, nil
}

// String returns the constraint in its original form.
func (c Constraint) String() string {
	if c.Original != "" {
		return c.Original
	}
	if len(c.Terms) == 0 {
		return "*"
	}
	parts := make([]string, len(c.Terms))
	for i, t := range c.Terms {
		parts[i] = t.Op + t.Version.String()
	}
	return strings.Join(parts, " ")
}

// Matches reports whether v satisfies every term.
func (c Constraint) Matches(v Version) bool {
	for _, t := range c.Terms {
		if !t.Matches(v) {
			return false
		}
	}
	return true
}

// Matches reports whether v satisfies the term.
func (t Term) Matches(v Version) bool {
	cmp := v.Compare(t.Version)
	switch t.Op {
	case "=":
		return cmp == 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "^":
		// ^1.2.3 := >=1.2.3 <2.0.0, ^0.2.3 := >=0.2.3 <0.3.0, ^0.0.3 := >=0.0.3 <0.0.4
		if cmp < 0 {
			return false
		}
		if t.Version.Major != 0 {
			return v.Major == t.Version.Major
		}
		if t.Version.Minor != 0 {
			return v.Major == 0 && v.Minor == t.Version.Minor
		}
		return v.Major == 0 && v.Minor == 0 && v.Patch == t.Version.Patch
	case "~":
		// ~1.2.3 := >=1.2.3 <1.3.0
		return cmp >= 0 && v.Major == t.Version.Major && v.Minor == t.Version.Minor
	default:
		return false
	}
}

// Highest returns the highest version in versions satisfying every constraint.
// The second result is false when no version qualifies.
func Highest(versions []Version, constraints ...Constraint) (Version, bool) {
	sorted := slices.Clone(versions)
	slices.SortFunc(sorted, func(a, b Version) int { return b.Compare(a) })
	for _, v := range sorted {
		ok := true
		for _, c := range constraints {
			if !c.Matches(v) {
				ok = false
				break
			}
		}
		if ok {
			return v, true
		}
	}
	return Version{}, false
}
