// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type (
	// Override assigns an option value to the recipes matched by Pattern.
	//
	//	shared=true          root recipe only (Pattern is empty)
	//	*:shared=true        every recipe declaring shared
	//	geohash:fPIC=false   one recipe
	Override struct {
		Pattern string
		Option  string
		Value   string
	}

	// Overrides is an ordered list of option assignments. Later entries win
	// over earlier ones of the same precedence.
	Overrides []Override
)

const (
	rankNone = iota
	rankGlob
	rankExact
)

// ParseOverride parses "[pattern:]option=value".
func ParseOverride(s string) (Override, error) {
	lhs, value, ok := strings.Cut(s, "=")
	if !ok {
		return Override{}, &ConfigurationError{Option: s, Reason: "expected [recipe:]option=value"}
	}
	var o Override
	if pattern, option, found := strings.Cut(lhs, ":"); found {
		if !doublestar.ValidatePattern(pattern) {
			return Override{}, &ConfigurationError{Option: lhs, Reason: "invalid recipe pattern"}
		}
		o.Pattern = strings.TrimSpace(pattern)
		o.Option = strings.TrimSpace(option)
	} else {
		o.Option = strings.TrimSpace(lhs)
	}
	o.Value = strings.TrimSpace(value)
	if o.Option == "" {
		return Override{}, &ConfigurationError{Option: s, Reason: "empty option name"}
	}
	return o, nil
}

// ParseOverrides parses every assignment in order.
func ParseOverrides(assignments []string) (Overrides, error) {
	out := make(Overrides, 0, len(assignments))
	for _, a := range assignments {
		o, err := ParseOverride(a)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (o Override) String() string {
	if o.Pattern == "" {
		return fmt.Sprintf("%s=%s", o.Option, o.Value)
	}
	return fmt.Sprintf("%s:%s=%s", o.Pattern, o.Option, o.Value)
}

func (o Override) rank(recipe string, root bool) int {
	switch {
	case o.Pattern == "":
		if root {
			return rankExact
		}
		return rankNone
	case o.Pattern == recipe:
		return rankExact
	default:
		if ok, err := doublestar.Match(o.Pattern, recipe); err == nil && ok {
			return rankGlob
		}
		return rankNone
	}
}

// For returns the option values that apply to recipe, filtered by its schema.
// Glob assignments silently skip recipes that do not declare the option; an
// exact assignment to an undeclared option is a ConfigurationError.
func (o Overrides) For(recipe string, root bool, schema OptionSchema) (map[string]string, error) {
	values := make(map[string]string)
	ranks := make(map[string]int)
	for _, ov := range o {
		r := ov.rank(recipe, root)
		if r == rankNone {
			continue
		}
		if _, ok := schema.Lookup(ov.Option); !ok {
			if r == rankExact {
				return nil, &ConfigurationError{Option: ov.Option, Value: ov.Value, Reason: fmt.Sprintf("not declared by recipe %s", recipe)}
			}
			continue
		}
		if r >= ranks[ov.Option] {
			values[ov.Option] = ov.Value
			ranks[ov.Option] = r
		}
	}
	return values, nil
}
