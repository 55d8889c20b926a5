// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Boolean option values.
const (
	True  = "true"
	False = "false"
)

type (
	// Condition matches a platform and, optionally, the values of other
	// options. Every non-empty field must match; list fields match when any
	// entry equals the descriptor's value.
	Condition struct {
		OS        []OS              `json:"os,omitempty"`
		Arch      []Arch            `json:"arch,omitempty"`
		Compiler  []string          `json:"compiler,omitempty"`
		BuildType []BuildType       `json:"build_type,omitempty"`
		Option    map[string]string `json:"option,omitempty"`
	}

	// OptionDecl declares one recipe option.
	OptionDecl struct {
		Name string `json:"name"`
		// Values is the closed set of accepted values. Boolean options use
		// ["true", "false"].
		Values  []string `json:"values"`
		Default string   `json:"default"`
		// RemoveWhen lists the conditions under which the option is pruned.
		RemoveWhen []Condition `json:"remove_when,omitempty"`
	}

	// OptionSchema is the ordered list of options a recipe declares.
	OptionSchema []OptionDecl

	// OptionSet is the resolved, pruned option mapping of one recipe on one
	// platform. The zero value is an empty set.
	OptionSet struct {
		values   map[string]string
		pruned   map[string]bool
		platform string
	}
)

// BoolOption declares a boolean option.
func BoolOption(name string, def bool, removeWhen ...Condition) OptionDecl {
	d := False
	if def {
		d = True
	}
	return OptionDecl{Name: name, Values: []string{True, False}, Default: d, RemoveWhen: removeWhen}
}

// IsBool reports whether the option only accepts true and false.
func (d OptionDecl) IsBool() bool {
	return len(d.Values) == 2 && slices.Contains(d.Values, True) && slices.Contains(d.Values, False)
}

// normalize returns the declared spelling of value, matching case-insensitively
// so "True" from conan-style profiles is accepted.
func (d OptionDecl) normalize(value string) (string, bool) {
	for _, v := range d.Values {
		if strings.EqualFold(v, value) {
			return v, true
		}
	}
	return "", false
}

// Lookup returns the declaration named name.
func (s OptionSchema) Lookup(name string) (OptionDecl, bool) {
	for _, d := range s {
		if d.Name == name {
			return d, true
		}
	}
	return OptionDecl{}, false
}

// Validate checks the schema is well formed.
func (s OptionSchema) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, d := range s {
		if d.Name == "" {
			return &ConfigurationError{Option: "<unnamed>", Reason: "option name must not be empty"}
		}
		if seen[d.Name] {
			return &ConfigurationError{Option: d.Name, Reason: "declared more than once"}
		}
		seen[d.Name] = true
		if len(d.Values) == 0 {
			return &ConfigurationError{Option: d.Name, Reason: "no allowed values"}
		}
		if !slices.Contains(d.Values, d.Default) {
			return &ConfigurationError{Option: d.Name, Value: d.Default, Reason: fmt.Sprintf("default is not one of %v", d.Values)}
		}
	}
	for _, d := range s {
		for _, c := range d.RemoveWhen {
			if c.isEmpty() {
				return &ConfigurationError{Option: d.Name, Reason: "remove_when condition matches nothing specific"}
			}
			for ref, val := range c.Option {
				if ref == d.Name {
					return &ConfigurationError{Option: d.Name, Reason: "remove_when refers to the option itself"}
				}
				other, ok := s.Lookup(ref)
				if !ok {
					return &ConfigurationError{Option: d.Name, Reason: fmt.Sprintf("remove_when refers to unknown option %q", ref)}
				}
				if _, ok := other.normalize(val); !ok {
					return &ConfigurationError{Option: d.Name, Reason: fmt.Sprintf("remove_when compares %s with %q, not one of %v", ref, val, other.Values)}
				}
			}
		}
	}
	if cycle := s.referenceCycle(); cycle != nil {
		return &ConfigurationError{Option: cycle[0], Reason: "remove_when conditions refer to each other: " + strings.Join(cycle, " -> ")}
	}
	return nil
}

// references returns the options named by the remove_when conditions of d,
// sorted.
func (d OptionDecl) references() []string {
	var refs []string
	for _, c := range d.RemoveWhen {
		for ref := range c.Option {
			if !slices.Contains(refs, ref) {
				refs = append(refs, ref)
			}
		}
	}
	sort.Strings(refs)
	return refs
}

// referenceCycle returns the first cycle among remove_when references, as a
// path starting and ending at the same option, or nil.
func (s OptionSchema) referenceCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(s))
	var stack []string
	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = gray
		stack = append(stack, name)
		decl, _ := s.Lookup(name)
		for _, ref := range decl.references() {
			switch color[ref] {
			case gray:
				i := slices.Index(stack, ref)
				return append(slices.Clone(stack[i:]), ref)
			case white:
				if cycle := visit(ref); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}
	for _, d := range s {
		if color[d.Name] == white {
			if cycle := visit(d.Name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func (c Condition) isEmpty() bool {
	return len(c.OS) == 0 && len(c.Arch) == 0 && len(c.Compiler) == 0 && len(c.BuildType) == 0 && len(c.Option) == 0
}

func (c Condition) matchesPlatform(d Descriptor) bool {
	if len(c.OS) > 0 && !slices.Contains(c.OS, d.OS) {
		return false
	}
	if len(c.Arch) > 0 && !slices.Contains(c.Arch, d.Arch) {
		return false
	}
	if len(c.Compiler) > 0 && !slices.Contains(c.Compiler, d.Compiler.Name) {
		return false
	}
	if len(c.BuildType) > 0 && !slices.Contains(c.BuildType, d.BuildType) {
		return false
	}
	return true
}

// Prune resolves schema with default values only.
func (d Descriptor) Prune(schema OptionSchema) (OptionSet, error) {
	return d.Resolve(schema, nil)
}

// Resolve applies defaults, then explicit values, then pruning.
//
// Pruning runs in two stages. Conditions that only name platform axes are
// applied first. Conditions that compare other options are then evaluated so
// that every referenced option is settled before the option that refers to
// it, whatever the declaration order; a comparison against a pruned option
// never matches. Validate rejects references that form a cycle. Explicit
// values for pruned options are discarded.
func (d Descriptor) Resolve(schema OptionSchema, values map[string]string) (OptionSet, error) {
	if err := schema.Validate(); err != nil {
		return OptionSet{}, err
	}

	resolved := make(map[string]string, len(schema))
	for _, decl := range schema {
		resolved[decl.Name] = decl.Default
	}
	for _, name := range sortedKeys(values) {
		decl, ok := schema.Lookup(name)
		if !ok {
			return OptionSet{}, &ConfigurationError{Option: name, Value: values[name], Reason: "not declared by the recipe"}
		}
		v, ok := decl.normalize(values[name])
		if !ok {
			return OptionSet{}, &ConfigurationError{Option: name, Value: values[name], Reason: fmt.Sprintf("must be one of %v", decl.Values)}
		}
		resolved[name] = v
	}

	pruned := make(map[string]bool)
	for _, decl := range schema {
		for _, c := range decl.RemoveWhen {
			if len(c.Option) == 0 && c.matchesPlatform(d) {
				pruned[decl.Name] = true
				break
			}
		}
	}
	settled := make(map[string]bool, len(schema))
	var settle func(decl OptionDecl)
	settle = func(decl OptionDecl) {
		if settled[decl.Name] {
			return
		}
		settled[decl.Name] = true
		if pruned[decl.Name] {
			return
		}
		for _, ref := range decl.references() {
			other, _ := schema.Lookup(ref)
			settle(other)
		}
		for _, c := range decl.RemoveWhen {
			if len(c.Option) == 0 || !c.matchesPlatform(d) {
				continue
			}
			if optionsMatch(c.Option, schema, resolved, pruned) {
				pruned[decl.Name] = true
				return
			}
		}
	}
	for _, decl := range schema {
		settle(decl)
	}

	for name := range pruned {
		delete(resolved, name)
	}
	return OptionSet{values: resolved, pruned: pruned, platform: d.String()}, nil
}

func optionsMatch(want map[string]string, schema OptionSchema, resolved map[string]string, pruned map[string]bool) bool {
	for ref, val := range want {
		if pruned[ref] {
			return false
		}
		decl, _ := schema.Lookup(ref)
		norm, _ := decl.normalize(val)
		if resolved[ref] != norm {
			return false
		}
	}
	return true
}

// Get returns the value of an active option. Reading an option that was
// pruned or never declared fails with a ConfigurationError.
func (o OptionSet) Get(name string) (string, error) {
	if o.pruned[name] {
		return "", &ConfigurationError{Option: name, Reason: "pruned on " + o.platform}
	}
	v, ok := o.values[name]
	if !ok {
		return "", &ConfigurationError{Option: name, Reason: "not declared by the recipe"}
	}
	return v, nil
}

// Bool returns the value of an active boolean option.
func (o OptionSet) Bool(name string) (bool, error) {
	v, err := o.Get(name)
	if err != nil {
		return false, err
	}
	switch v {
	case True:
		return true, nil
	case False:
		return false, nil
	default:
		return false, &ConfigurationError{Option: name, Value: v, Reason: "not a boolean option"}
	}
}

// Has reports whether name is an active option.
func (o OptionSet) Has(name string) bool {
	_, ok := o.values[name]
	return ok
}

// IsPruned reports whether name was removed for the platform.
func (o OptionSet) IsPruned(name string) bool {
	return o.pruned[name]
}

// Names returns the active option names in lexical order.
func (o OptionSet) Names() []string {
	return sortedKeys(o.values)
}

// Pruned returns the pruned option names in lexical order.
func (o OptionSet) Pruned() []string {
	return sortedKeys(o.pruned)
}

// Map returns a copy of the active options.
func (o OptionSet) Map() map[string]string {
	if o.values == nil {
		return map[string]string{}
	}
	return maps.Clone(o.values)
}

// Equal reports whether both sets hold the same active options.
func (o OptionSet) Equal(other OptionSet) bool {
	return maps.Equal(o.values, other.values)
}

// Len returns the number of active options.
func (o OptionSet) Len() int {
	return len(o.values)
}

// String renders the active options as name=value pairs in lexical order.
func (o OptionSet) String() string {
	parts := make([]string, 0, len(o.values))
	for _, name := range o.Names() {
		parts = append(parts, name+"="+o.values[name])
	}
	return strings.Join(parts, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
