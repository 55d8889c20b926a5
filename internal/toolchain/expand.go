// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/forgepkg/forge/pkg/platform"
)

const optionPrefix = "options."

type (
	// Dirs are the workspace directories of one recipe build.
	Dirs struct {
		Source  string
		Build   string
		Package string
	}

	// Expander substitutes ${name} references in command arguments.
	//
	// Known names are source_dir, build_dir, package_dir, build_type, os,
	// arch, compiler, compiler_version, jobs, prefix_path and
	// options.<option>. Unknown names are left untouched so tool arguments
	// such as $ORIGIN pass through. Referencing a pruned or undeclared option
	// is a platform.ConfigurationError.
	Expander struct {
		vars map[string]string
		opts platform.OptionSet
	}
)

// NewExpander returns the expander for one recipe build. prefixPath lists
// the package roots of the build's dependencies.
func NewExpander(p platform.Descriptor, opts platform.OptionSet, dirs Dirs, jobs int, prefixPath []string) *Expander {
	return &Expander{
		opts: opts,
		vars: map[string]string{
			"source_dir":       dirs.Source,
			"build_dir":        dirs.Build,
			"package_dir":      dirs.Package,
			"build_type":       string(p.BuildType),
			"os":               string(p.OS),
			"arch":             string(p.Arch),
			"compiler":         p.Compiler.Name,
			"compiler_version": p.Compiler.Version,
			"jobs":             strconv.Itoa(jobs),
			"prefix_path":      strings.Join(prefixPath, string(os.PathListSeparator)),
		},
	}
}

// Expand substitutes every reference in s.
func (e *Expander) Expand(s string) (string, error) {
	var firstErr error
	out := os.Expand(s, func(name string) string {
		if opt, ok := strings.CutPrefix(name, optionPrefix); ok {
			v, err := e.opts.Get(opt)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			return v
		}
		if v, ok := e.vars[name]; ok {
			return v
		}
		if name == "$" {
			return "$$"
		}
		return "${" + name + "}"
	})
	if firstErr != nil {
		return "", fmt.Errorf("expand %q: %w", s, firstErr)
	}
	return out, nil
}

// ExpandAll expands every element of list.
func (e *Expander) ExpandAll(list []string) ([]string, error) {
	out := make([]string, len(list))
	for i, s := range list {
		v, err := e.Expand(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Var returns the value of a known variable.
func (e *Expander) Var(name string) string {
	return e.vars[name]
}
