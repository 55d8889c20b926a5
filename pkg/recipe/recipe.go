// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/forgepkg/forge/internal/treehash"
	"github.com/forgepkg/forge/pkg/cueutil"
	"github.com/forgepkg/forge/pkg/platform"
	"github.com/forgepkg/forge/pkg/semver"
)

// FileName is the conventional name of a recipe declaration.
const FileName = "recipe.cue"

//go:embed recipe_schema.cue
var schemaBytes []byte

type (
	// Kind distinguishes compiled libraries from header-only ones.
	Kind string

	// BuildSystem selects how configure, build and package are carried out.
	BuildSystem string

	// Recipe is a parsed recipe declaration. It is immutable once parsed.
	Recipe struct {
		Name        string                `json:"name"`
		Version     string                `json:"version"`
		Description string                `json:"description,omitempty"`
		License     string                `json:"license,omitempty"`
		Homepage    string                `json:"homepage,omitempty"`
		Kind        Kind                  `json:"kind"`
		Source      *Source               `json:"source,omitempty"`
		Requires    []string              `json:"requires"`
		Options     platform.OptionSchema `json:"options"`
		BuildSystem BuildSystem           `json:"build_system"`
		CMake       *CMake                `json:"cmake,omitempty"`
		Commands    *Commands             `json:"commands,omitempty"`
		Package     Package               `json:"package"`
		PackageInfo PackageInfo           `json:"package_info"`

		// Path is the declaration file, empty for recipes parsed from memory.
		Path string `json:"-"`

		version      semver.Version
		requirements []Requirement
		revision     digest.Digest
	}

	// Source locates the recipe's source tree.
	Source struct {
		Git   *GitSource   `json:"git,omitempty"`
		Local *LocalSource `json:"local,omitempty"`
		// SHA256 is the expected tree digest of the fetched source.
		SHA256 string `json:"sha256,omitempty"`
	}

	// GitSource is a git repository checkout.
	GitSource struct {
		URL string `json:"url"`
		// Ref is a branch or tag name.
		Ref string `json:"ref,omitempty"`
		// Commit pins the checkout; it takes precedence over Ref.
		Commit string `json:"commit,omitempty"`
	}

	// LocalSource is a directory, relative to the recipe file.
	LocalSource struct {
		Path string `json:"path"`
	}

	// CMake configures the cmake build system.
	CMake struct {
		Definitions map[string]string `json:"definitions,omitempty"`
		OptionsMap  map[string]string `json:"options_map,omitempty"`
	}

	// Command is one argument-vector invocation. Arguments are expanded with
	// ${var} references but never passed through a shell.
	Command struct {
		Cmd  string            `json:"cmd"`
		Args []string          `json:"args"`
		Env  map[string]string `json:"env,omitempty"`
	}

	// Commands are the per-phase invocations of the commands build system.
	Commands struct {
		Configure []Command `json:"configure,omitempty"`
		Build     []Command `json:"build,omitempty"`
		Package   []Command `json:"package,omitempty"`
	}

	// CopyRule copies files matching Pattern below From/Src into Dst of the
	// package directory.
	CopyRule struct {
		From    string `json:"from"`
		Src     string `json:"src"`
		Pattern string `json:"pattern"`
		Dst     string `json:"dst"`
	}

	// Package describes the package phase.
	Package struct {
		Install bool       `json:"install"`
		Copy    []CopyRule `json:"copy"`
	}

	// PackageInfo is the consumer-facing metadata of a packaged artifact.
	PackageInfo struct {
		Libs        []string          `json:"libs,omitempty" toml:"libs,omitempty"`
		IncludeDirs []string          `json:"includedirs,omitempty" toml:"includedirs,omitempty"`
		LibDirs     []string          `json:"libdirs,omitempty" toml:"libdirs,omitempty"`
		BinDirs     []string          `json:"bindirs,omitempty" toml:"bindirs,omitempty"`
		Defines     []string          `json:"defines,omitempty" toml:"defines,omitempty"`
		Properties  map[string]string `json:"properties,omitempty" toml:"properties,omitempty"`
	}
)

const (
	KindLibrary    Kind = "library"
	KindHeaderOnly Kind = "header_only"

	BuildCMake    BuildSystem = "cmake"
	BuildCommands BuildSystem = "commands"
	BuildNone     BuildSystem = "none"

	CopyFromSource = "source"
	CopyFromBuild  = "build"
)

// Parse reads and validates the recipe at path. A local source directory is
// folded into the revision, so editing local sources changes the identity.
func Parse(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	r, err := ParseBytes(data, path)
	if err != nil {
		return nil, err
	}
	r.Path = path

	if dir := r.LocalSourceDir(); dir != "" {
		tree, err := treehash.Sum(dir)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: local source: %w", r.Ref(), err)
		}
		r.revision = digest.FromString(r.revision.String() + "\n" + tree.String())
	}
	return r, nil
}

// ParseBytes parses and validates recipe source. filename is used in
// diagnostics; the revision is the digest of data.
func ParseBytes(data []byte, filename string) (*Recipe, error) {
	result, err := cueutil.ParseAndDecode[Recipe](schemaBytes, data, "#Recipe", cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}
	r := result.Value
	if err := r.init(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	r.revision = digest.FromBytes(data)
	return r, nil
}

func (r *Recipe) init() error {
	v, err := semver.ParseVersion(r.Version)
	if err != nil {
		return err
	}
	r.version = v

	r.requirements = make([]Requirement, 0, len(r.Requires))
	seen := make(map[string]bool, len(r.Requires))
	for _, s := range r.Requires {
		req, err := ParseRequirement(s)
		if err != nil {
			return err
		}
		if req.Name == r.Name {
			return fmt.Errorf("recipe %s requires itself", r.Name)
		}
		if seen[req.Name] {
			return fmt.Errorf("recipe %s requires %s more than once", r.Name, req.Name)
		}
		seen[req.Name] = true
		r.requirements = append(r.requirements, req)
	}
	return r.Validate()
}

// Validate checks constraints the schema cannot express.
func (r *Recipe) Validate() error {
	if err := r.Options.Validate(); err != nil {
		return err
	}
	if s := r.Source; s != nil {
		if (s.Git == nil) == (s.Local == nil) {
			return fmt.Errorf("source must declare exactly one of git or local")
		}
		if s.Git != nil && s.Git.Ref == "" && s.Git.Commit == "" {
			return fmt.Errorf("git source %s must declare ref or commit", s.Git.URL)
		}
	}
	if r.Commands != nil && r.BuildSystem != BuildCommands {
		return fmt.Errorf("commands are only valid with build_system \"commands\"")
	}
	if r.CMake != nil && r.BuildSystem != BuildCMake {
		return fmt.Errorf("cmake settings are only valid with build_system \"cmake\"")
	}
	if r.IsHeaderOnly() && r.BuildSystem == BuildCMake && r.CMake != nil {
		return fmt.Errorf("header-only recipes cannot declare cmake settings")
	}
	for name := range optionsMapKeys(r.CMake) {
		if _, ok := r.Options.Lookup(name); !ok {
			return fmt.Errorf("cmake.options_map refers to undeclared option %q", name)
		}
	}
	for i, rule := range r.Package.Copy {
		if filepath.IsAbs(rule.Src) || filepath.IsAbs(rule.Dst) || escapes(rule.Src) || escapes(rule.Dst) {
			return fmt.Errorf("package.copy[%d]: paths must stay inside the workspace", i)
		}
	}
	return nil
}

func optionsMapKeys(c *CMake) map[string]string {
	if c == nil {
		return nil
	}
	return c.OptionsMap
}

func escapes(p string) bool {
	clean := filepath.ToSlash(filepath.Clean(p))
	return clean == ".." || strings.HasPrefix(clean, "../")
}

// Ref returns "name/version".
func (r *Recipe) Ref() string {
	return r.Name + "/" + r.Version
}

// SemVersion returns the parsed version.
func (r *Recipe) SemVersion() semver.Version {
	return r.version
}

// Requirements returns the declared requirements in declaration order.
func (r *Recipe) Requirements() []Requirement {
	return append([]Requirement(nil), r.requirements...)
}

// Revision is the content revision of the declaration.
func (r *Recipe) Revision() digest.Digest {
	return r.revision
}

// IsHeaderOnly reports whether artifacts are independent of the platform's
// binary axes.
func (r *Recipe) IsHeaderOnly() bool {
	return r.Kind == KindHeaderOnly
}

// ResolveOptions applies defaults, then values, then the platform's pruning.
func (r *Recipe) ResolveOptions(p platform.Descriptor, values map[string]string) (platform.OptionSet, error) {
	set, err := p.Resolve(r.Options, values)
	if err != nil {
		return platform.OptionSet{}, fmt.Errorf("recipe %s: %w", r.Ref(), err)
	}
	return set, nil
}

// LocalSourceDir returns the absolute directory of a local source, or "".
func (r *Recipe) LocalSourceDir() string {
	if r.Source == nil || r.Source.Local == nil {
		return ""
	}
	p := r.Source.Local.Path
	if filepath.IsAbs(p) || r.Path == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(filepath.Dir(r.Path), p)
}

// SourceFingerprint describes the declared source location. It changes when
// the url, pinned commit, ref or declared tree digest changes.
func (r *Recipe) SourceFingerprint() string {
	if r.Source == nil {
		return ""
	}
	var b strings.Builder
	switch {
	case r.Source.Git != nil:
		b.WriteString("git+" + r.Source.Git.URL)
		if r.Source.Git.Commit != "" {
			b.WriteString("@" + r.Source.Git.Commit)
		} else {
			b.WriteString("#" + r.Source.Git.Ref)
		}
	case r.Source.Local != nil:
		b.WriteString("local")
	}
	if r.Source.SHA256 != "" {
		b.WriteString(" sha256=" + strings.TrimPrefix(r.Source.SHA256, "sha256:"))
	}
	return b.String()
}
