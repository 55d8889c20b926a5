// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/pkg/platform"
)

const geohashRecipe = `
name:    "geohash"
version: "1.0"
license: "MIT"
source: git: {
	url: "https://github.com/example/geohash.git"
	ref: "v1.0"
}
requires: ["zlib/[>=1.2 <2]"]
options: [
	{name: "shared", default: "false"},
	{name: "fPIC", default: "true", remove_when: [{os: ["windows"]}, {option: shared: "true"}]},
]
cmake: options_map: shared: "GEOHASH_SHARED"
package_info: libs: ["geohash"]
`

const sqliteModernCppRecipe = `
name:    "sqlite_modern_cpp"
version: "3.2"
kind:    "header_only"
build_system: "none"
source: local: path: "src"
package: copy: [{pattern: "**/*.h", src: "hdr", dst: "include"}]
`

func TestParseBytes(t *testing.T) {
	t.Parallel()

	r, err := ParseBytes([]byte(geohashRecipe), "geohash/recipe.cue")
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	if r.Ref() != "geohash/1.0" {
		t.Errorf("Ref() = %q", r.Ref())
	}
	if r.Kind != KindLibrary || r.BuildSystem != BuildCMake {
		t.Errorf("defaults not applied: kind=%q build_system=%q", r.Kind, r.BuildSystem)
	}
	if !r.Package.Install {
		t.Error("package.install should default to true")
	}
	if len(r.Options) != 2 || !r.Options[0].IsBool() {
		t.Errorf("Options = %+v", r.Options)
	}
	reqs := r.Requirements()
	if len(reqs) != 1 || reqs[0].Name != "zlib" || reqs[0].Constraint.String() != "[>=1.2 <2]" {
		t.Errorf("Requirements() = %+v", reqs)
	}
	if r.Revision() == "" || r.Revision().Validate() != nil {
		t.Errorf("Revision() = %q", r.Revision())
	}
	if got := r.SourceFingerprint(); got != "git+https://github.com/example/geohash.git#v1.0" {
		t.Errorf("SourceFingerprint() = %q", got)
	}
}

func TestParseBytes_RevisionTracksContent(t *testing.T) {
	t.Parallel()

	a, err := ParseBytes([]byte(geohashRecipe), "a.cue")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseBytes([]byte(geohashRecipe), "b.cue")
	if err != nil {
		t.Fatal(err)
	}
	if a.Revision() != b.Revision() {
		t.Error("identical content should have identical revisions")
	}
	c, err := ParseBytes([]byte(geohashRecipe+"\ndescription: \"fast\"\n"), "c.cue")
	if err != nil {
		t.Fatal(err)
	}
	if a.Revision() == c.Revision() {
		t.Error("edited recipe kept its revision")
	}
}

func TestParseBytes_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bad name", `name: "Geo", version: "1.0"`, "name"},
		{"bad version", `name: "geo", version: "one"`, "version"},
		{"bad requirement", `name: "geo", version: "1.0", requires: ["zlib"]`, "requires"},
		{"bad constraint", `name: "geo", version: "1.0", requires: ["zlib/>=x"]`, "zlib/>=x"},
		{"self requirement", `name: "geo", version: "1.0", requires: ["geo/1.0"]`, "requires itself"},
		{"duplicate requirement", `name: "geo", version: "1.0", requires: ["zlib/1", "zlib/2"]`, "more than once"},
		{"unknown field", `name: "geo", version: "1.0", homepage2: "x"`, "homepage2"},
		{"two sources", `name: "geo", version: "1.0", source: {git: {url: "u", ref: "r"}, local: path: "."}`, "exactly one"},
		{"git without ref", `name: "geo", version: "1.0", source: git: url: "u"`, "ref or commit"},
		{"commands with cmake", `name: "geo", version: "1.0", commands: build: [{cmd: "make"}]`, "commands"},
		{"options_map unknown", `name: "geo", version: "1.0", cmake: options_map: lto: "X"`, "lto"},
		{"copy escapes", `name: "geo", version: "1.0", package: copy: [{pattern: "*", dst: "../x"}]`, "inside the workspace"},
		{"duplicate option", `name: "geo", version: "1.0", options: [{name: "shared", default: "false"}, {name: "shared", default: "true"}]`, "more than once"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseBytes([]byte(tt.src), "recipe.cue")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParse_LocalSourceFoldsIntoRevision(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(sqliteModernCppRecipe), 0o644); err != nil {
		t.Fatal(err)
	}
	header := filepath.Join(dir, "src", "hdr", "sqlite_modern_cpp.h")
	if err := os.MkdirAll(filepath.Dir(header), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(header, []byte("#pragma once\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if first.LocalSourceDir() != filepath.Join(dir, "src") {
		t.Errorf("LocalSourceDir() = %q", first.LocalSourceDir())
	}
	if !first.IsHeaderOnly() {
		t.Error("IsHeaderOnly() = false")
	}

	if err := os.WriteFile(header, []byte("#pragma once\n// v2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if first.Revision() == second.Revision() {
		t.Error("editing the local source did not change the revision")
	}
}

func TestParse_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Parse(filepath.Join(t.TempDir(), FileName)); err == nil {
		t.Error("expected error for missing recipe")
	}
}

func TestResolveOptions(t *testing.T) {
	t.Parallel()

	r, err := ParseBytes([]byte(geohashRecipe), "recipe.cue")
	if err != nil {
		t.Fatal(err)
	}
	d := platform.Descriptor{OS: platform.Windows, Compiler: platform.Compiler{Name: platform.MSVC, Version: "193"}, BuildType: platform.Release, Arch: platform.X86_64}

	set, err := r.ResolveOptions(d, nil)
	if err != nil {
		t.Fatalf("ResolveOptions() error: %v", err)
	}
	if !slices.Equal(set.Names(), []string{"shared"}) {
		t.Errorf("Names() = %v, want [shared]", set.Names())
	}

	_, err = r.ResolveOptions(d, map[string]string{"shared": "maybe"})
	if !errors.Is(err, issue.ErrConfiguration) || !strings.Contains(err.Error(), "geohash/1.0") {
		t.Errorf("ResolveOptions() error = %v", err)
	}
}

func TestPhases(t *testing.T) {
	t.Parallel()

	lib, err := ParseBytes([]byte(geohashRecipe), "recipe.cue")
	if err != nil {
		t.Fatal(err)
	}
	hdr, err := ParseBytes([]byte(sqliteModernCppRecipe), "recipe.cue")
	if err != nil {
		t.Fatal(err)
	}

	want := []Phase{PhaseSource, PhaseConfigure, PhaseBuild, PhasePackage, PhasePackageInfo}
	if !slices.Equal(lib.Phases(), want) {
		t.Errorf("Phases() = %v", lib.Phases())
	}

	for _, p := range want {
		if lib.IsNoop(p) {
			t.Errorf("library phase %s should not be a no-op", p)
		}
	}
	for p, noop := range map[Phase]bool{PhaseSource: false, PhaseConfigure: true, PhaseBuild: true, PhasePackage: false} {
		if hdr.IsNoop(p) != noop {
			t.Errorf("header-only IsNoop(%s) = %v, want %v", p, !noop, noop)
		}
	}
}

func TestParseRequirement(t *testing.T) {
	t.Parallel()

	r, err := ParseRequirement("sqlite_modern_cpp/3.2")
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "sqlite_modern_cpp" || r.String() != "sqlite_modern_cpp/3.2" {
		t.Errorf("ParseRequirement() = %+v", r)
	}
	for _, bad := range []string{"", "zlib", "/1.0", "zlib/"} {
		if _, err := ParseRequirement(bad); err == nil {
			t.Errorf("ParseRequirement(%q) expected error", bad)
		}
	}
}
