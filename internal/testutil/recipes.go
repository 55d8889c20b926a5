// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/forgepkg/forge/pkg/recipe"
)

// Commands run by Library recipes. A fake runner can match on them.
const (
	ConfigureTool = "configure-tool"
	BuildTool     = "build-tool"
	PackageTool   = "package-tool"
)

// Recipe parses CUE recipe source or fails the test.
func Recipe(t testing.TB, src string) *recipe.Recipe {
	t.Helper()
	r, err := recipe.ParseBytes([]byte(src), "recipe.cue")
	if err != nil {
		t.Fatalf("invalid test recipe: %v\n%s", err, src)
	}
	return r
}

// Library returns a compiled library recipe using the commands build
// system: configure-tool, build-tool and package-tool, with the usual
// shared and fPIC options.
func Library(t testing.TB, name, version string, requires ...string) *recipe.Recipe {
	t.Helper()
	return Recipe(t, LibrarySource(name, version, requires...))
}

// LibrarySource returns the CUE source of a Library recipe.
func LibrarySource(name, version string, requires ...string) string {
	return fmt.Sprintf(`name:    %q
version: %q
requires: %s
options: [
	{name: "shared", default: "false"},
	{name: "fPIC", default: "true", remove_when: [{os: ["windows"]}, {option: shared: "true"}]},
]
build_system: "commands"
commands: {
	configure: [{cmd: %q, args: ["${source_dir}", "${build_dir}", "${build_type}", "shared=${options.shared}"]}]
	build: [{cmd: %q, args: ["${build_dir}", "-j${jobs}"]}]
	package: [{cmd: %q, args: ["${build_dir}", "${package_dir}"]}]
}
package: install: false
package_info: libs: [%q]
`, name, version, cueList(requires), ConfigureTool, BuildTool, PackageTool, name)
}

// HeaderOnly returns a header-only recipe with no source and no build.
func HeaderOnly(t testing.TB, name, version string, requires ...string) *recipe.Recipe {
	t.Helper()
	return Recipe(t, HeaderOnlySource(name, version, requires...))
}

// HeaderOnlySource returns the CUE source of a HeaderOnly recipe.
func HeaderOnlySource(name, version string, requires ...string) string {
	return fmt.Sprintf(`name:    %q
version: %q
kind:    "header_only"
build_system: "none"
requires: %s
`, name, version, cueList(requires))
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
