// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/forgepkg/forge/pkg/platform"
)

// ToolchainFileName is the generated CMake toolchain file in a build directory.
const ToolchainFileName = "forge_toolchain.cmake"

// Well-known options mapped to CMake variables when a recipe declares them.
var cmakeOptionVars = map[string]string{
	"shared": "BUILD_SHARED_LIBS",
	"fpic":   "CMAKE_POSITION_INDEPENDENT_CODE",
}

// CMake builds the invocations of the cmake build system for one recipe.
type CMake struct {
	// Command is the cmake executable.
	Command  string
	Platform platform.Descriptor
	Options  platform.OptionSet
	// OptionsMap maps recipe options to additional CMake variables.
	OptionsMap map[string]string
	// Definitions are passed verbatim as -D<name>=<value>.
	Definitions map[string]string
	// PrefixPath lists dependency package roots.
	PrefixPath []string
	Dirs       Dirs
	Jobs       int
}

// ToolchainFile renders the toolchain file pinning the platform's build
// type, compiler and the dependency search path.
func (c *CMake) ToolchainFile() string {
	var b strings.Builder
	b.WriteString("# Generated by forge. Do not edit.\n")
	fmt.Fprintf(&b, "set(CMAKE_BUILD_TYPE %s CACHE STRING \"\" FORCE)\n", c.Platform.BuildType.CMakeName())
	if cc, cxx := compilerCommands(c.Platform.Compiler.Name); cc != "" {
		fmt.Fprintf(&b, "set(CMAKE_C_COMPILER %s)\n", cc)
		fmt.Fprintf(&b, "set(CMAKE_CXX_COMPILER %s)\n", cxx)
	}
	if c.Platform.OS == platform.MacOS {
		fmt.Fprintf(&b, "set(CMAKE_OSX_ARCHITECTURES %s)\n", appleArch(c.Platform.Arch))
	}
	for _, v := range c.optionVars() {
		kind := "STRING"
		if v[1] == "ON" || v[1] == "OFF" {
			kind = "BOOL"
		}
		fmt.Fprintf(&b, "set(%s %s CACHE %s \"\" FORCE)\n", v[0], v[1], kind)
	}
	if len(c.PrefixPath) > 0 {
		paths := make([]string, len(c.PrefixPath))
		for i, p := range c.PrefixPath {
			paths[i] = strconv.Quote(cmakePath(p))
		}
		fmt.Fprintf(&b, "list(PREPEND CMAKE_PREFIX_PATH %s)\n", strings.Join(paths, " "))
	}
	return b.String()
}

// optionVars returns the CMake variables derived from active options,
// sorted by variable name.
func (c *CMake) optionVars() [][2]string {
	seen := make(map[string]string)
	for _, name := range c.Options.Names() {
		v, err := c.Options.Get(name)
		if err != nil {
			continue
		}
		if cmakeVar, ok := c.OptionsMap[name]; ok {
			seen[cmakeVar] = cmakeValue(v)
			continue
		}
		if cmakeVar, ok := cmakeOptionVars[strings.ToLower(name)]; ok {
			seen[cmakeVar] = cmakeValue(v)
		}
	}
	out := make([][2]string, 0, len(seen))
	for k, v := range seen {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Configure returns the configure invocation. toolchainFile is the path of
// the rendered ToolchainFile.
func (c *CMake) Configure(toolchainFile string) Invocation {
	args := []string{
		"-S", c.Dirs.Source,
		"-B", c.Dirs.Build,
		"-DCMAKE_TOOLCHAIN_FILE=" + toolchainFile,
		"-DCMAKE_INSTALL_PREFIX=" + c.Dirs.Package,
	}
	keys := make([]string, 0, len(c.Definitions))
	for k := range c.Definitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-D"+k+"="+c.Definitions[k])
	}
	return Invocation{Command: c.command(), Args: args, Dir: c.Dirs.Build}
}

// Build returns the build invocation.
func (c *CMake) Build() Invocation {
	args := []string{"--build", c.Dirs.Build, "--config", c.Platform.BuildType.CMakeName()}
	if c.Jobs > 0 {
		args = append(args, "--parallel", strconv.Itoa(c.Jobs))
	}
	return Invocation{Command: c.command(), Args: args, Dir: c.Dirs.Build}
}

// Install returns the invocation installing into the package directory.
func (c *CMake) Install() Invocation {
	return Invocation{
		Command: c.command(),
		Args:    []string{"--install", c.Dirs.Build, "--config", c.Platform.BuildType.CMakeName(), "--prefix", c.Dirs.Package},
		Dir:     c.Dirs.Build,
	}
}

func (c *CMake) command() string {
	if c.Command == "" {
		return "cmake"
	}
	return c.Command
}

func cmakeValue(v string) string {
	switch v {
	case platform.True:
		return "ON"
	case platform.False:
		return "OFF"
	default:
		return v
	}
}

func cmakePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func compilerCommands(name string) (cc, cxx string) {
	switch name {
	case platform.GCC:
		return "gcc", "g++"
	case platform.Clang, platform.AppleClang:
		return "clang", "clang++"
	case platform.MSVC:
		return "cl", "cl"
	default:
		return "", ""
	}
}

func appleArch(a platform.Arch) string {
	if a == platform.ARMv8 {
		return "arm64"
	}
	return string(a)
}
