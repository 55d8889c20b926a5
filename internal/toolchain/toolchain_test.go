// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/pkg/platform"
)

func linuxGCC() platform.Descriptor {
	return platform.Descriptor{
		OS:        platform.Linux,
		Compiler:  platform.Compiler{Name: platform.GCC, Version: "13"},
		BuildType: platform.RelWithDebInfo,
		Arch:      platform.X86_64,
	}
}

func sharedFPIC(t *testing.T, p platform.Descriptor, values map[string]string) platform.OptionSet {
	t.Helper()
	schema := platform.OptionSchema{
		platform.BoolOption("shared", false),
		platform.BoolOption("fPIC", true,
			platform.Condition{OS: []platform.OS{platform.Windows}},
			platform.Condition{Option: map[string]string{"shared": "true"}}),
		{Name: "backend", Values: []string{"odbc", "sqlite"}, Default: "sqlite"},
	}
	opts, err := p.Resolve(schema, values)
	if err != nil {
		t.Fatal(err)
	}
	return opts
}

func TestInvocationString(t *testing.T) {
	t.Parallel()

	inv := Invocation{
		Command: "cmake",
		Args:    []string{"-S", "/work/src dir", "--fresh"},
		Env:     map[string]string{"CXX": "clang", "CC": "gcc"},
	}
	want := "CC=gcc CXX=clang cmake -S '/work/src dir' --fresh"
	if got := inv.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	env := inv.EnvSlice([]string{"PATH=/bin"})
	if !slices.Equal(env, []string{"PATH=/bin", "CC=gcc", "CXX=clang"}) {
		t.Errorf("EnvSlice() = %v", env)
	}
}

func TestExpander(t *testing.T) {
	t.Parallel()

	p := linuxGCC()
	e := NewExpander(p, sharedFPIC(t, p, map[string]string{"shared": "true"}),
		Dirs{Source: "/ws/src", Build: "/ws/build/relwithdebinfo", Package: "/ws/package"}, 4, []string{"/store/a", "/store/b"})

	tests := []struct {
		in   string
		want string
	}{
		{"${source_dir}/include", "/ws/src/include"},
		{"-j${jobs}", "-j4"},
		{"${build_type}-${os}-${arch}-${compiler}${compiler_version}", "relwithdebinfo-linux-x86_64-gcc13"},
		{"shared=${options.shared}", "shared=true"},
		{"backend=${options.backend}", "backend=sqlite"},
		{"-Wl,-rpath,$ORIGIN", "-Wl,-rpath,${ORIGIN}"},
		{"${package_dir}", "/ws/package"},
		{"${prefix_path}", "/store/a" + string(os.PathListSeparator) + "/store/b"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		got, err := e.Expand(tt.in)
		if err != nil {
			t.Errorf("Expand(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	// fPIC is pruned because shared=true.
	if _, err := e.Expand("${options.fPIC}"); !errors.Is(err, issue.ErrConfiguration) {
		t.Errorf("Expand(pruned option) error = %v, want configuration error", err)
	}
	if _, err := e.ExpandAll([]string{"ok", "${options.missing}"}); err == nil {
		t.Error("ExpandAll() accepted an undeclared option")
	}
}

func TestCMake(t *testing.T) {
	t.Parallel()

	p := linuxGCC()
	c := &CMake{
		Platform:    p,
		Options:     sharedFPIC(t, p, nil),
		OptionsMap:  map[string]string{"backend": "GEOHASH_BACKEND"},
		Definitions: map[string]string{"WITH_TESTS": "OFF", "A_FIRST": "1"},
		PrefixPath:  []string{"/store/zlib"},
		Dirs:        Dirs{Source: "/ws/src", Build: "/ws/build", Package: "/ws/pkg"},
		Jobs:        8,
	}

	file := c.ToolchainFile()
	for _, want := range []string{
		"set(CMAKE_BUILD_TYPE RelWithDebInfo CACHE STRING \"\" FORCE)",
		"set(CMAKE_CXX_COMPILER g++)",
		"set(BUILD_SHARED_LIBS OFF CACHE BOOL \"\" FORCE)",
		"set(CMAKE_POSITION_INDEPENDENT_CODE ON CACHE BOOL \"\" FORCE)",
		"set(GEOHASH_BACKEND sqlite CACHE STRING \"\" FORCE)",
		`list(PREPEND CMAKE_PREFIX_PATH "/store/zlib")`,
	} {
		if !strings.Contains(file, want) {
			t.Errorf("toolchain file missing %q:\n%s", want, file)
		}
	}

	configure := c.Configure("/ws/build/" + ToolchainFileName)
	wantArgs := []string{
		"-S", "/ws/src", "-B", "/ws/build",
		"-DCMAKE_TOOLCHAIN_FILE=/ws/build/forge_toolchain.cmake",
		"-DCMAKE_INSTALL_PREFIX=/ws/pkg",
		"-DA_FIRST=1", "-DWITH_TESTS=OFF",
	}
	if configure.Command != "cmake" || !slices.Equal(configure.Args, wantArgs) {
		t.Errorf("Configure() = %v", configure)
	}
	if got := c.Build().Args; !slices.Equal(got, []string{"--build", "/ws/build", "--config", "RelWithDebInfo", "--parallel", "8"}) {
		t.Errorf("Build() args = %v", got)
	}
	if got := c.Install().Args; !slices.Equal(got, []string{"--install", "/ws/build", "--config", "RelWithDebInfo", "--prefix", "/ws/pkg"}) {
		t.Errorf("Install() args = %v", got)
	}
}

func TestCMake_PrunedOptionNotMapped(t *testing.T) {
	t.Parallel()

	p := linuxGCC()
	p.OS = platform.Windows
	p.Compiler = platform.Compiler{Name: platform.MSVC}
	c := &CMake{Platform: p, Options: sharedFPIC(t, p, nil)}
	if strings.Contains(c.ToolchainFile(), "CMAKE_POSITION_INDEPENDENT_CODE") {
		t.Error("pruned fPIC option reached the toolchain file")
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExec(t *testing.T) {
	t.Parallel()
	requireShell(t)

	var out bytes.Buffer
	e := &Exec{Output: &out}
	res, err := e.Run(context.Background(), Invocation{
		Command: "sh",
		Args:    []string{"-c", `printf '%s' "$FORGE_TEST_VALUE"; pwd`},
		Dir:     t.TempDir(),
		Env:     map[string]string{"FORGE_TEST_VALUE": "hello"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.HasPrefix(res.Stdout, "hello") || res.ExitCode != 0 {
		t.Errorf("Run() = %+v", res)
	}
	if !strings.HasPrefix(out.String(), "hello") {
		t.Errorf("output was not mirrored: %q", out.String())
	}
}

func TestExec_Failures(t *testing.T) {
	t.Parallel()
	requireShell(t)

	e := &Exec{}
	res, err := e.Run(context.Background(), Invocation{Command: "sh", Args: []string{"-c", "echo broken >&2; exit 3"}})
	var tcErr *ToolchainError
	if !errors.As(err, &tcErr) || !errors.Is(err, issue.ErrToolchainFailure) {
		t.Fatalf("Run() error = %v, want ToolchainError", err)
	}
	if res.ExitCode != 3 || tcErr.ExitCode != 3 || tcErr.Stderr != "broken" {
		t.Errorf("exit = %d, error = %+v", res.ExitCode, tcErr)
	}

	_, err = e.Run(context.Background(), Invocation{Command: "forge-no-such-tool-xyz"})
	if !errors.As(err, &tcErr) || tcErr.ExitCode != -1 {
		t.Errorf("missing tool error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx, Invocation{Command: "sh", Args: []string{"-c", "sleep 5"}}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Run() error = %v", err)
	}
}

type scriptedRunner struct {
	fail map[string]bool
	out  map[string]string
}

func (r scriptedRunner) Run(_ context.Context, inv Invocation) (*Result, error) {
	if r.fail[inv.Command] {
		return &Result{ExitCode: 127}, &ToolchainError{Invocation: inv, ExitCode: 127}
	}
	return &Result{Stdout: r.out[inv.Command]}, nil
}

func TestHostPlatform(t *testing.T) {
	t.Parallel()

	if got := HostPlatform(context.Background(), nil); got.Validate() != nil {
		t.Errorf("HostPlatform(nil) = %v is invalid", got)
	}
	if runtime.GOOS != "linux" {
		t.Skip("compiler probes differ by host")
	}

	got := HostPlatform(context.Background(), scriptedRunner{out: map[string]string{"gcc": "13.2.0\n"}})
	if got.Compiler != (platform.Compiler{Name: platform.GCC, Version: "13"}) {
		t.Errorf("Compiler = %v", got.Compiler)
	}
	got = HostPlatform(context.Background(), scriptedRunner{fail: map[string]bool{"gcc": true}, out: map[string]string{"clang": "17.0.6"}})
	if got.Compiler != (platform.Compiler{Name: platform.Clang, Version: "17"}) {
		t.Errorf("Compiler = %v", got.Compiler)
	}
	if got.BuildType != platform.Release || got.OS != platform.Linux {
		t.Errorf("HostPlatform() = %v", got)
	}
}
