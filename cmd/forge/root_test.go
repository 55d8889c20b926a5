// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgepkg/forge/internal/config"
	"github.com/forgepkg/forge/internal/dag"
	"github.com/forgepkg/forge/internal/depgraph"
	"github.com/forgepkg/forge/internal/engine"
	"github.com/forgepkg/forge/internal/index"
	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/internal/orchestrator"
	"github.com/forgepkg/forge/internal/testutil"
	"github.com/forgepkg/forge/pkg/platform"
	"github.com/forgepkg/forge/pkg/recipe"
)

var linuxSettings = []string{"-s", "os=linux", "-s", "arch=x86_64", "-s", "compiler=gcc", "-s", "compiler_version=13"}

type staticProvider struct {
	cfg *config.Config
}

func (p staticProvider) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	cfg := *p.cfg
	return &cfg, nil
}

type harness struct {
	runner *testutil.Runner
	stdout bytes.Buffer
	stderr bytes.Buffer
	app    *App
}

func newHarness(t *testing.T, recipes ...*recipe.Recipe) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.CacheDir = filepath.Join(dir, "store")
	cfg.WorkspaceDir = filepath.Join(dir, "work")
	cfg.Parallelism = 2

	h := &harness{runner: &testutil.Runner{}}
	h.app = NewApp(Dependencies{
		Config: staticProvider{cfg: cfg},
		EngineOptions: []engine.Option{
			engine.WithIndex(index.NewMemory(recipes...)),
			engine.WithRunner(h.runner),
			engine.WithFetcher(&testutil.Fetcher{}),
		},
		Stdout: &h.stdout,
		Stderr: &h.stderr,
	})
	return h
}

func (h *harness) run(args ...string) error {
	root := NewRootCommand(h.app)
	root.SetArgs(args)
	root.SetOut(&h.stdout)
	root.SetErr(&h.stderr)
	return root.ExecuteContext(context.Background())
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})

	Version, Commit, BuildDate = "v0.3.0", "abc1234", "2026-01-02T03:04:05Z"
	if got, want := getVersionString(), "v0.3.0 (commit: abc1234, built: 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}

	Version = "dev"
	if got, want := getVersionString(), "dev (built from source)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"cycle", &dag.CycleError{Cycle: []string{"a", "b", "a"}}, ExitGraph},
		{"unknown recipe", &depgraph.UnknownRecipeError{Name: "zlib", Constraint: "*"}, ExitGraph},
		{"configuration", &platform.ConfigurationError{Option: "shared", Value: "maybe", Reason: "not allowed"}, ExitConfiguration},
		{"build", &orchestrator.BuildError{Recipe: "zlib", Version: "1.3", Phase: recipe.PhaseBuild, Err: issue.ErrToolchainFailure}, ExitBuild},
		{"other", errors.New("boom"), ExitFailure},
		{"wrapped graph", fmt.Errorf("plan: %w", issue.ErrVersionConflict), ExitGraph},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := renderError(&buf, &depgraph.UnknownRecipeError{Name: "zlib", Constraint: "*"}, false)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitGraph {
		t.Fatalf("renderError() = %v, want ExitError with code %d", err, ExitGraph)
	}
	out := buf.String()
	if !strings.Contains(out, "Error: ") || !strings.Contains(out, "resolve dependencies") || !strings.Contains(out, "zlib") {
		t.Errorf("rendered error = %q", out)
	}
}

func TestCommands_PlanBuildIdentity(t *testing.T) {
	// Not parallel: commands install the default slog logger.

	h := newHarness(t,
		testutil.Library(t, "zlib", "1.3"),
		testutil.HeaderOnly(t, "geohash", "1.0"),
		testutil.Library(t, "app", "1.0", "zlib/[>=1.2]", "geohash/1.0"),
	)

	if err := h.run(append([]string{"plan", "app"}, linuxSettings...)...); err != nil {
		t.Fatalf("plan: %v\n%s", err, h.stderr.String())
	}
	plan := h.stdout.String()
	for _, want := range []string{"1. geohash/1.0", "2. zlib/1.3", "3. app/1.0", "fPIC=true shared=false"} {
		if !strings.Contains(plan, want) {
			t.Errorf("plan output lacks %q:\n%s", want, plan)
		}
	}
	if strings.Contains(plan, "cached") || len(h.runner.Calls()) != 0 {
		t.Errorf("plan built something: %d calls\n%s", len(h.runner.Calls()), plan)
	}

	h.stdout.Reset()
	if err := h.run(append([]string{"build", "app"}, linuxSettings...)...); err != nil {
		t.Fatalf("build: %v\n%s", err, h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), "3 built, 0 reused") {
		t.Errorf("build output:\n%s", h.stdout.String())
	}

	h.stdout.Reset()
	if err := h.run(append([]string{"build", "app"}, linuxSettings...)...); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "0 built, 3 reused") {
		t.Errorf("second build output:\n%s", h.stdout.String())
	}

	h.stdout.Reset()
	if err := h.run(append([]string{"identity", "app"}, linuxSettings...)...); err != nil {
		t.Fatalf("identity: %v", err)
	}
	id := strings.TrimSpace(h.stdout.String())
	if !strings.HasPrefix(id, "sha256:") || len(id) != len("sha256:")+64 {
		t.Errorf("identity = %q", id)
	}

	h.stdout.Reset()
	if err := h.run("cache", "list"); err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "app/1.0") || !strings.Contains(h.stdout.String(), id[len("sha256:"):][:12]) {
		t.Errorf("cache list output:\n%s", h.stdout.String())
	}

	h.stdout.Reset()
	if err := h.run("cache", "rm", id[len("sha256:"):][:16]); err != nil {
		t.Fatalf("cache rm: %v\n%s", err, h.stderr.String())
	}
	h.stdout.Reset()
	if err := h.run(append([]string{"plan", "app"}, linuxSettings...)...); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "3. app/1.0") || strings.Count(h.stdout.String(), "cached") != 2 {
		t.Errorf("plan after eviction:\n%s", h.stdout.String())
	}
}

func TestCommands_GraphError(t *testing.T) {
	// Not parallel: commands install the default slog logger.

	h := newHarness(t, testutil.HeaderOnly(t, "app", "1.0", "missing/1.0"))
	err := h.run(append([]string{"build", "app"}, linuxSettings...)...)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitGraph {
		t.Fatalf("build error = %v, want ExitError with code %d", err, ExitGraph)
	}
	if !strings.Contains(h.stderr.String(), "unknown recipe missing") {
		t.Errorf("stderr = %q", h.stderr.String())
	}
	if len(h.runner.Calls()) != 0 {
		t.Errorf("runner called %d times", len(h.runner.Calls()))
	}
}

func TestCommands_ConfigurationError(t *testing.T) {
	// Not parallel: commands install the default slog logger.

	h := newHarness(t, testutil.Library(t, "zlib", "1.3"))
	err := h.run(append([]string{"build", "zlib", "-o", "shared=maybe"}, linuxSettings...)...)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitConfiguration {
		t.Fatalf("build error = %v, want ExitError with code %d", err, ExitConfiguration)
	}
}

func TestApplyConfigValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value string
		wantErr    bool
		check      func(*config.Config) bool
	}{
		{key: "jobs", value: "4", check: func(c *config.Config) bool { return c.Jobs == 4 }},
		{key: "keep_workspaces", value: "true", check: func(c *config.Config) bool { return c.KeepWorkspaces }},
		{key: "log.level", value: "debug", check: func(c *config.Config) bool { return c.Log.Level == config.LogLevelDebug }},
		{key: "git.depth", value: "0", check: func(c *config.Config) bool { return c.Git.Depth == 0 }},
		{key: "profile", value: "linux.hcl", check: func(c *config.Config) bool { return c.Profile == "linux.hcl" }},
		{key: "parallelism", value: "0", wantErr: true},
		{key: "jobs", value: "many", wantErr: true},
		{key: "log.level", value: "loud", wantErr: true},
		{key: "container_engine", value: "podman", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Parallel()
			cfg := config.DefaultConfig()
			err := applyConfigValue(cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("applyConfigValue(%s, %s) left %+v", tt.key, tt.value, cfg)
			}
		})
	}
}
