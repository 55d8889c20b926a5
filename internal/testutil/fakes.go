// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/forgepkg/forge/internal/toolchain"
	"github.com/forgepkg/forge/pkg/recipe"
)

type (
	// Runner is a toolchain.Runner that records invocations instead of
	// running them. PackageTool invocations write a library file into their
	// second argument, the package directory.
	Runner struct {
		// FailWhen makes matching invocations fail with exit status 1.
		FailWhen func(inv toolchain.Invocation) bool
		// Hold keeps every invocation running for the given duration, so
		// concurrent invocations overlap.
		Hold time.Duration

		mu        sync.Mutex
		calls     []toolchain.Invocation
		spans     []Span
		clock     int
		active    int
		maxActive int
	}

	// Span records when an invocation started and finished, as positions on
	// a counter shared by all invocations of one Runner.
	Span struct {
		Invocation toolchain.Invocation
		Start      int
		End        int
	}

	// Fetcher is a source.Fetcher writing a fixed file set for every recipe.
	Fetcher struct {
		// Files maps recipe names to the files written for them.
		Files map[string]map[string]string
		// Fail maps recipe names to the error returned for them.
		Fail map[string]error

		mu      sync.Mutex
		fetched []string
	}
)

var _ toolchain.Runner = (*Runner)(nil)

// Run implements toolchain.Runner.
func (r *Runner) Run(ctx context.Context, inv toolchain.Invocation) (*toolchain.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.clock++
	start := r.clock
	r.active++
	r.maxActive = max(r.maxActive, r.active)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.active--
		r.clock++
		r.spans = append(r.spans, Span{Invocation: inv, Start: start, End: r.clock})
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Hold > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.Hold):
		}
	}
	if r.FailWhen != nil && r.FailWhen(inv) {
		return &toolchain.Result{ExitCode: 1, Stderr: "simulated failure"},
			&toolchain.ToolchainError{Invocation: inv, ExitCode: 1, Stderr: "simulated failure"}
	}
	if inv.Command == PackageTool && len(inv.Args) >= 2 {
		lib := filepath.Join(inv.Args[1], "lib", "libpackaged.a")
		if err := os.MkdirAll(filepath.Dir(lib), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(lib, []byte(strings.Join(inv.Args, "\n")), 0o644); err != nil {
			return nil, err
		}
	}
	return &toolchain.Result{}, nil
}

// Calls returns the recorded invocations in call order.
func (r *Runner) Calls() []toolchain.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]toolchain.Invocation(nil), r.calls...)
}

// CallsMatching returns the recorded invocations whose arguments contain
// substr, such as a recipe's "name-version" workspace segment.
func (r *Runner) CallsMatching(substr string) []toolchain.Invocation {
	var out []toolchain.Invocation
	for _, inv := range r.Calls() {
		if strings.Contains(strings.Join(inv.Args, " "), substr) {
			out = append(out, inv)
		}
	}
	return out
}

// Spans returns the finished invocations in finish order.
func (r *Runner) Spans() []Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Span(nil), r.spans...)
}

// SpansMatching returns the finished invocations whose arguments contain
// substr.
func (r *Runner) SpansMatching(substr string) []Span {
	var out []Span
	for _, s := range r.Spans() {
		if strings.Contains(strings.Join(s.Invocation.Args, " "), substr) {
			out = append(out, s)
		}
	}
	return out
}

// MaxConcurrent reports the highest number of invocations that were running
// at the same time.
func (r *Runner) MaxConcurrent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxActive
}

// Reset forgets the recorded invocations.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.spans = nil
	r.clock = 0
	r.maxActive = 0
}

// FailCommandFor returns a FailWhen func matching command invocations
// inside the workspace of the given recipe name and version.
func FailCommandFor(command, name, version string) func(toolchain.Invocation) bool {
	segment := string(filepath.Separator) + name + "-" + version + string(filepath.Separator)
	return func(inv toolchain.Invocation) bool {
		return inv.Command == command && strings.Contains(strings.Join(inv.Args, " "), segment)
	}
}

// Fetch implements source.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, r *recipe.Recipe, dest string) error {
	f.mu.Lock()
	f.fetched = append(f.fetched, r.Ref())
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.Fail[r.Name]; err != nil {
		return err
	}
	files := f.Files[r.Name]
	if files == nil {
		files = map[string]string{"CMakeLists.txt": fmt.Sprintf("project(%s)\n", r.Name)}
	}
	for rel, content := range files {
		path := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Fetched returns the references fetched so far.
func (f *Fetcher) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}
