// SPDX-License-Identifier: MPL-2.0

// Package toolchain runs configure, build and install tools. Invocations are
// argument vectors executed directly, never through a shell.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/forgepkg/forge/internal/issue"
)

// maxErrorOutput bounds the stderr excerpt kept in a ToolchainError.
const maxErrorOutput = 4096

type (
	// Invocation is one tool execution.
	Invocation struct {
		Command string
		Args    []string
		// Dir is the working directory.
		Dir string
		// Env is added to the inherited environment.
		Env map[string]string
	}

	// Result is the outcome of a completed invocation.
	Result struct {
		ExitCode int
		Stdout   string
		Stderr   string
	}

	// Runner executes invocations.
	Runner interface {
		Run(ctx context.Context, inv Invocation) (*Result, error)
	}

	// Exec runs invocations as child processes of the current process.
	Exec struct {
		// Output receives a copy of the tool's stdout and stderr when set.
		Output io.Writer
	}

	// ToolchainError reports an invocation that could not start or exited
	// with a non-zero status.
	ToolchainError struct {
		Invocation Invocation
		ExitCode   int
		Stderr     string
		Err        error
	}
)

// String renders the invocation as a shell-quoted command line for display.
func (inv Invocation) String() string {
	words := make([]string, 0, len(inv.Env)+1+len(inv.Args))
	keys := make([]string, 0, len(inv.Env))
	for k := range inv.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		words = append(words, k+"="+quote(inv.Env[k]))
	}
	words = append(words, quote(inv.Command))
	for _, a := range inv.Args {
		words = append(words, quote(a))
	}
	return strings.Join(words, " ")
}

func quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}
	return q
}

// EnvSlice returns the invocation environment layered over base.
func (inv Invocation) EnvSlice(base []string) []string {
	keys := make([]string, 0, len(inv.Env))
	for k := range inv.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, k+"="+inv.Env[k])
	}
	return env
}

// Run implements Runner. Cancelling ctx kills the child process.
func (e *Exec) Run(ctx context.Context, inv Invocation) (*Result, error) {
	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.EnvSlice(os.Environ())

	var stdout, stderr bytes.Buffer
	if e.Output != nil {
		cmd.Stdout = io.MultiWriter(&stdout, e.Output)
		cmd.Stderr = io.MultiWriter(&stderr, e.Output)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &ToolchainError{Invocation: inv, ExitCode: result.ExitCode, Stderr: tail(result.Stderr)}
		}
		result.ExitCode = -1
		return result, &ToolchainError{Invocation: inv, ExitCode: -1, Err: err}
	}
	return result, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorOutput {
		return "..." + s[len(s)-maxErrorOutput:]
	}
	return s
}

func (e *ToolchainError) Error() string {
	var b strings.Builder
	if e.Err != nil {
		fmt.Fprintf(&b, "run %s: %v", e.Invocation.Command, e.Err)
	} else {
		fmt.Fprintf(&b, "%s exited with status %d", e.Invocation.Command, e.ExitCode)
	}
	if e.Stderr != "" {
		b.WriteString(":\n" + e.Stderr)
	}
	return b.String()
}

// Unwrap returns issue.ErrToolchainFailure and the underlying cause.
func (e *ToolchainError) Unwrap() []error {
	if e.Err == nil {
		return []error{issue.ErrToolchainFailure}
	}
	return []error{issue.ErrToolchainFailure, e.Err}
}
