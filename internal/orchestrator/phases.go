// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/forgepkg/forge/internal/fsutil"
	"github.com/forgepkg/forge/internal/toolchain"
	"github.com/forgepkg/forge/pkg/recipe"
)

// Conventional package layout used when a recipe leaves package_info empty.
var (
	defaultIncludeDirs = []string{"include"}
	defaultLibDirs     = []string{"lib"}
	defaultBinDirs     = []string{"bin"}
)

func (b *builder) run(ctx context.Context, phase recipe.Phase) error {
	switch phase {
	case recipe.PhaseSource:
		return b.o.cfg.Fetcher.Fetch(ctx, b.recipe, b.ws.SourceDir)
	case recipe.PhaseConfigure:
		return b.configure(ctx)
	case recipe.PhaseBuild:
		return b.compile(ctx)
	case recipe.PhasePackage:
		return b.pack(ctx)
	case recipe.PhasePackageInfo:
		b.info = b.packageInfo()
		return nil
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
}

func (b *builder) dirs() toolchain.Dirs {
	return toolchain.Dirs{Source: b.ws.SourceDir, Build: b.ws.BuildDir, Package: b.ws.PackageDir}
}

func (b *builder) prefixPath() []string {
	paths := make([]string, 0, len(b.prefix))
	for _, a := range b.prefix {
		paths = append(paths, a.Root)
	}
	return paths
}

func (b *builder) cmake() *toolchain.CMake {
	c := &toolchain.CMake{
		Command:    b.o.cfg.CMakeCommand,
		Platform:   b.platform,
		Options:    b.res.Options,
		PrefixPath: b.prefixPath(),
		Dirs:       b.dirs(),
		Jobs:       b.o.cfg.Jobs,
	}
	if b.recipe.CMake != nil {
		c.OptionsMap = b.recipe.CMake.OptionsMap
		c.Definitions = b.recipe.CMake.Definitions
	}
	return c
}

func (b *builder) configure(ctx context.Context) error {
	switch b.recipe.BuildSystem {
	case recipe.BuildCMake:
		c := b.cmake()
		path := filepath.Join(b.ws.BuildDir, toolchain.ToolchainFileName)
		if err := fsutil.WriteFileAtomic(path, []byte(c.ToolchainFile()), 0o644); err != nil {
			return fmt.Errorf("write toolchain file: %w", err)
		}
		return b.invoke(ctx, c.Configure(path))
	case recipe.BuildCommands:
		return b.commands(ctx, b.recipe.Commands.Configure)
	default:
		return nil
	}
}

func (b *builder) compile(ctx context.Context) error {
	switch b.recipe.BuildSystem {
	case recipe.BuildCMake:
		return b.invoke(ctx, b.cmake().Build())
	case recipe.BuildCommands:
		return b.commands(ctx, b.recipe.Commands.Build)
	default:
		return nil
	}
}

func (b *builder) pack(ctx context.Context) error {
	switch b.recipe.BuildSystem {
	case recipe.BuildCMake:
		if b.recipe.Package.Install && !b.recipe.IsNoop(recipe.PhaseBuild) {
			if err := b.invoke(ctx, b.cmake().Install()); err != nil {
				return err
			}
		}
	case recipe.BuildCommands:
		if b.recipe.Commands != nil {
			if err := b.commands(ctx, b.recipe.Commands.Package); err != nil {
				return err
			}
		}
	}
	for i, rule := range b.recipe.Package.Copy {
		if err := b.copyRule(rule); err != nil {
			return fmt.Errorf("package.copy[%d]: %w", i, err)
		}
	}
	return nil
}

// copyRule copies files matching rule.Pattern below the source or build
// directory into the package directory, keeping their relative paths.
func (b *builder) copyRule(rule recipe.CopyRule) error {
	base := b.ws.SourceDir
	if rule.From == recipe.CopyFromBuild {
		base = b.ws.BuildDir
	}
	base = filepath.Join(base, filepath.FromSlash(rule.Src))
	if _, err := os.Stat(base); err != nil {
		return fmt.Errorf("copy source %s: %w", rule.Src, err)
	}

	matches, err := doublestar.Glob(os.DirFS(base), rule.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("pattern %q: %w", rule.Pattern, err)
	}
	dst := filepath.Join(b.ws.PackageDir, filepath.FromSlash(rule.Dst))
	for _, m := range matches {
		from := filepath.Join(base, filepath.FromSlash(m))
		info, err := os.Stat(from)
		if err != nil {
			return err
		}
		if err := fsutil.CopyFile(from, filepath.Join(dst, filepath.FromSlash(m)), info.Mode().Perm()); err != nil {
			return err
		}
	}
	slog.Debug("copied package files", "recipe", b.recipe.Ref(), "pattern", rule.Pattern, "files", len(matches))
	return nil
}

func (b *builder) commands(ctx context.Context, cmds []recipe.Command) error {
	exp := toolchain.NewExpander(b.platform, b.res.Options, b.dirs(), b.o.cfg.Jobs, b.prefixPath())
	for _, c := range cmds {
		command, err := exp.Expand(c.Cmd)
		if err != nil {
			return err
		}
		args, err := exp.ExpandAll(c.Args)
		if err != nil {
			return err
		}
		env := make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			if env[k], err = exp.Expand(v); err != nil {
				return err
			}
		}
		if err := b.invoke(ctx, toolchain.Invocation{Command: command, Args: args, Dir: b.ws.BuildDir, Env: env}); err != nil {
			return err
		}
	}
	return nil
}

// invoke runs inv with the configured environment underneath its own.
func (b *builder) invoke(ctx context.Context, inv toolchain.Invocation) error {
	env := make(map[string]string, len(b.o.cfg.Env)+len(inv.Env))
	for k, v := range b.o.cfg.Env {
		env[k] = v
	}
	for k, v := range inv.Env {
		env[k] = v
	}
	inv.Env = env
	slog.Debug("running", "recipe", b.recipe.Ref(), "command", inv.String())
	_, err := b.o.cfg.Runner.Run(ctx, inv)
	return err
}

// packageInfo returns the recipe's metadata with conventional directories
// filled in. Header-only artifacts carry no libraries or binaries.
func (b *builder) packageInfo() recipe.PackageInfo {
	info := b.recipe.PackageInfo
	if info.IncludeDirs == nil {
		info.IncludeDirs = defaultIncludeDirs
	}
	if b.recipe.IsHeaderOnly() {
		info.Libs = nil
		info.LibDirs = nil
		info.BinDirs = nil
		return info
	}
	if info.LibDirs == nil {
		info.LibDirs = defaultLibDirs
	}
	if info.BinDirs == nil {
		info.BinDirs = defaultBinDirs
	}
	return info
}
