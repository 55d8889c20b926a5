// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/forgepkg/forge/internal/config"
	"github.com/forgepkg/forge/internal/engine"
	"github.com/forgepkg/forge/internal/identity"
	"github.com/forgepkg/forge/internal/orchestrator"
	"github.com/forgepkg/forge/internal/toolchain"
	"github.com/forgepkg/forge/pkg/recipe"
)

// targetFlags are the platform and option flags shared by the commands
// that resolve a build target.
type targetFlags struct {
	profile        string
	settings       []string
	options        []string
	parallel       int
	keepWorkspaces bool
}

func (f *targetFlags) register(cmd *cobra.Command, withBuildFlags bool) {
	cmd.Flags().StringVar(&f.profile, "profile", "", "HCL platform profile (overrides the profile config key)")
	cmd.Flags().StringArrayVarP(&f.settings, "setting", "s", nil, "platform setting `key=value` (os, arch, build_type, compiler, compiler_version)")
	cmd.Flags().StringArrayVarP(&f.options, "option", "o", nil, "recipe option `[pattern:]name=value`; without a pattern it applies to the root recipe")
	if withBuildFlags {
		cmd.Flags().IntVar(&f.parallel, "parallel", 0, "number of recipes built concurrently (overrides parallelism)")
		cmd.Flags().BoolVar(&f.keepWorkspaces, "keep-workspaces", false, "leave build workspaces in place for inspection")
	}
}

// session is the configuration, target and engine of one command run.
type session struct {
	cfg    *config.Config
	target *engine.Target
	engine *engine.Engine
}

// newSession loads the configuration, resolves the target platform and
// creates an engine. extra options are appended after the App's.
func (a *App) newSession(ctx context.Context, flags *targetFlags, extra ...engine.Option) (*session, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if flags.parallel > 0 {
		cfg.Parallelism = flags.parallel
	}
	if flags.keepWorkspaces {
		cfg.KeepWorkspaces = true
	}
	profile := cfg.Profile
	if flags.profile != "" {
		profile = flags.profile
	}

	target, err := engine.ResolveTarget(engine.TargetRequest{
		Base:     toolchain.HostPlatform(ctx, &toolchain.Exec{}),
		Profile:  profile,
		Settings: flags.settings,
		Options:  flags.options,
	})
	if err != nil {
		return nil, err
	}

	opts := append([]engine.Option{engine.WithEnv(target.Env)}, a.EngineOptions...)
	opts = append(opts, extra...)
	return &session{cfg: cfg, target: target, engine: engine.New(cfg, opts...)}, nil
}

func newBuildCommand(app *App) *cobra.Command {
	var flags targetFlags
	cmd := &cobra.Command{
		Use:   "build <recipe>",
		Short: "Build a recipe and its dependencies",
		Long: `Build a recipe and everything it requires for the target platform.

Recipes whose identity is already in the artifact store are reused without
running any build tool. The recipe reference is name/constraint, e.g.
"zlib/1.3" or "zlib/[>=1.2 <2]"; a bare name selects the highest version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), app, &flags, args[0])
		},
	}
	flags.register(cmd, true)
	return cmd
}

func runBuild(ctx context.Context, app *App, flags *targetFlags, root string) error {
	var built, cached atomic.Int32
	observer := func(e orchestrator.Event) {
		if e.State != recipe.StatePublished {
			return
		}
		if e.Cached {
			cached.Add(1)
		} else {
			built.Add(1)
		}
	}

	s, err := app.newSession(ctx, flags, engine.WithObserver(observer))
	if err != nil {
		return app.fail(err)
	}
	artifacts, err := s.engine.BuildAll(ctx, root, s.target.Platform, s.target.Overrides)
	if err != nil {
		return app.fail(err)
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Build of "+root)+SubtitleStyle.Render(" on "+s.target.Platform.String()))
	for _, a := range artifacts {
		fmt.Fprintf(app.stdout, "  %s %-28s %s %s\n",
			SuccessStyle.Render("✓"), a.Ref(), RefStyle.Render(identity.Short(a.ID)), SubtitleStyle.Render(a.Platform))
	}
	rootArtifact := artifacts[len(artifacts)-1]
	fmt.Fprintf(app.stdout, "\n%d built, %d reused\n", built.Load(), cached.Load())
	fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("package:"), rootArtifact.Root)
	return nil
}

func newPlanCommand(app *App) *cobra.Command {
	var flags targetFlags
	cmd := &cobra.Command{
		Use:   "plan <recipe>",
		Short: "Show the build plan without building",
		Long: `Resolve a recipe's requirements and print every recipe in build order
with its identity, effective options and whether the artifact store
already holds it. Nothing is fetched or built.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.newSession(ctx, &flags)
			if err != nil {
				return app.fail(err)
			}
			steps, err := s.engine.Plan(ctx, args[0], s.target.Platform, s.target.Overrides)
			if err != nil {
				return app.fail(err)
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render("Plan for "+args[0])+SubtitleStyle.Render(" on "+s.target.Platform.String()))
			for i, step := range steps {
				status := WarningStyle.Render("build")
				if step.Cached {
					status = SuccessStyle.Render("cached")
				}
				fmt.Fprintf(app.stdout, "%3d. %-28s %s %-6s %s\n",
					i+1, step.Node.Recipe.Ref(), RefStyle.Render(identity.Short(step.ID)), status, step.Options.String())
			}
			return nil
		},
	}
	flags.register(cmd, false)
	return cmd
}

func newIdentityCommand(app *App) *cobra.Command {
	var flags targetFlags
	cmd := &cobra.Command{
		Use:   "identity <recipe>",
		Short: "Print the package identity of a recipe",
		Long: `Print the identity the recipe would be built and stored under for the
target platform and options. The output is the bare digest, suitable for
scripts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.newSession(ctx, &flags)
			if err != nil {
				return app.fail(err)
			}
			id, err := s.engine.IdentityOf(ctx, args[0], s.target.Platform, s.target.Overrides)
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprintln(app.stdout, id)
			return nil
		},
	}
	flags.register(cmd, false)
	return cmd
}
