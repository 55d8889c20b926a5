// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/forgepkg/forge/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand returns the forge command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "A recipe-driven native library build orchestrator",
		Long: TitleStyle.Render("forge") + SubtitleStyle.Render(" - a recipe-driven native library build orchestrator") + `

forge reads recipe.cue declarations, resolves their requirements into a
build plan and builds every library for a target platform. Each build is
keyed by a package identity derived from the recipe, the platform, the
effective options and the identities of its dependencies, so a binary
compatible artifact is built once and reused.

` + SubtitleStyle.Render("Examples:") + `
  forge plan app/1.0                      Show the build plan and cache status
  forge build app/1.0 -o shared=true      Build app and its dependencies
  forge identity zlib -s build_type=debug Print the identity of a debug zlib
  forge recipe validate recipe.cue        Check a recipe declaration
  forge cache list                        List stored artifacts`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := config.LogLevelInfo
			if cfg, err := app.loadConfig(cmd.Context()); err == nil {
				level = cfg.Log.Level
			}
			setupLogging(app.stderr, level, app.verbose)
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/forge/config.cue)")

	rootCmd.AddCommand(newBuildCommand(app))
	rootCmd.AddCommand(newPlanCommand(app))
	rootCmd.AddCommand(newIdentityCommand(app))
	rootCmd.AddCommand(newRecipeCommand(app))
	rootCmd.AddCommand(newCacheCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the forge command line. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailure)
	}
}

// handleError prints errors cobra and fang produce themselves. Command
// failures were already rendered by the command and arrive as ExitError.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
