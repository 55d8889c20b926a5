// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgepkg/forge/internal/config"
	"github.com/forgepkg/forge/internal/issue"
)

// settableKeys lists the keys accepted by `forge config set`.
var settableKeys = []string{
	"cache_dir", "workspace_dir", "parallelism", "jobs", "keep_workspaces",
	"profile", "cmake_command", "log.level", "git.depth",
}

// newConfigCommand creates the `forge config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage forge configuration",
		Long: `Manage forge configuration.

Configuration is read from config.cue in the forge configuration directory
($XDG_CONFIG_HOME/forge), then from ./config.cue. Every key can be
overridden with a FORGE_ environment variable, e.g. FORGE_CACHE_DIR or
FORGE_LOG_LEVEL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, created, err := config.CreateDefaultConfig("")
			if err != nil {
				return app.fail(err)
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s %s already exists\n", WarningStyle.Render("!"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, path, err := config.Resolve(cmd.Context(), app.loadOptions())
			if err != nil {
				return app.fail(err)
			}
			if path == "" {
				path = defaultConfigPath()
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a configuration value.\n\nValid keys: " + strings.Join(settableKeys, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd.Context(), app, args[0], args[1])
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func defaultConfigPath() string {
	return filepath.Join(config.ConfigDir(), config.ConfigFileName+"."+config.ConfigFileExt)
}

func showConfig(ctx context.Context, app *App) error {
	cfg, path, err := config.Resolve(ctx, app.loadOptions())
	if err != nil {
		return app.fail(err)
	}

	out := app.stdout
	keyStyle := RefStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)
	if path != "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s:\n", keyStyle.Render("recipe_paths"))
	for _, p := range cfg.RecipePaths {
		fmt.Fprintf(out, "  - %s\n", valueStyle.Render(p))
	}
	value := func(key string, v any) {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render(key), valueStyle.Render(fmt.Sprint(v)))
	}
	value("cache_dir", cfg.CacheDir)
	value("workspace_dir", cfg.WorkspaceDir)
	value("parallelism", cfg.Parallelism)
	if cfg.Jobs == 0 {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("jobs"), SubtitleStyle.Render("(build tool default)"))
	} else {
		value("jobs", cfg.Jobs)
	}
	value("keep_workspaces", cfg.KeepWorkspaces)
	if cfg.Profile == "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("profile"), SubtitleStyle.Render("(host platform)"))
	} else {
		value("profile", cfg.Profile)
	}
	value("cmake_command", cfg.CMakeCommand)
	value("log.level", cfg.Log.Level)
	value("git.depth", cfg.Git.Depth)
	return nil
}

func setConfigValue(ctx context.Context, app *App, key, value string) error {
	cfg, path, err := config.Resolve(ctx, app.loadOptions())
	if err != nil {
		return app.fail(err)
	}

	if err := applyConfigValue(cfg, key, value); err != nil {
		return app.fail(issue.NewErrorContext().
			WithOperation("set configuration value").
			WithResource(key).
			WithSuggestion("Valid keys: " + strings.Join(settableKeys, ", ")).
			Wrap(err).
			Build())
	}
	if err := config.Save(cfg, path); err != nil {
		return app.fail(fmt.Errorf("failed to save config: %w", err))
	}

	fmt.Fprintf(app.stdout, "%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}

func applyConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch key {
	case "cache_dir":
		cfg.CacheDir = value
	case "workspace_dir":
		cfg.WorkspaceDir = value
	case "parallelism":
		cfg.Parallelism, err = strconv.Atoi(value)
	case "jobs":
		cfg.Jobs, err = strconv.Atoi(value)
	case "keep_workspaces":
		cfg.KeepWorkspaces, err = strconv.ParseBool(value)
	case "profile":
		cfg.Profile = value
	case "cmake_command":
		cfg.CMakeCommand = value
	case "log.level":
		cfg.Log.Level = config.LogLevel(value)
	case "git.depth":
		cfg.Git.Depth, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return cfg.Validate()
}
