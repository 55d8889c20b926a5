// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgepkg/forge/internal/index"
	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/pkg/recipe"
	"github.com/forgepkg/forge/pkg/semver"
)

func newRecipeCommand(app *App) *cobra.Command {
	recipeCmd := &cobra.Command{
		Use:   "recipe",
		Short: "Inspect and validate recipes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	recipeCmd.AddCommand(&cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate recipe declarations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return validateRecipes(app, args)
		},
	})

	var flags targetFlags
	showCmd := &cobra.Command{
		Use:   "show <recipe>",
		Short: "Show a recipe and its options on the target platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRecipe(cmd.Context(), app, &flags, args[0])
		},
	}
	flags.register(showCmd, false)
	recipeCmd.AddCommand(showCmd)

	recipeCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the recipes found in the recipe paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listRecipes(cmd.Context(), app)
		},
	})

	return recipeCmd
}

func validateRecipes(app *App, paths []string) error {
	var errs []error
	for _, path := range paths {
		r, err := recipe.Parse(path)
		if err != nil {
			fmt.Fprintf(app.stdout, "%s %s\n", ErrorStyle.Render("✗"), path)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(app.stdout, "%s %s: %s\n", SuccessStyle.Render("✓"), path, RefStyle.Render(r.Ref()))
	}
	if len(errs) == 0 {
		return nil
	}
	return app.fail(issue.NewErrorContext().
		WithOperation("validate recipes").
		WithSuggestion("Fix the reported fields; the schema is described in 'forge recipe --help'").
		Wrap(errors.Join(errs...)).
		Build())
}

func showRecipe(ctx context.Context, app *App, flags *targetFlags, ref string) error {
	s, err := app.newSession(ctx, flags)
	if err != nil {
		return app.fail(err)
	}
	plan, err := s.engine.Resolve(ctx, ref)
	if err != nil {
		return app.fail(err)
	}
	node := plan.RootNode()
	r := node.Recipe

	values, err := s.target.Overrides.For(r.Name, true, r.Options)
	if err != nil {
		return app.fail(err)
	}
	opts, err := r.ResolveOptions(s.target.Platform, values)
	if err != nil {
		return app.fail(err)
	}

	out := app.stdout
	fmt.Fprintln(out, TitleStyle.Render(r.Ref()))
	if r.Description != "" {
		fmt.Fprintln(out, SubtitleStyle.Render(r.Description))
	}
	fmt.Fprintln(out)
	field := func(name, value string) {
		fmt.Fprintf(out, "%-14s %s\n", RefStyle.Render(name+":"), value)
	}
	if r.Path != "" {
		field("file", r.Path)
	}
	field("kind", string(r.Kind))
	field("build system", string(r.BuildSystem))
	if fp := r.SourceFingerprint(); fp != "" {
		field("source", fp)
	}
	if r.License != "" {
		field("license", r.License)
	}
	field("revision", r.Revision().String())

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s\n", RefStyle.Render("requires:"))
	if len(node.Requires) == 0 {
		fmt.Fprintf(out, "  %s\n", SubtitleStyle.Render("(none)"))
	}
	for _, req := range r.Requirements() {
		selected := plan.Node(req.Name)
		fmt.Fprintf(out, "  - %s -> %s\n", req.String(), selected.Recipe.Ref())
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %s\n", RefStyle.Render("options:"), SubtitleStyle.Render("on "+s.target.Platform.String()))
	if len(r.Options) == 0 {
		fmt.Fprintf(out, "  %s\n", SubtitleStyle.Render("(none)"))
	}
	for _, decl := range r.Options {
		if opts.IsPruned(decl.Name) {
			fmt.Fprintf(out, "  %s %s\n", decl.Name, WarningStyle.Render("(removed on this platform)"))
			continue
		}
		value, _ := opts.Get(decl.Name)
		fmt.Fprintf(out, "  %s=%s %s\n", decl.Name, value,
			SubtitleStyle.Render("["+strings.Join(decl.Values, "|")+"]"))
	}
	return nil
}

func listRecipes(ctx context.Context, app *App) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return app.fail(err)
	}
	idx := index.NewLocal(cfg.RecipePaths...)
	names, err := idx.Names(ctx)
	if err != nil {
		return app.fail(err)
	}
	for _, name := range names {
		versions, err := idx.Versions(ctx, name)
		if err != nil {
			return app.fail(err)
		}
		slices.SortFunc(versions, func(a, b semver.Version) int { return b.Compare(a) })
		rendered := make([]string, len(versions))
		for i, v := range versions {
			rendered[i] = v.String()
		}
		fmt.Fprintf(app.stdout, "%-28s %s\n", RefStyle.Render(name), strings.Join(rendered, " "))
	}

	problems, err := idx.Problems(ctx)
	if err != nil {
		return app.fail(err)
	}
	for _, p := range problems {
		fmt.Fprintf(app.stderr, "%s %s: %v\n", WarningStyle.Render("skipped"), p.Path, p.Err)
	}
	return nil
}
