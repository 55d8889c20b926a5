// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgepkg/forge/internal/engine"
	"github.com/forgepkg/forge/internal/identity"
	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/internal/store"
)

func newCacheCommand(app *App) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the artifact store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := app.openStore(ctx)
			if err != nil {
				return app.fail(err)
			}
			artifacts, err := st.List(ctx)
			if err != nil {
				return app.fail(err)
			}
			if len(artifacts) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("store is empty"))
				return nil
			}
			for _, a := range artifacts {
				fmt.Fprintf(app.stdout, "%s %-28s %s\n",
					RefStyle.Render(identity.Short(a.ID)), a.Ref(), SubtitleStyle.Render(a.Platform))
			}
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "rm <id>...",
		Short: "Remove artifacts by identity or unique identity prefix",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.openStore(ctx)
			if err != nil {
				return app.fail(err)
			}
			for _, arg := range args {
				id, err := matchIdentity(ctx, st, arg)
				if err != nil {
					return app.fail(err)
				}
				if err := st.Evict(ctx, id); err != nil {
					return app.fail(err)
				}
				fmt.Fprintf(app.stdout, "%s removed %s\n", SuccessStyle.Render("✓"), id)
			}
			return nil
		},
	})

	return cacheCmd
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return engine.New(cfg, a.EngineOptions...).Store(), nil
}

// matchIdentity resolves a full identity or a hex prefix of one to the
// single stored identity it names.
func matchIdentity(ctx context.Context, st store.Store, arg string) (identity.ID, error) {
	prefix := strings.TrimPrefix(arg, "sha256:")
	artifacts, err := st.List(ctx)
	if err != nil {
		return "", err
	}

	var matches []identity.ID
	for _, a := range artifacts {
		if strings.HasPrefix(a.ID.Encoded(), prefix) {
			matches = append(matches, a.ID)
		}
	}
	switch {
	case prefix == "" || len(matches) == 0:
		return "", issue.NewErrorContext().
			WithOperation("remove artifact").
			WithResource(arg).
			WithSuggestion("Run 'forge cache list' to see the stored identities").
			Wrap(store.ErrNotFound).
			Build()
	case len(matches) > 1:
		return "", issue.NewErrorContext().
			WithOperation("remove artifact").
			WithResource(arg).
			WithSuggestion("Use a longer identity prefix").
			Wrap(fmt.Errorf("prefix matches %d artifacts", len(matches))).
			Build()
	}
	return matches[0], nil
}
