// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/forgepkg/forge/pkg/recipe"
)

// Git clones recipe sources with go-git. No git binary is required for
// network transports.
type Git struct {
	// Depth limits the history fetched for ref checkouts; 0 fetches all of
	// it. Commit-pinned sources always fetch the full history.
	Depth int

	sshAuth  transport.AuthMethod
	httpAuth transport.AuthMethod
}

// NewGit returns a git fetcher using credentials discovered from the
// environment.
func NewGit(depth int) *Git {
	g := &Git{Depth: depth}
	g.setupAuth()
	return g
}

// Fetch implements Fetcher.
func (g *Git) Fetch(ctx context.Context, r *recipe.Recipe, dest string) error {
	if r.Source == nil || r.Source.Git == nil {
		return fmt.Errorf("recipe %s has no git source", r.Ref())
	}
	src := r.Source.Git
	if src.Commit != "" {
		return g.fetchCommit(ctx, src, dest)
	}
	return g.fetchRef(ctx, src, dest)
}

// fetchRef clones a branch or tag, trying the name as a tag and as a branch
// with and without a "v" prefix.
func (g *Git) fetchRef(ctx context.Context, src *recipe.GitSource, dest string) error {
	var lastErr error
	for _, ref := range referenceCandidates(src.Ref) {
		_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
			URL:           src.URL,
			Auth:          g.authFor(src.URL),
			ReferenceName: ref,
			SingleBranch:  true,
			Depth:         g.Depth,
		})
		if err == nil {
			slog.Debug("cloned source", "url", src.URL, "ref", ref.String())
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := clearDir(dest); err != nil {
			return err
		}
	}
	return fmt.Errorf("clone %s at %s: %w", src.URL, src.Ref, lastErr)
}

// fetchCommit clones the repository and checks out the pinned commit.
func (g *Git) fetchCommit(ctx context.Context, src *recipe.GitSource, dest string) error {
	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:        src.URL,
		Auth:       g.authFor(src.URL),
		NoCheckout: true,
	})
	if err != nil {
		return fmt.Errorf("clone %s: %w", src.URL, err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(src.Commit))
	if err != nil {
		return fmt.Errorf("resolve commit %s: %w", src.Commit, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", src.Commit, err)
	}
	slog.Debug("cloned source", "url", src.URL, "commit", hash.String())
	return nil
}

func referenceCandidates(ref string) []plumbing.ReferenceName {
	names := []string{ref}
	if noV, found := strings.CutPrefix(ref, "v"); found {
		names = append(names, noV)
	} else {
		names = append(names, "v"+ref)
	}
	var out []plumbing.ReferenceName
	for _, n := range names {
		out = append(out, plumbing.NewTagReferenceName(n))
	}
	return append(out, plumbing.NewBranchReferenceName(ref))
}

// clearDir empties dir after a failed clone attempt.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// setupAuth discovers an SSH key from ~/.ssh and a token from the
// environment. Public repositories need neither.
func (g *Git) setupAuth() {
	g.sshAuth = trySSHAuth()
	g.httpAuth = tryHTTPAuth(os.Getenv)
}

// authFor returns the credentials matching the URL's transport.
func (g *Git) authFor(url string) transport.AuthMethod {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return nil
	}
	switch ep.Protocol {
	case "ssh":
		return g.sshAuth
	case "http", "https":
		return g.httpAuth
	default:
		return nil
	}
}

func trySSHAuth() transport.AuthMethod {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		path := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if auth, err := ssh.NewPublicKeysFromFile("git", path, ""); err == nil {
			return auth
		}
	}
	return nil
}

func tryHTTPAuth(getenv func(string) string) transport.AuthMethod {
	for _, c := range []struct{ env, user string }{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	} {
		if token := getenv(c.env); token != "" {
			return &http.BasicAuth{Username: c.user, Password: token}
		}
	}
	return nil
}
