// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type (
	// MarkdownMsg is markdown help text for one error kind.
	MarkdownMsg string

	// Issue is the long-form help shown for an error kind.
	Issue struct {
		kind  Kind
		mdMsg MarkdownMsg
	}
)

var (
	render = glamour.Render

	issues = map[Kind]*Issue{
		KindUnknownRecipe: {
			kind: KindUnknownRecipe,
			mdMsg: `
# Unknown recipe

No recipe matched a requirement. Recipes are discovered from every
` + "`recipe.cue`" + ` below the configured recipe paths.

## Things you can try
- List the configured paths:
~~~
$ forge config show
~~~
- Check that the requested version satisfies the constraint, e.g. ` + "`zlib/[>=1.2 <2]`" + `.`,
		},
		KindCycleDetected: {
			kind: KindCycleDetected,
			mdMsg: `
# Dependency cycle

Recipe requirements must form a directed acyclic graph. The error names every
recipe on the cycle; remove one of those requirements.`,
		},
		KindVersionConflict: {
			kind: KindVersionConflict,
			mdMsg: `
# Version conflict

Two or more recipes constrain the same dependency and no available version
satisfies all of them. forge never picks a version silently.

## Things you can try
- Inspect the plan and the constraints each consumer imposes:
~~~
$ forge plan <recipe>
~~~
- Relax one of the constraints.`,
		},
		KindConfiguration: {
			kind: KindConfiguration,
			mdMsg: `
# Configuration error

An option is unknown, has a value outside its declared set, or was pruned for
the target platform (for example ` + "`fPIC`" + ` on Windows).

## Things you can try
~~~
$ forge recipe show <recipe> -s os=linux
~~~`,
		},
		KindFetchFailure: {
			kind: KindFetchFailure,
			mdMsg: `
# Source fetch failed

The recipe source could not be cloned, copied or verified. When a recipe
declares ` + "`sha256`" + `, the fetched tree must hash to that value.`,
		},
		KindToolchainFailure: {
			kind: KindToolchainFailure,
			mdMsg: `
# Toolchain failure

A configure, build or package command exited with a non-zero status. The
captured output is included in the error.

## Things you can try
- Keep the workspace and inspect it:
~~~
$ forge build <recipe> --keep-workspaces
~~~`,
		},
		KindCacheCorruption: {
			kind: KindCacheCorruption,
			mdMsg: `
# Cache corruption

A stored artifact no longer matches its recorded checksum. Builds evict such
entries automatically and rebuild them.`,
		},
	}
)

// Kind returns the error kind this issue documents.
func (i *Issue) Kind() Kind {
	return i.kind
}

// MarkdownMsg returns the raw markdown.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// Render renders the markdown with the given glamour style ("dark", "light", "notty").
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

// Get returns the issue documenting kind, or nil.
func Get(kind Kind) *Issue {
	return issues[kind]
}

// ForError returns the issue documenting the kind of err, or nil.
func ForError(err error) *Issue {
	return issues[KindOf(err)]
}

// Kinds returns every documented kind in ascending order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(issues))
	for k := range issues {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
