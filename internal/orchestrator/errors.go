// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"fmt"

	"github.com/forgepkg/forge/pkg/recipe"
)

// BuildError reports the failure of one recipe build. It names the recipe,
// the phase that failed and the platform it was built for.
type BuildError struct {
	Recipe   string
	Version  string
	Phase    recipe.Phase
	Platform string
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s/%s failed in %s phase on %s: %v", e.Recipe, e.Version, e.Phase, e.Platform, e.Err)
}

// Unwrap returns the phase error, so errors.Is reports its taxonomy.
func (e *BuildError) Unwrap() error {
	return e.Err
}
