// SPDX-License-Identifier: MPL-2.0

package recipe

// Phase is one step of a recipe build.
type Phase string

const (
	PhaseSource      Phase = "source"
	PhaseConfigure   Phase = "configure"
	PhaseBuild       Phase = "build"
	PhasePackage     Phase = "package"
	PhasePackageInfo Phase = "package_info"

	// PhasePublish stores the packaged artifact. It follows every recipe
	// phase and is not part of Phases.
	PhasePublish Phase = "publish"
)

// Phases returns the phase sequence every recipe follows.
func (r *Recipe) Phases() []Phase {
	return []Phase{PhaseSource, PhaseConfigure, PhaseBuild, PhasePackage, PhasePackageInfo}
}

// IsNoop reports whether the recipe implements phase as a no-op. Header-only
// recipes and recipes without a build system skip configure and build; their
// package phase only copies files.
func (r *Recipe) IsNoop(phase Phase) bool {
	switch phase {
	case PhaseSource:
		return r.Source == nil
	case PhaseConfigure:
		switch r.BuildSystem {
		case BuildCommands:
			return r.Commands == nil || len(r.Commands.Configure) == 0
		case BuildNone:
			return true
		default:
			return r.IsHeaderOnly()
		}
	case PhaseBuild:
		switch r.BuildSystem {
		case BuildCommands:
			return r.Commands == nil || len(r.Commands.Build) == 0
		case BuildNone:
			return true
		default:
			return r.IsHeaderOnly()
		}
	default:
		return false
	}
}

// StateAfter returns the state a build reaches when phase completes.
func StateAfter(phase Phase) State {
	switch phase {
	case PhaseSource:
		return StateSourceFetched
	case PhaseConfigure:
		return StateConfigured
	case PhaseBuild:
		return StateBuilt
	case PhasePackage, PhasePackageInfo:
		return StatePackaged
	case PhasePublish:
		return StatePublished
	default:
		return StateFailed
	}
}
