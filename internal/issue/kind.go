// SPDX-License-Identifier: MPL-2.0

package issue

import "errors"

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnknownRecipe
	KindCycleDetected
	KindVersionConflict
	KindConfiguration
	KindFetchFailure
	KindToolchainFailure
	KindCacheCorruption
	KindCacheWriteConflict
)

var (
	// ErrUnknownRecipe is returned when the index has no recipe for a name,
	// or no version of it satisfies a single requirement.
	ErrUnknownRecipe = errors.New("unknown recipe")
	// ErrCycleDetected is returned when recipe requirements form a cycle.
	ErrCycleDetected = errors.New("dependency cycle detected")
	// ErrVersionConflict is returned when no single version satisfies every
	// constraint placed on a dependency.
	ErrVersionConflict = errors.New("version conflict")
	// ErrConfiguration covers invalid option schemas, invalid option values and
	// access to pruned options.
	ErrConfiguration = errors.New("configuration error")
	// ErrFetchFailure is returned when recipe sources cannot be materialized.
	ErrFetchFailure = errors.New("source fetch failed")
	// ErrToolchainFailure is returned when a configure, build or package
	// command exits unsuccessfully.
	ErrToolchainFailure = errors.New("toolchain failure")
	// ErrCacheCorruption is returned when a stored artifact fails its
	// integrity check.
	ErrCacheCorruption = errors.New("cache corruption")
	// ErrCacheWriteConflict is returned when an artifact for the same
	// identity was published by another builder first.
	ErrCacheWriteConflict = errors.New("cache write conflict")
)

var kindSentinels = []struct {
	kind Kind
	err  error
}{
	{KindUnknownRecipe, ErrUnknownRecipe},
	{KindCycleDetected, ErrCycleDetected},
	{KindVersionConflict, ErrVersionConflict},
	{KindConfiguration, ErrConfiguration},
	{KindFetchFailure, ErrFetchFailure},
	{KindToolchainFailure, ErrToolchainFailure},
	{KindCacheCorruption, ErrCacheCorruption},
	{KindCacheWriteConflict, ErrCacheWriteConflict},
}

// KindOf classifies err by the first sentinel found in its chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return KindUnknown
}

// String returns the kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindUnknownRecipe:
		return "UnknownRecipe"
	case KindCycleDetected:
		return "CycleDetected"
	case KindVersionConflict:
		return "VersionConflict"
	case KindConfiguration:
		return "ConfigurationError"
	case KindFetchFailure:
		return "FetchFailure"
	case KindToolchainFailure:
		return "ToolchainFailure"
	case KindCacheCorruption:
		return "CacheCorruption"
	case KindCacheWriteConflict:
		return "CacheWriteConflict"
	default:
		return "Unknown"
	}
}

// IsGraphError reports whether err is a resolution failure that must be
// reported before any build work starts.
func IsGraphError(err error) bool {
	switch KindOf(err) {
	case KindUnknownRecipe, KindCycleDetected, KindVersionConflict:
		return true
	default:
		return false
	}
}
