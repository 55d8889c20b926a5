// SPDX-License-Identifier: MPL-2.0

// Package semver parses recipe versions and the version constraints recipes
// place on their requirements. It only selects the highest version that
// satisfies a conjunction of constraints; it is not a general resolver.
package semver
