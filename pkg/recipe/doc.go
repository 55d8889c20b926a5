// SPDX-License-Identifier: MPL-2.0

// Package recipe parses recipe declarations and models the lifecycle of a
// recipe build.
//
// A recipe is a CUE file validated against the embedded #Recipe schema:
//
//	name:    "geohash"
//	version: "1.0"
//	source: git: {url: "https://example.com/geohash.git", ref: "v1.0"}
//	requires: ["zlib/[>=1.2 <2]"]
//	options: [
//		{name: "shared", default: "false"},
//		{name: "fPIC", default: "true", remove_when: [{os: ["windows"]}, {option: shared: "true"}]},
//	]
//	package_info: libs: ["geohash"]
//
// Every build walks the phases source, configure, build, package and
// package_info; recipes may implement some of them as no-ops. The build state
// machine is Unresolved, SourceFetched, Configured, Built, Packaged,
// Published, with Failed reachable from every non-terminal state.
package recipe
