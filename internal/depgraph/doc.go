// SPDX-License-Identifier: MPL-2.0

// Package depgraph resolves a root recipe's transitive requirements into a
// deterministic, topologically ordered build plan. Resolution is a pure
// computation over declared recipe metadata: cycles, unknown recipes and
// version conflicts are reported before any build work starts.
package depgraph
