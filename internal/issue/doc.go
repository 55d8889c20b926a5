// SPDX-License-Identifier: MPL-2.0

// Package issue defines the error taxonomy shared by every forge component and
// the actionable, user-facing error type the CLI renders.
//
// Components return their own typed errors (for example depgraph.CycleError)
// which unwrap to one of the sentinel kinds declared here, so callers can
// classify any failure with errors.Is or KindOf.
package issue
