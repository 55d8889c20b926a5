// SPDX-License-Identifier: MPL-2.0

// Package testutil provides fixtures and fakes shared by forge tests: recipe
// builders, a recording toolchain runner, a fake source fetcher and
// filesystem helpers that fail the test on error.
package testutil
