// SPDX-License-Identifier: MPL-2.0

// Package platform describes the target a recipe is built for and the
// options a recipe exposes on that target.
//
// A Descriptor captures the axes that affect binary compatibility: operating
// system, compiler, build type and CPU architecture. Two equal descriptors are
// assumed to be ABI compatible.
//
// Recipes declare an OptionSchema. Resolving a schema against a descriptor
// applies defaults and explicit values, then prunes every option whose
// removal conditions match, so options that have no meaning on a platform
// (fPIC on Windows, fPIC of a shared library) never reach the package identity.
package platform
