// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes CUE documents against embedded schemas.
//
// Recipes and the forge configuration file share the same flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with the schema's root definition
//  3. Validate and decode into a Go struct
//
// Errors carry the file name and the JSON-style path of the offending field,
// e.g. "recipe.cue: options[1].default: conflicting values".
//
//	//go:embed recipe_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Recipe](schemaBytes, data, "#Recipe",
//	    cueutil.WithFilename("zlib/recipe.cue"))
package cueutil
