// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/forge/config.cue (or the
// platform equivalent reported by xdg), from ./config.cue, or from an
// explicit file. Every key can be overridden with a FORGE_ environment
// variable, e.g. FORGE_PARALLELISM=4 or FORGE_LOG_LEVEL=debug.
//
// Configuration files are validated against the embedded #Config schema
// (config_schema.cue) before they are merged over the defaults.
package config
