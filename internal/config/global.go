// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride allows tests to override the config directory. xdg reads
// the environment once at startup, so setting XDG_CONFIG_HOME in a test
// has no effect.
var configDirOverride string

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride sets a custom config directory path.
// This is primarily intended for testing.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
