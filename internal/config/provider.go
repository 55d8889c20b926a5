// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions selects where forge reads config.cue from.
type LoadOptions struct {
	// ConfigFilePath is the --config flag value; when set it is the only
	// file read.
	ConfigFilePath string
	// ConfigDirPath replaces $XDG_CONFIG_HOME/forge in the lookup.
	ConfigDirPath string
}

// Provider supplies the commands with their Config. Tests swap in a fixed
// Config instead of reading files and FORGE_ variables.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type fileProvider struct{}

// NewProvider returns the Provider backed by config.cue and the environment.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load merges defaults, config.cue and FORGE_ variables and drops the path
// the file was read from.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
