// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
)

// Log levels accepted by log.level.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

type (
	// LogLevel is the minimum level of emitted log records.
	LogLevel string

	// Config holds the application configuration.
	Config struct {
		// RecipePaths are the directories scanned for recipes, in priority order.
		RecipePaths []string `json:"recipe_paths" mapstructure:"recipe_paths"`
		// CacheDir is the artifact store root.
		CacheDir string `json:"cache_dir" mapstructure:"cache_dir"`
		// WorkspaceDir is the root of the per-build workspaces.
		WorkspaceDir string `json:"workspace_dir" mapstructure:"workspace_dir"`
		// Parallelism bounds the number of recipes built concurrently.
		Parallelism int `json:"parallelism" mapstructure:"parallelism"`
		// Jobs is passed to build tools; 0 uses the number of CPUs.
		Jobs int `json:"jobs" mapstructure:"jobs"`
		// KeepWorkspaces leaves workspaces in place after each build.
		KeepWorkspaces bool `json:"keep_workspaces" mapstructure:"keep_workspaces"`
		// Profile is an HCL platform profile applied before command line settings.
		Profile string `json:"profile" mapstructure:"profile"`
		// CMakeCommand is the executable used for cmake recipes.
		CMakeCommand string    `json:"cmake_command" mapstructure:"cmake_command"`
		Log          LogConfig `json:"log" mapstructure:"log"`
		Git          GitConfig `json:"git" mapstructure:"git"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// GitConfig configures the git source fetcher.
	GitConfig struct {
		// Depth is the clone depth for ref checkouts; 0 fetches full history.
		Depth int `json:"depth" mapstructure:"depth"`
	}

	// InvalidConfigError collects the field errors of a Config. It wraps
	// ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the default configuration. Directories default to
// the user's XDG cache directory.
func DefaultConfig() *Config {
	return &Config{
		RecipePaths:  []string{"recipes"},
		CacheDir:     filepath.Join(xdg.CacheHome, AppName, "store"),
		WorkspaceDir: filepath.Join(xdg.CacheHome, AppName, "work"),
		Parallelism:  max(1, runtime.NumCPU()/2),
		CMakeCommand: "cmake",
		Log:          LogConfig{Level: LogLevelInfo},
		Git:          GitConfig{Depth: 1},
	}
}

// IsValid reports whether the level is one of the known values.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Validate checks the values environment overrides can bypass the schema with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.RecipePaths) == 0 {
		errs = append(errs, errors.New("recipe_paths must not be empty"))
	}
	for i, p := range c.RecipePaths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("recipe_paths[%d] is empty", i))
		}
	}
	if strings.TrimSpace(c.CacheDir) == "" {
		errs = append(errs, errors.New("cache_dir must not be empty"))
	}
	if strings.TrimSpace(c.WorkspaceDir) == "" {
		errs = append(errs, errors.New("workspace_dir must not be empty"))
	}
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism))
	}
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs must not be negative, got %d", c.Jobs))
	}
	if c.Git.Depth < 0 {
		errs = append(errs, fmt.Errorf("git.depth must not be negative, got %d", c.Git.Depth))
	}
	if !c.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
