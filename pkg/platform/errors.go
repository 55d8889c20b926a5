// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"fmt"

	"github.com/forgepkg/forge/internal/issue"
)

// ConfigurationError reports an invalid platform setting, a malformed option
// schema, an invalid option value, or access to an unknown or pruned option.
type ConfigurationError struct {
	// Setting is set for descriptor errors.
	Setting string
	// Option is set for option errors.
	Option string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	subject := "option " + e.Option
	if e.Setting != "" {
		subject = "setting " + e.Setting
	}
	if e.Value != "" {
		return fmt.Sprintf("%s=%s: %s", subject, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: %s", subject, e.Reason)
}

// Unwrap returns issue.ErrConfiguration.
func (e *ConfigurationError) Unwrap() error {
	return issue.ErrConfiguration
}
