// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"github.com/forgepkg/forge/pkg/platform"
)

type (
	// TargetRequest collects the sources a build target is assembled from.
	// Later sources win: Base, then the profile, then Settings and Options.
	TargetRequest struct {
		Base platform.Descriptor
		// Profile is the path of an HCL profile, or empty.
		Profile string
		// Settings are "key=value" platform assignments.
		Settings []string
		// Options are "[pattern:]option=value" assignments.
		Options []string
	}

	// Target is a validated platform with its option overrides and the
	// toolchain environment contributed by the profile.
	Target struct {
		Platform  platform.Descriptor
		Overrides platform.Overrides
		Env       map[string]string
	}
)

// ResolveTarget applies req's sources in order and validates the result.
func ResolveTarget(req TargetRequest) (*Target, error) {
	t := &Target{Platform: req.Base, Env: map[string]string{}}

	if req.Profile != "" {
		prof, err := platform.LoadProfile(req.Profile)
		if err != nil {
			return nil, err
		}
		if t.Platform, err = prof.Apply(t.Platform); err != nil {
			return nil, err
		}
		t.Overrides = append(t.Overrides, prof.Options...)
		for k, v := range prof.Env {
			t.Env[k] = v
		}
	}

	var err error
	if t.Platform, err = t.Platform.ApplySettings(req.Settings); err != nil {
		return nil, err
	}
	if err := t.Platform.Validate(); err != nil {
		return nil, err
	}

	cli, err := platform.ParseOverrides(req.Options)
	if err != nil {
		return nil, err
	}
	t.Overrides = append(t.Overrides, cli...)
	return t, nil
}
