// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

type (
	// Profile is a named set of platform settings, option assignments and
	// toolchain environment, loaded from an HCL file:
	//
	//	settings {
	//	  os               = "linux"
	//	  arch             = "x86_64"
	//	  build_type       = "release"
	//	  compiler         = "gcc"
	//	  compiler_version = "13"
	//	}
	//	options = { "*:shared" = false, "geohash:fPIC" = true }
	//	env     = { CC = "gcc-13" }
	Profile struct {
		// Settings holds the setting assignments in Descriptor.With form.
		Settings map[string]string
		Options  Overrides
		Env      map[string]string
	}

	hclProfile struct {
		Settings *hclSettings      `hcl:"settings,block"`
		Options  hcl.Expression    `hcl:"options,optional"`
		Env      map[string]string `hcl:"env,optional"`
	}

	hclSettings struct {
		OS              *string `hcl:"os"`
		Arch            *string `hcl:"arch"`
		BuildType       *string `hcl:"build_type"`
		Compiler        *string `hcl:"compiler"`
		CompilerVersion *string `hcl:"compiler_version"`
	}
)

// LoadProfile parses the HCL profile at path.
func LoadProfile(path string) (*Profile, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(path, src)
}

// ParseProfile parses HCL profile source. filename is used in diagnostics.
func ParseProfile(filename string, src []byte) (*Profile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse profile %s: %w", filename, diags)
	}

	var raw hclProfile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode profile %s: %w", filename, diags)
	}

	p := &Profile{Settings: map[string]string{}, Env: raw.Env}
	if p.Env == nil {
		p.Env = map[string]string{}
	}
	if s := raw.Settings; s != nil {
		set := func(key string, v *string) {
			if v != nil {
				p.Settings[key] = *v
			}
		}
		set(SettingOS, s.OS)
		set(SettingArch, s.Arch)
		set(SettingBuildType, s.BuildType)
		set(SettingCompiler, s.Compiler)
		set(SettingCompilerVersion, s.CompilerVersion)
	}

	if raw.Options != nil {
		overrides, err := decodeOptionAssignments(raw.Options)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", filename, err)
		}
		p.Options = overrides
	}
	return p, nil
}

// decodeOptionAssignments turns an object of "[pattern:]option" keys into
// overrides. Values may be strings, bools or numbers.
func decodeOptionAssignments(expr hcl.Expression) (Overrides, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("options: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("options must be an object, got %s", ty.FriendlyName())
	}

	entries := val.AsValueMap()
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	overrides := make(Overrides, 0, len(keys))
	for _, k := range keys {
		s, err := ctyScalarString(entries[k])
		if err != nil {
			return nil, fmt.Errorf("options[%q]: %w", k, err)
		}
		o, err := ParseOverride(k + "=" + s)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, nil
}

func ctyScalarString(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", fmt.Errorf("value must be set")
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Bool:
		if v.True() {
			return True, nil
		}
		return False, nil
	case cty.Number:
		return v.AsBigFloat().Text('f', -1), nil
	default:
		return "", fmt.Errorf("unsupported value of type %s", v.Type().FriendlyName())
	}
}

// Apply returns base with the profile's settings applied.
func (p *Profile) Apply(base Descriptor) (Descriptor, error) {
	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := base
	for _, k := range keys {
		var err error
		if d, err = d.With(k, p.Settings[k]); err != nil {
			return base, err
		}
	}
	return d, nil
}
