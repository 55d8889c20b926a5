// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"fmt"
	"strings"
)

type (
	// OS is a target operating system.
	OS string

	// Arch is a target CPU architecture.
	Arch string

	// BuildType is a build configuration.
	BuildType string

	// Compiler identifies the compiler family and its version.
	Compiler struct {
		Name    string `json:"name" toml:"name"`
		Version string `json:"version,omitempty" toml:"version,omitempty"`
	}

	// Descriptor is an immutable snapshot of the binary-compatibility axes of
	// one build invocation. It is a value type: methods that "modify" it return
	// a copy.
	Descriptor struct {
		OS        OS        `json:"os" toml:"os"`
		Compiler  Compiler  `json:"compiler" toml:"compiler"`
		BuildType BuildType `json:"build_type" toml:"build_type"`
		Arch      Arch      `json:"arch" toml:"arch"`
	}
)

const (
	Linux   OS = "linux"
	Windows OS = "windows"
	MacOS   OS = "macos"
	FreeBSD OS = "freebsd"

	X86_64 Arch = "x86_64"
	X86    Arch = "x86"
	ARMv8  Arch = "armv8"
	ARMv7  Arch = "armv7"

	Debug          BuildType = "debug"
	Release        BuildType = "release"
	RelWithDebInfo BuildType = "relwithdebinfo"
	MinSizeRel     BuildType = "minsizerel"
)

// Compiler family names.
const (
	GCC        = "gcc"
	Clang      = "clang"
	AppleClang = "apple-clang"
	MSVC       = "msvc"
)

var (
	knownOS         = []OS{Linux, Windows, MacOS, FreeBSD}
	knownArch       = []Arch{X86_64, X86, ARMv8, ARMv7}
	knownBuildTypes = []BuildType{Debug, Release, RelWithDebInfo, MinSizeRel}
	knownCompilers  = []string{GCC, Clang, AppleClang, MSVC}
)

// Setting keys accepted by Descriptor.With.
const (
	SettingOS              = "os"
	SettingArch            = "arch"
	SettingBuildType       = "build_type"
	SettingCompiler        = "compiler"
	SettingCompilerVersion = "compiler_version"
)

// IsValid reports whether the OS is one of the supported values.
func (o OS) IsValid() bool { return contains(knownOS, o) }

// IsValid reports whether the Arch is one of the supported values.
func (a Arch) IsValid() bool { return contains(knownArch, a) }

// IsValid reports whether the BuildType is one of the supported values.
func (b BuildType) IsValid() bool { return contains(knownBuildTypes, b) }

// CMakeName returns the CMAKE_BUILD_TYPE spelling ("Release", "RelWithDebInfo").
func (b BuildType) CMakeName() string {
	switch b {
	case Debug:
		return "Debug"
	case Release:
		return "Release"
	case RelWithDebInfo:
		return "RelWithDebInfo"
	case MinSizeRel:
		return "MinSizeRel"
	default:
		return string(b)
	}
}

func (c Compiler) String() string {
	if c.Version == "" {
		return c.Name
	}
	return c.Name + "-" + c.Version
}

// Validate reports unknown or missing axis values as a ConfigurationError.
func (d Descriptor) Validate() error {
	if !d.OS.IsValid() {
		return &ConfigurationError{Setting: SettingOS, Value: string(d.OS), Reason: fmt.Sprintf("must be one of %v", knownOS)}
	}
	if !d.Arch.IsValid() {
		return &ConfigurationError{Setting: SettingArch, Value: string(d.Arch), Reason: fmt.Sprintf("must be one of %v", knownArch)}
	}
	if !d.BuildType.IsValid() {
		return &ConfigurationError{Setting: SettingBuildType, Value: string(d.BuildType), Reason: fmt.Sprintf("must be one of %v", knownBuildTypes)}
	}
	if !contains(knownCompilers, d.Compiler.Name) {
		return &ConfigurationError{Setting: SettingCompiler, Value: d.Compiler.Name, Reason: fmt.Sprintf("must be one of %v", knownCompilers)}
	}
	return nil
}

// String renders the descriptor as os/compiler-version/build_type/arch.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", d.OS, d.Compiler, d.BuildType, d.Arch)
}

// With returns a copy of d with one setting replaced.
func (d Descriptor) With(key, value string) (Descriptor, error) {
	value = strings.TrimSpace(value)
	switch key {
	case SettingOS:
		d.OS = OS(strings.ToLower(value))
	case SettingArch:
		d.Arch = Arch(strings.ToLower(value))
	case SettingBuildType:
		d.BuildType = BuildType(strings.ToLower(value))
	case SettingCompiler:
		d.Compiler.Name = strings.ToLower(value)
	case SettingCompilerVersion:
		d.Compiler.Version = value
	default:
		return d, &ConfigurationError{Setting: key, Value: value, Reason: "unknown setting"}
	}
	return d, nil
}

// ApplySettings applies "key=value" assignments in order.
func (d Descriptor) ApplySettings(assignments []string) (Descriptor, error) {
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok {
			return d, &ConfigurationError{Setting: a, Reason: "expected key=value"}
		}
		var err error
		if d, err = d.With(strings.TrimSpace(key), value); err != nil {
			return d, err
		}
	}
	return d, nil
}

// Settings returns the descriptor as a settings map keyed like With.
func (d Descriptor) Settings() map[string]string {
	return map[string]string{
		SettingOS:              string(d.OS),
		SettingArch:            string(d.Arch),
		SettingBuildType:       string(d.BuildType),
		SettingCompiler:        d.Compiler.Name,
		SettingCompilerVersion: d.Compiler.Version,
	}
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
