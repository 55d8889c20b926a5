// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"log/slog"
	"runtime"
	"strings"

	"github.com/forgepkg/forge/pkg/platform"
)

// probe is one compiler detection attempt.
type probe struct {
	compiler string
	inv      Invocation
	parse    func(stdout string) string
}

// HostPlatform returns the descriptor of the running machine with a release
// build type and the first compiler that answers a version probe. When no
// compiler answers, the platform's conventional compiler is assumed.
func HostPlatform(ctx context.Context, r Runner) platform.Descriptor {
	d := platform.Descriptor{
		OS:        hostOS(runtime.GOOS),
		Arch:      hostArch(runtime.GOARCH),
		BuildType: platform.Release,
		Compiler:  platform.Compiler{Name: defaultCompiler(hostOS(runtime.GOOS))},
	}
	if r == nil {
		return d
	}
	for _, p := range probes(d.OS) {
		res, err := r.Run(ctx, p.inv)
		if err != nil {
			slog.Debug("compiler probe failed", "compiler", p.compiler, "error", err)
			continue
		}
		d.Compiler = platform.Compiler{Name: p.compiler, Version: p.parse(res.Stdout)}
		break
	}
	return d
}

func probes(os platform.OS) []probe {
	switch os {
	case platform.Windows:
		return []probe{{compiler: platform.MSVC, inv: Invocation{Command: "cl"}, parse: func(string) string { return "" }}}
	case platform.MacOS:
		return []probe{{compiler: platform.AppleClang, inv: Invocation{Command: "clang", Args: []string{"-dumpversion"}}, parse: majorVersion}}
	default:
		return []probe{
			{compiler: platform.GCC, inv: Invocation{Command: "gcc", Args: []string{"-dumpfullversion"}}, parse: majorVersion},
			{compiler: platform.Clang, inv: Invocation{Command: "clang", Args: []string{"-dumpversion"}}, parse: majorVersion},
		}
	}
}

// majorVersion returns the leading component of a dotted version.
func majorVersion(out string) string {
	v := strings.TrimSpace(out)
	if i := strings.IndexByte(v, '.'); i >= 0 {
		v = v[:i]
	}
	return v
}

func hostOS(goos string) platform.OS {
	switch goos {
	case "darwin":
		return platform.MacOS
	case "windows":
		return platform.Windows
	case "freebsd":
		return platform.FreeBSD
	default:
		return platform.Linux
	}
}

func hostArch(goarch string) platform.Arch {
	switch goarch {
	case "arm64":
		return platform.ARMv8
	case "arm":
		return platform.ARMv7
	case "386":
		return platform.X86
	default:
		return platform.X86_64
	}
}

func defaultCompiler(os platform.OS) string {
	switch os {
	case platform.Windows:
		return platform.MSVC
	case platform.MacOS:
		return platform.AppleClang
	case platform.FreeBSD:
		return platform.Clang
	default:
		return platform.GCC
	}
}
