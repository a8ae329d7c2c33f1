package formula

import (
	"runtime"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════
// Platform Constants
// ═══════════════════════════════════════════════════════════════════════════════

// OS identifies a platform key in a release's artifact table.
type OS string

// Supported platform keys.
const (
	MacOS OS = "macos"
	Linux OS = "linux"
)

// GOOS names as reported by runtime.GOOS.
const (
	goosDarwin = "darwin"
	goosLinux  = "linux"
)

// SupportedOS returns the platforms a formula may carry artifacts for.
func SupportedOS() []OS {
	return []OS{MacOS, Linux}
}

// Supported reports whether o is a known platform key.
func (o OS) Supported() bool {
	switch o {
	case MacOS, Linux:
		return true
	default:
		return false
	}
}

// GOOS returns the runtime.GOOS spelling of o.
//
//	macos -> darwin
//	linux -> linux
//
// Unknown values are returned unchanged.
func (o OS) GOOS() string {
	if o == MacOS {
		return goosDarwin
	}
	return string(o)
}

func (o OS) String() string { return string(o) }

// ═══════════════════════════════════════════════════════════════════════════════
// Platform Detection
// ═══════════════════════════════════════════════════════════════════════════════

// HostOS returns the platform key for the running process.
// Operating systems without a key are returned verbatim so callers can
// report them; Resolve rejects them.
func HostOS() OS {
	return fromGOOS(runtime.GOOS)
}

// HostArch returns the current architecture (runtime.GOARCH).
func HostArch() string {
	return runtime.GOARCH
}

func fromGOOS(goos string) OS {
	switch goos {
	case goosDarwin:
		return MacOS
	case goosLinux:
		return Linux
	default:
		return OS(goos)
	}
}

// ParseOS converts a user supplied OS name into a platform key.
//
//	macos, darwin, osx -> macos
//	linux              -> linux
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return HostOS(), nil
	case "macos", "darwin", "osx", "mac":
		return MacOS, nil
	case "linux":
		return Linux, nil
	default:
		return "", &PlatformError{OS: OS(s)}
	}
}
