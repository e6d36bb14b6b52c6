// Package version exposes the build identity of the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Populated at build time, for example:
//
//	-X github.com/tis24dev/diskwatch/internal/version.Version=v0.3.0
//	-X github.com/tis24dev/diskwatch/internal/version.Commit=abcdef1
//	-X github.com/tis24dev/diskwatch/internal/version.Date=2026-01-01T00:00:00Z
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

const devVersion = "0.0.0-dev"

var readBuildInfo = debug.ReadBuildInfo

// String returns the injected version, else the main module version from the
// build info, else a development placeholder. A leading "v" is stripped.
func String() string {
	v := strings.TrimSpace(Version)

	if v == "" {
		if info, ok := readBuildInfo(); ok && info != nil {
			if mv := strings.TrimSpace(info.Main.Version); mv != "" && mv != "(devel)" {
				v = mv
			}
		}
	}
	if v == "" {
		v = devVersion
	}
	return strings.TrimPrefix(v, "v")
}

// Details renders the multi-line --version output.
func Details() string {
	var b strings.Builder
	fmt.Fprintf(&b, "diskwatch %s\n", String())
	if c := strings.TrimSpace(Commit); c != "" {
		fmt.Fprintf(&b, "Commit: %s\n", c)
	}
	if d := strings.TrimSpace(Date); d != "" {
		fmt.Fprintf(&b, "Built: %s\n", d)
	}
	fmt.Fprintf(&b, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return b.String()
}

// UserAgent is sent on outgoing HTTP requests.
func UserAgent() string {
	return "diskwatch/" + String()
}
