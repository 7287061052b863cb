// Package version provides build version information for whotalks.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "dev"

	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"

	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"

	// GoVersion is the Go version used to build
	GoVersion = runtime.Version()
)

// UserAgent identifies whotalks in outgoing HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("whotalks/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
