// Package version provides build version information for mzprof.
//
// Version, GitCommit, and BuildDate are overridden at build time:
//
//	go build -ldflags "-X github.com/mz-tools/mzprof/pkg/version.Version=v0.2.0"
package version

import (
	"runtime"
)

var (
	// Version is the semantic version.
	Version = "dev"

	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"

	// GoVersion is the Go version used to build.
	GoVersion = runtime.Version()
)
