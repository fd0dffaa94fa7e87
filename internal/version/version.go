// Package version provides version information for the yetty binaries.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a formatted version string for one of the binaries.
func Info(app string) string {
	return fmt.Sprintf("%s %s (%s) built on %s with %s",
		app, Version, Commit, Date, runtime.Version())
}

// Short returns just the version number.
func Short() string {
	return Version
}
