package declarest

import (
	"fmt"
	"runtime"
)

// Build metadata, overridable with -ldflags "-X ...". Version tracks the
// module's tagged release; the rest default to "unknown" outside release
// builds.
var (
	Version   = "v0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// GetVersion returns a one-line human-readable version string.
func GetVersion() string {
	return fmt.Sprintf("declarest %s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildDate, GoVersion)
}

// GetVersionInfo returns the build metadata as structured fields, suitable
// for logging or a detailed version listing.
func GetVersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
		"go_version": GoVersion,
	}
}
