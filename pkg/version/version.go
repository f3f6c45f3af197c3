package version

import "fmt"

var (
	// Version contains the current version of keventd
	Version = "dev"

	// CommitHash contains the current git commit hash
	CommitHash = "unknown"

	// BuildTime contains the time of build
	BuildTime = "unknown"
)

// String renders the build information on one line.
func String() string {
	return fmt.Sprintf("keventd version %s (commit: %s, built at: %s)", Version, CommitHash, BuildTime)
}
