package version

import "fmt"

// Build metadata, set with -ldflags "-X github.com/oshokin/ghidra-grabber/internal/version.Version=...".
var (
	Version   = "0.1.0"
	Commit    = "none"
	BuildTime = "unknown"
)

// Name is the program name used in help output and HTTP requests.
const Name = "ghidra-grabber"

// Short returns the bare semantic version.
func Short() string {
	return Version
}

// Full returns the program name, version, commit and build time on one line.
func Full() string {
	return fmt.Sprintf("%s version: %s, commit: %s, built at: %s", Name, Version, Commit, BuildTime)
}

// UserAgent returns the product token sent with HTTP requests, e.g. "ghidra-grabber/0.1.0".
func UserAgent() string {
	return Name + "/" + Version
}
