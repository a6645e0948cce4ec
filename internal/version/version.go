// Package version carries the build metadata injected through ldflags, for
// example -X github.com/opsguard/opsguard/internal/version.Version=1.2.0.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info is the build metadata reported by /health and the version command
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get snapshots the build metadata
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// Full returns the version line printed by the version command
func Full() string {
	info := Get()
	return fmt.Sprintf("opsguard %s (commit: %s), built %s with %s",
		info.Version, info.Commit, info.BuildDate, info.GoVersion)
}
