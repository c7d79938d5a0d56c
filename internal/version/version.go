// Package version holds build metadata injected with -ldflags:
//
//	-X github.com/HerbHall/wlanscan/internal/version.Version=v0.2.0
//	-X github.com/HerbHall/wlanscan/internal/version.GitCommit=abc1234
//	-X github.com/HerbHall/wlanscan/internal/version.BuildDate=2026-01-15
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Short returns the version string alone.
func Short() string { return Version }

// Info returns a one-line description for `wlanscan version`.
func Info() string {
	return fmt.Sprintf("wlanscan %s (commit %s, built %s, %s %s/%s)",
		Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Map returns the build metadata as a map for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}
