// Package version reports build information stamped in at link time.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/plugcat/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/plugcat/internal/version.Commit=abc123
//	  -X github.com/soyeahso/plugcat/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Build is the machine-readable form of the version info.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

// Get returns the build info of the running binary.
func Get() Build {
	return Build{
		Version: Version,
		Commit:  short(Commit),
		Date:    Date,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
}

// Info returns a formatted version string.
func Info() string {
	b := Get()
	return fmt.Sprintf("plugcat %s (commit: %s, built: %s, %s/%s)",
		b.Version, b.Commit, b.Date, b.OS, b.Arch)
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
