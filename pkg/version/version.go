// Package version exposes build-time version information for the docfang
// binary.
package version

import "runtime/debug"

// Build information, overridden at link time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// InitBinaryVersion fills in commit information from the embedded build info
// when it was not set at link time.
func InitBinaryVersion() {
	if Commit != "unknown" {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			Commit = setting.Value
		}

		if setting.Key == "vcs.time" {
			Date = setting.Value
		}
	}
}
