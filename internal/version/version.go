// Package version holds the build version for ctrain.
package version

import (
	"runtime"
	"runtime/debug"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Commit is the git commit SHA, set at build time via -ldflags. When empty,
// the VCS revision recorded by the Go toolchain is used.
var Commit = ""

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// Info returns the build description. Commit is shortened to 12 characters.
func Info() BuildInfo {
	bi := BuildInfo{Version: Version, Commit: Commit, GoVersion: runtime.Version()}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if bi.Commit == "" {
					bi.Commit = s.Value
				}
			case "vcs.modified":
				bi.Modified = s.Value == "true"
			}
		}
	}
	if len(bi.Commit) > 12 {
		bi.Commit = bi.Commit[:12]
	}
	return bi
}

// FullVersion returns the version string with commit if available.
// Format: "vX.Y.Z (commit <shortsha>)", with "-dirty" appended to the sha
// for modified trees, or the bare version when no commit is known.
func FullVersion() string {
	bi := Info()
	if bi.Commit == "" {
		return bi.Version
	}
	commit := bi.Commit
	if bi.Modified {
		commit += "-dirty"
	}
	return bi.Version + " (commit " + commit + ")"
}
