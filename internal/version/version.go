package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Version and Commit are normally stamped by the release build:
//
//	go build -ldflags="-X github.com/muurk/lightwave/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/lightwave/internal/version.Commit=abc123"
//
// Otherwise they are derived from the module and VCS data embedded by the Go
// toolchain, and finally fall back to a dated dev version.
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			v, c := fromBuildInfo(info)
			if Version == "" {
				Version = v
			}
			if Commit == "" {
				Commit = c
			}
		}
	}

	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo picks a version and short commit out of the build info. A
// tagged module version (go install ...@v1.2.3) wins; a VCS build yields
// dev-<commit date>.
func fromBuildInfo(info *debug.BuildInfo) (version, commit string) {
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if rev := settings["vcs.revision"]; rev != "" {
		commit = rev[:min(len(rev), 7)]
		if settings["vcs.modified"] == "true" {
			commit += "-dirty"
		}
	}

	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v, commit
	}
	if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
		version = "dev-" + t.UTC().Format("20060102")
	}
	return version, commit
}

// Full returns the version with its commit.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent identifies the bridge to the LightwaveRF cloud and the Link Plus,
// e.g. "lightwave/1.2.0 (linux/amd64)".
func UserAgent() string {
	return fmt.Sprintf("lightwave/%s (%s/%s)", strings.TrimPrefix(Version, "v"), runtime.GOOS, runtime.GOARCH)
}
