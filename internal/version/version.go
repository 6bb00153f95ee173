package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the engine's released version, without a leading "v".
// Override at build time:
//
//	go build -ldflags "-X github.com/yosefsha/myassistant/internal/version.Version=0.3.0"
var Version = "0.0.0-dev"

// GitCommit is the git commit hash at build time.
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

// Info is the build metadata reported by status endpoints.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	Release   bool   `json:"release"`
}

// Current returns the build metadata.
func Current() Info {
	info := Info{Version: Version, Release: IsRelease(Version)}
	if GitCommit != "unknown" {
		info.Commit = shortCommit(GitCommit)
	}
	if BuildTime != "unknown" {
		info.BuildTime = BuildTime
	}
	return info
}

// IsValid reports whether v is a semantic version, with or without the
// leading "v".
func IsValid(v string) bool {
	return semver.IsValid(canonical(v))
}

// IsRelease reports whether v is a valid semantic version without a
// prerelease suffix.
func IsRelease(v string) bool {
	sv := canonical(v)
	return semver.IsValid(sv) && semver.Prerelease(sv) == ""
}

// IsVersionGreaterOrEqualThan returns true if version is greater than or equal to target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > -1
}

// String returns the version with the short commit hash appended when known.
func String() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s-%s", Version, shortCommit(GitCommit))
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
