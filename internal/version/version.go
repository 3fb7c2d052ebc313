// Package version reports the timelapse build version.
package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var versionFile string

// Set at build time:
//
//	go build -ldflags "-X github.com/leefowlercu/timelapse/internal/version.gitCommit=VALUE"
var (
	gitCommit string
	buildDate string
)

const unknown = "unknown"

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"` // short hash, "-dirty" when the tree was modified
	BuildDate string `json:"build_date"` // ISO 8601
	GoVersion string `json:"go_version"`
}

// String renders Info as aligned "Label: value" lines.
func (i Info) String() string {
	return fmt.Sprintf("Version:    %s\nGit Commit: %s\nBuild Date: %s\nGo Version: %s",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}

// Short formats Info as a single line, e.g. "0.1.0 (abc1234)".
func (i Info) Short() string {
	if i.GitCommit == "" || i.GitCommit == unknown {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, i.GitCommit)
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   strings.TrimSpace(versionFile),
		GitCommit: commit(),
		BuildDate: orUnknown(buildDate),
		GoVersion: runtime.Version(),
	}
}

// commit prefers the linker value, then the VCS stamp from go install.
func commit() string {
	if gitCommit != "" {
		return gitCommit
	}

	revision, dirty := vcsStamp()
	if revision == "" {
		return unknown
	}
	if dirty {
		return revision + "-dirty"
	}
	return revision
}

// vcsStamp returns the 7-character VCS revision and whether the tree was dirty.
func vcsStamp() (revision string, dirty bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}

	return revision, dirty
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
