// Package version reports the build version of the binary. Values injected
// with -ldflags win; otherwise they are read from the module build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// Set with -ldflags "-X .../internal/version.Version=..." at release time.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

var (
	once           sync.Once
	readBuildInfo  = debug.ReadBuildInfo
	shortCommitLen = 12
)

func resolve() {
	once.Do(func() {
		info, ok := readBuildInfo()
		if Version == "" {
			Version = moduleVersion(info, ok)
		}
		settings := map[string]string{}
		if ok {
			for _, s := range info.Settings {
				settings[s.Key] = s.Value
			}
		}
		if Commit == "" {
			Commit = commitOf(settings)
		}
		if Date == "" {
			Date = dateOf(settings)
		}
	})
}

func moduleVersion(info *debug.BuildInfo, ok bool) string {
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return strings.TrimPrefix(info.Main.Version, "v")
}

func commitOf(settings map[string]string) string {
	rev := settings["vcs.revision"]
	if rev == "" {
		return "unknown"
	}
	if len(rev) > shortCommitLen {
		rev = rev[:shortCommitLen]
	}
	if settings["vcs.modified"] == "true" {
		rev += "-dirty"
	}
	return rev
}

func dateOf(settings map[string]string) string {
	t := settings["vcs.time"]
	if len(t) >= len("2006-01-02") {
		return t[:len("2006-01-02")]
	}
	return "unknown"
}

// Reset forgets resolved values so they are read again on next access.
func Reset() {
	once = sync.Once{}
	Version, Commit, Date = "", "", ""
}

// GetVersion returns the semantic version without the leading v.
func GetVersion() string {
	resolve()
	return Version
}

func GetCommit() string {
	resolve()
	return Commit
}

func GetDate() string {
	resolve()
	return Date
}

// Info is the one-line summary printed by the version command.
func Info() string {
	resolve()
	return fmt.Sprintf("cockpit %s (commit: %s, built: %s, %s/%s)",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
