// Package version reports the client version and build metadata.
//
// CommitHash should be set using -ldflags during compilation. When it is not,
// the VCS revision recorded by the Go toolchain is used instead.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// CommitHash stores the git commit hash of this build.
var CommitHash string

// semanticAlphabet is the allowed characters for pre-release strings.
const semanticAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

const (
	appMajor uint = 0
	appMinor uint = 3
	appPatch uint = 0

	appPreRelease = "beta"
)

// Version returns the semantic version.
func Version() string {
	v := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if pre := normalize(appPreRelease); pre != "" {
		v += "-" + pre
	}
	return v
}

// UserAgent is sent with REST requests and device registration.
func UserAgent() string {
	return "rtc-go/" + Version()
}

// RichVersion returns the version with the commit it was built from, when
// known.
func RichVersion() string {
	commit := strings.TrimSpace(CommitHash)
	if commit == "" {
		commit = vcsRevision()
	}
	if commit == "" {
		return Version()
	}
	return fmt.Sprintf("%s commit=%s", Version(), commit)
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev, dirty string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "-dirty"
			}
		}
	}
	if rev == "" {
		return ""
	}
	return rev + dirty
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(semanticAlphabet, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
