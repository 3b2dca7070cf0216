package version

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"
)

var (
	// Build information - these will be set via ldflags during build
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	BuiltBy   = "unknown"
	GoVersion = runtime.Version()
)

// Info holds version information
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	BuiltBy   string `json:"built_by"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns version information
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		BuiltBy:   BuiltBy,
		GoVersion: GoVersion,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersion returns just the version string
func GetVersion() string {
	return Version
}

// IsRelease reports whether the version is a semantic version without a
// prerelease suffix. Development builds report "dev".
func (i Info) IsRelease() bool {
	v, err := semver.NewVersion(i.Version)
	if err != nil {
		return false
	}
	return v.Prerelease() == ""
}

func (i Info) displayVersion() string {
	if i.IsRelease() {
		return i.Version
	}
	return i.Version + " (development build)"
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("tokenest version %s\ncommit: %s\nbuilt: %s\nby: %s\ngo: %s\nplatform: %s",
		i.displayVersion(), i.Commit, i.Date, i.BuiltBy, i.GoVersion, i.Platform)
}

// ShortString returns a short version string
func (i Info) ShortString() string {
	return fmt.Sprintf("tokenest version %s", i.displayVersion())
}