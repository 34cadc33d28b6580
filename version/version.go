// Package version exposes build metadata for the edgelog binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Name is the program name used in [Info.String] and [UserAgent].
const Name = "edgelog"

var (
	// Version is the application version, set via ldflags.
	Version string
	// Branch is the git branch, set via ldflags.
	Branch string
	// BuildUser is the user who built the binary, set via ldflags.
	BuildUser string
	// BuildDate is when the binary was built, set via ldflags.
	BuildDate string

	// Revision is the git commit revision.
	Revision = getRevision(debug.ReadBuildInfo)
)

// Info is a snapshot of the build metadata.
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	Branch    string `json:"branch,omitempty"`
	BuildUser string `json:"build_user,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the metadata of the running binary. An unset [Version]
// reports "dev".
func Get() Info {
	v := Version
	if v == "" {
		v = "dev"
	}

	return Info{
		Version:   v,
		Revision:  Revision,
		Branch:    Branch,
		BuildUser: BuildUser,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders i as a short multi-line summary.
func (i Info) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s (revision %s", Name, i.Version, i.Revision)

	if i.Branch != "" {
		fmt.Fprintf(&b, ", branch %s", i.Branch)
	}

	b.WriteString(")\n")

	if i.BuildUser != "" || i.BuildDate != "" {
		fmt.Fprintf(&b, "  built by %s on %s\n", orUnknown(i.BuildUser), orUnknown(i.BuildDate))
	}

	fmt.Fprintf(&b, "  %s %s", i.GoVersion, i.Platform)

	return b.String()
}

// UserAgent returns the User-Agent sent by the edgelog CLI, such as
// "edgelog/1.2.0".
func UserAgent() string {
	return Name + "/" + Get().Version
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}

	return s
}

func getRevision(read func() (*debug.BuildInfo, bool)) string {
	rev := "unknown"

	buildInfo, ok := read()
	if !ok {
		return rev
	}

	modified := false

	for _, v := range buildInfo.Settings {
		switch v.Key {
		case "vcs.revision":
			rev = v.Value
		case "vcs.modified":
			if v.Value == "true" {
				modified = true
			}
		}
	}

	if modified {
		return rev + "-dirty"
	}

	return rev
}
