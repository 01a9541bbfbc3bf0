// SPDX-License-Identifier: MIT
//
// Package build provides the build information printed by the CLI: the
// application name, build timestamp, Git commit hash and semantic version.
// Release builds set them with linker flags:
//
//	go build -ldflags "-X spectra/pkg/build.buildVersion=v0.3.0 \
//	  -X spectra/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X spectra/pkg/build.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Development builds fall back to what the Go toolchain stamped into the
// binary.
package build

import (
	"fmt"
	"runtime/debug"
	"time"
)

const (
	DefaultName        = "spectra"
	DefaultDescription = "Live STFT effect host with glitch-free frame size switching"
	unknown            = "unknown"
)

// Info is the build information of the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by
// -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}

	readBuildInfo = debug.ReadBuildInfo
)

// Initialize copies the ldflags variables into the build information,
// filling gaps from the module build info. It returns an error if
// buildTime is set but is not RFC 3339.
func Initialize() error {
	if buildTime != "" {
		if _, err := time.Parse(time.RFC3339, buildTime); err != nil {
			return fmt.Errorf("BuildTime %q is not RFC 3339: %w", buildTime, err)
		}
	}

	info := Info{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        buildTime,
		Commit:      buildCommit,
		Version:     buildVersion,
	}
	if buildName != "" {
		info.Name = buildName
	}

	if bi, ok := readBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "":
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.Time == "":
				info.Time = s.Value
			}
		}
	}

	for _, field := range []*string{&info.Time, &info.Commit, &info.Version} {
		if *field == "" {
			*field = unknown
		}
	}

	*buildFlags = info
	return nil
}

// GetBuildFlags returns the current build information. Initialize()
// should be called first; until then every field but the name is unknown.
func GetBuildFlags() *Info {
	return buildFlags
}
