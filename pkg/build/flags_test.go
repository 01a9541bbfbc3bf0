// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"runtime/debug"
	"strings"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origFlags   Info
	origRead    func() (*debug.BuildInfo, bool)
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origFlags = *buildFlags
	origRead = readBuildInfo

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*buildFlags = origFlags
	readBuildInfo = origRead

	os.Exit(exitCode)
}

func fakeBuildInfo(version, revision, vcsTime string) func() (*debug.BuildInfo, bool) {
	return func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Path: "spectra", Version: version},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: revision},
				{Key: "vcs.time", Value: vcsTime},
			},
		}, true
	}
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		readInfo    func() (*debug.BuildInfo, bool)
		want        Info
		wantErrMsg  string
	}{
		{
			"Linker flags win",
			"testapp",
			"2025-04-13T10:00:00Z",
			"abcdef123",
			"v1.0.0",
			fakeBuildInfo("(devel)", "ffffff", "2024-01-01T00:00:00Z"),
			Info{Name: "testapp", Description: DefaultDescription, Time: "2025-04-13T10:00:00Z", Commit: "abcdef123", Version: "v1.0.0"},
			"",
		},
		{
			"Module build info fills gaps",
			"",
			"",
			"",
			"",
			fakeBuildInfo("v0.2.1", "0123abc", "2026-02-01T12:00:00Z"),
			Info{Name: DefaultName, Description: DefaultDescription, Time: "2026-02-01T12:00:00Z", Commit: "0123abc", Version: "v0.2.1"},
			"",
		},
		{
			"Nothing known",
			"",
			"",
			"",
			"",
			func() (*debug.BuildInfo, bool) { return nil, false },
			Info{Name: DefaultName, Description: DefaultDescription, Time: unknown, Commit: unknown, Version: unknown},
			"",
		},
		{
			"Malformed BuildTime",
			"testapp",
			"2025-04-13",
			"abcdef123",
			"v1.0.0",
			fakeBuildInfo("", "", ""),
			Info{},
			"not RFC 3339",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer
			readBuildInfo = tt.readInfo

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErrMsg) {
					t.Errorf("Initialize() error = %v, want %q", err, tt.wantErrMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}
			if got := *GetBuildFlags(); got != tt.want {
				t.Errorf("GetBuildFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Name: "spectra", Time: "2025-04-13T10:00:00Z", Commit: "abcdef1", Version: "v1.0.0"}
	want := "spectra v1.0.0 (commit abcdef1, built 2025-04-13T10:00:00Z)"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
