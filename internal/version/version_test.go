package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func withValues(t *testing.T, version, commit string) {
	t.Helper()
	oldVersion, oldCommit := Version, Commit
	Version, Commit = version, commit
	t.Cleanup(func() {
		Version, Commit = oldVersion, oldCommit
	})
}

func TestFillFromSettings(t *testing.T) {
	tests := []struct {
		name        string
		settings    []debug.BuildSetting
		wantVersion string
		wantCommit  string
	}{
		{
			name: "clean checkout",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2025-03-04T10:00:00Z"},
				{Key: "vcs.modified", Value: "false"},
			},
			wantVersion: "dev-20250304",
			wantCommit:  "0123456",
		},
		{
			name: "dirty checkout",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abcdef0123"},
				{Key: "vcs.modified", Value: "true"},
			},
			wantCommit: "abcdef0-dirty",
		},
		{
			name: "short revision",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc"},
			},
			wantCommit: "abc",
		},
		{
			name:     "no vcs info",
			settings: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withValues(t, "", "")
			fillFromSettings(tt.settings)
			if Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", Version, tt.wantVersion)
			}
			if Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", Commit, tt.wantCommit)
			}
		})
	}
}

func TestFillFromSettings_KeepsLdflags(t *testing.T) {
	withValues(t, "v1.2.3", "feedbee")
	fillFromSettings([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789"},
		{Key: "vcs.time", Value: "2025-03-04T10:00:00Z"},
	})
	if Version != "v1.2.3" || Commit != "feedbee" {
		t.Errorf("ldflags values overwritten: %s", Full())
	}
}

func TestFull(t *testing.T) {
	withValues(t, "v1.2.3", "feedbee")
	if got := Full(); got != "v1.2.3 (commit: feedbee)" {
		t.Errorf("Full() = %q", got)
	}
	if !strings.Contains(Platform(), "/") {
		t.Errorf("Platform() = %q", Platform())
	}
}
