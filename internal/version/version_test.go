package version

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldT := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldT })
}

func TestGetVersion_Ldflags(t *testing.T) {
	withBuildVars(t, "v1.2.3", "0123456789abcdef", "2025-06-01T10:00:00Z")

	assert.Equal(t, "v1.2.3", GetVersion())
	assert.Equal(t, "0123456789abcdef", GetGitCommit())
	assert.Equal(t, "v1.2.3 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())

	info := GetBuildInfo()
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), info.BuildTime.UTC())
	assert.Contains(t, info.Platform, "/")

	detailed := GetDetailedVersion()
	assert.True(t, strings.HasPrefix(detailed, "Version: v1.2.3\nCommit: 0123456789abcdef\nBuilt: 2025-06-01T10:00:00Z"))
	assert.Contains(t, detailed, "Go: ")
}

func TestParseBuildTime(t *testing.T) {
	tests := []struct {
		in   string
		zero bool
	}{
		{"", true},
		{"unknown", true},
		{"yesterday", true},
		{"2025-06-01T10:00:00Z", false},
		{"2025-06-01T10:00:00", false},
		{"2025-06-01 10:00:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.zero, parseBuildTime(tt.in).IsZero())
		})
	}
}

func TestGetShortVersion_ShortCommit(t *testing.T) {
	withBuildVars(t, "v0.1.0", "abc", "unknown")
	assert.Equal(t, "v0.1.0", GetShortVersion())
}
