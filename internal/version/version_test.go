package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBaseVersion(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	tests := []struct {
		name     string
		version  string
		expected string
	}{
		{"plain", "0.1.0", "0.1.0"},
		{"build metadata", "0.3.1+42.abc1234", "0.3.1"},
		{"prerelease", "1.0.0-rc.1", "1.0.0"},
		{"invalid", "not-a-version", "not-a-version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version = tt.version
			assert.Equal(t, tt.expected, GetBaseVersion())
		})
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name       string
		host       string
		constraint string
		expected   bool
		wantErr    bool
	}{
		{"empty constraint", "0.1.0", "", true, false},
		{"minimum met", "0.2.0", ">= 0.1.0", true, false},
		{"minimum not met", "0.1.0", ">= 0.2.0", false, false},
		{"caret range", "1.4.2", "^1.2", true, false},
		{"bad constraint", "0.1.0", ">>= x", false, true},
		{"bad host", "latest", ">= 0.1.0", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Satisfies(tt.host, tt.constraint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestGetFormattedVersion(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	defer func() { Version, GitCommit, BuildDate = origVersion, origCommit, origDate }()

	Version, GitCommit, BuildDate = "0.1.0", "abcdef1234567", "2024-03-01"
	out := GetFormattedVersion()
	assert.Contains(t, out, "Elicate v0.1.0")
	assert.Contains(t, out, "commit abcdef1")
	assert.Contains(t, out, "built 2024-03-01")
}

func TestCompareVersions(t *testing.T) {
	c, err := CompareVersions("0.1.0", "0.2.0")
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = CompareVersions("x", "0.2.0")
	assert.Error(t, err)
}
