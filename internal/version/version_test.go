package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
	assert.Equal(t, DevVersion, GetCurrentVersion("demo"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{"0.2.0", "0.1.9", true},
		{"0.1.0", "0.1.0", true},
		{"v1.0.0", "0.9.0", true},
		{"0.1.0", "0.2.0", false},
		{"0.1.0-dev", "0.1.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.version+"_"+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVersionGreaterOrEqualThan(tt.version, tt.target))
		})
	}
}

func TestRelease(t *testing.T) {
	assert.Equal(t, "0.3.0", Release("0.3.0-dev"))
	assert.Equal(t, "1.2.3", Release("v1.2.3+build.7"))
	assert.Equal(t, "0.1.0", Release(DevVersion))
	assert.Equal(t, "", Release("latest"))
	assert.False(t, IsValid("latest"))
}

func TestString(t *testing.T) {
	oldCommit := GitCommit
	t.Cleanup(func() { GitCommit = oldCommit })

	GitCommit = "unknown"
	assert.Equal(t, Version, String())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, Version+"-01234567", String())
	assert.Contains(t, StringFull(), "Version="+Version+"-01234567")
	assert.True(t, IsValid(Version))
}
