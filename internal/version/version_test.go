package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRelease(t *testing.T) {
	tests := map[string]bool{
		"1.2.3":      true,
		"v0.3.0":     true,
		"0.0.0-dev":  false,
		"1.0.0-rc.1": false,
		"banana":     false,
		"":           false,
	}
	for v, want := range tests {
		t.Run(v, func(t *testing.T) {
			assert.Equal(t, want, IsRelease(v))
		})
	}
}

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	assert.True(t, IsVersionGreaterOrEqualThan("0.3.0", "0.2.9"))
	assert.True(t, IsVersionGreaterOrEqualThan("0.3.0", "v0.3.0"))
	assert.False(t, IsVersionGreaterOrEqualThan("0.3.0-rc.1", "0.3.0"))
	assert.False(t, IsVersionGreaterOrEqualThan("0.2.0", "0.10.0"))
}

func TestCurrentAndString(t *testing.T) {
	prevVersion, prevCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = prevVersion, prevCommit })

	Version, GitCommit = "1.4.0", "0123456789abcdef"
	info := Current()
	assert.Equal(t, "1.4.0", info.Version)
	assert.Equal(t, "01234567", info.Commit)
	assert.True(t, info.Release)
	assert.Equal(t, "1.4.0-01234567", String())

	GitCommit = "unknown"
	assert.Equal(t, "1.4.0", String())
	assert.Empty(t, Current().Commit)
}
