package cli

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withBuild fakes the version and the embedded VCS settings.
func withBuild(t *testing.T, v string, settings ...debug.BuildSetting) {
	t.Helper()
	origVersion, origRead := version, readBuildInfo
	t.Cleanup(func() { version, readBuildInfo = origVersion, origRead })

	version = v
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		if settings == nil {
			return nil, false
		}
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestVersionCmd(t *testing.T) {
	withBuild(t, "1.4.0",
		debug.BuildSetting{Key: "vcs.revision", Value: "3f9c2a1b7d4e8f0a9b1c"},
		debug.BuildSetting{Key: "vcs.time", Value: "2024-05-02T08:30:00Z"},
		debug.BuildSetting{Key: "vcs.modified", Value: "true"},
	)

	out, err := runCmd("version")
	require.NoError(t, err)
	assert.Contains(t, out, "lexindex version 1.4.0")
	assert.Contains(t, out, "commit:   3f9c2a1b7d4e (modified)")
	assert.Contains(t, out, "built:    2024-05-02T08:30:00Z")
	assert.Contains(t, out, "platform: "+runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionCmd_WithoutBuildInfo(t *testing.T) {
	withBuild(t, "dev")

	out, err := runCmd("version")
	require.NoError(t, err)
	assert.Contains(t, out, "lexindex version dev")
	assert.NotContains(t, out, "commit:")
	assert.Contains(t, out, "go:       "+runtime.Version())
}

func TestVersionCmd_ShortAndJSON(t *testing.T) {
	withBuild(t, "1.4.0", debug.BuildSetting{Key: "vcs.revision", Value: "abc123"})

	out, err := runCmd("version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0\n", out)

	out, err = runCmd("version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "1.4.0"`)
	assert.Contains(t, out, `"commit": "abc123"`)
	assert.NotContains(t, out, `"modified"`)
}
