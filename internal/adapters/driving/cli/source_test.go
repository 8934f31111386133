package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importYAML = `
sources:
  - id: codes-drive
    name: Codes
    kind: drive
    folder_id: 9XyZ
    recursive: false
    category: codes
    doc_type: TEXTES
    quota:
      per_hour: 50
  - id: juris-drive
    name: Jurisprudence (renamed)
    kind: drive
    folder_id: folder-juris
    category: jurisprudence
`

func TestSourceCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0, len(sourceCmd.Commands()))
	for _, c := range sourceCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"import", "list", "show", "remove"}, names)
}

func TestSourceListCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCmd("source", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Configured sources:")
	assert.Contains(t, out, "juris-drive")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "last crawl: never")
}

func TestSourceListCmd_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	require.NoError(t, sourceService.Remove(context.Background(), "juris-drive"))

	out, err := runCmd("source", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No sources configured")
}

func TestSourceShowCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCmd("source", "show", "juris-drive")
	require.NoError(t, err)
	assert.Contains(t, out, "Folder:      folder-juris")
	assert.Contains(t, out, "Recursive:   true")
	assert.Contains(t, out, "Category:    jurisprudence")
	assert.Contains(t, out, "Quota:       unlimited/hour, unlimited/day")
}

func TestSourceShowCmd_NotFound(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := runCmd("source", "show", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get source")
}

func TestSourceImportCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(importYAML), 0o644))

	out, err := runCmd("source", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 sources:")
	assert.Contains(t, out, "codes-drive  Codes")

	src, err := sourceService.Get(context.Background(), "juris-drive")
	require.NoError(t, err)
	assert.Equal(t, "Jurisprudence (renamed)", src.Name)

	out, err = runCmd("source", "show", "codes-drive")
	require.NoError(t, err)
	assert.Contains(t, out, "Recursive:   false")
	assert.Contains(t, out, "Quota:       50/hour, unlimited/day")
}

func TestSourceImportCmd_InvalidFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - id: broken\n    kind: drive\n"), 0o644))

	_, err := runCmd("source", "import", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import failed")

	_, err = runCmd("source", "import", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSourceRemoveCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCmd("source", "remove", "juris-drive")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed source: juris-drive")

	_, err = runCmd("source", "remove", "juris-drive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source juris-drive not found")
}

func TestSourceCmd_ServiceNotConfigured(t *testing.T) {
	SetServices(Services{})
	for _, args := range [][]string{
		{"source", "list"},
		{"source", "show", "x"},
		{"source", "remove", "x"},
		{"source", "import", "x.yaml"},
	} {
		_, err := runCmd(args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "source service not configured")
	}
}

func TestQuotaValue(t *testing.T) {
	assert.Equal(t, "unlimited", quotaValue(0))
	assert.Equal(t, "unlimited", quotaValue(-1))
	assert.Equal(t, "100", quotaValue(100))
}

func TestValueOr(t *testing.T) {
	assert.Equal(t, "-", valueOr("", "-"))
	assert.Equal(t, "codes", valueOr("codes", "-"))
}
