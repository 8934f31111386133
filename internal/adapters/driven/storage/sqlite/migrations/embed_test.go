package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPending_Embedded(t *testing.T) {
	all, err := Pending(0)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Contains(t, all[0].SQL, "CREATE TABLE IF NOT EXISTS task_runs")

	none, err := Pending(all[len(all)-1].Version)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPending_OrderAndFilter(t *testing.T) {
	fsys := fstest.MapFS{
		"010_fts.up.sql":      {Data: []byte("-- ten")},
		"002_chunks.up.sql":   {Data: []byte("-- two")},
		"001_initial.up.sql":  {Data: []byte("-- one")},
		"002_chunks.down.sql": {Data: []byte("-- ignored")},
		"README.md":           {Data: []byte("ignored")},
	}

	got, err := pending(fsys, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Version)
	assert.Equal(t, "-- two", got[0].SQL)
	assert.Equal(t, "010_fts.up.sql", got[1].Name)
}

func TestPending_Errors(t *testing.T) {
	_, err := pending(fstest.MapFS{"initial.up.sql": {Data: []byte("")}}, 0)
	assert.ErrorContains(t, err, "missing version prefix")

	_, err = pending(fstest.MapFS{
		"003_a.up.sql": {Data: []byte("")},
		"003_b.up.sql": {Data: []byte("")},
	}, 0)
	assert.ErrorContains(t, err, "share version 3")
}
