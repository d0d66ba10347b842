package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalize(t *testing.T) {
	var off Config
	require.NoError(t, off.Normalize())
	assert.False(t, off.Enabled())

	cfg := Config{Host: "db", Name: "solwatch"}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 5, cfg.MaxConnections)

	bad := Config{Host: "db"}
	assert.Error(t, bad.Normalize())
}

func TestDSNAndURL(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss w'rd", Name: "solwatch", SSLMode: "disable"}
	assert.Equal(t, `user=bot password='p@ss w\'rd' host=db port=5432 dbname=solwatch sslmode=disable`, cfg.DSN())
	cfg.Password = "p@ss"
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/solwatch?sslmode=disable", cfg.URL())
}

func TestMigrationFileSelection(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_history.up.sql":   {Data: []byte("select 1")},
		"0001_journal.up.sql":   {Data: []byte("select 1")},
		"0001_journal.down.sql": {Data: []byte("select 1")},
		"README.md":             {Data: []byte("x")},
	}
	files := listMigrationFiles(fsys)
	assert.Equal(t, []string{"0001_journal.up.sql", "0002_history.up.sql"}, files)
	assert.Equal(t, uint64(2), parseVersion(files[1]))
	assert.Equal(t, []string{"0002_history.up.sql"}, selectApplied(files, 1, 2))
	assert.Empty(t, selectApplied(files, 2, 2))
}
