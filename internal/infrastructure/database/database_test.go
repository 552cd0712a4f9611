package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestRecordsMigrationCreatesTable(t *testing.T) {
	data, err := fs.ReadFile(migrationFiles, "migrations/000001_create_records.up.sql")
	require.NoError(t, err)

	sql := string(data)
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS records")
	assert.Contains(t, sql, "PRIMARY KEY (collection, id)")
	assert.Contains(t, sql, "USING GIN")
}

func TestInsertOrderMigrationAddsSequence(t *testing.T) {
	up, err := fs.ReadFile(migrationFiles, "migrations/000003_records_insert_order.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "seq BIGSERIAL")

	down, err := fs.ReadFile(migrationFiles, "migrations/000003_records_insert_order.down.sql")
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP COLUMN IF EXISTS seq")
}
