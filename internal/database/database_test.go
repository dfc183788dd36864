package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSqliteAndMigrate(t *testing.T) {
	db, err := Open(Config{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&ExportSession{}))
}

func TestOpenDefaultsToSqlite(t *testing.T) {
	db, err := Open(Config{DSN: ":memory:"})
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&ExportSession{}))
}

func TestOpenRejectsUnknownType(t *testing.T) {
	_, err := Open(Config{Type: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}
