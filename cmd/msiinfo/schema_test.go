package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"msidb/msidb"
)

func TestInitFromManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "schema.toml")
	manifest := `
[database]
codepage = 1252

[[tables]]
name = "Phone"
  [[tables.columns]]
  name = "id"
  type = "INT"
  key = true

  [[tables.columns]]
  name = "name"
  type = "CHAR"
  nullable = true
`
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))

	m, err := loadManifest(manifestPath)
	require.NoError(t, err)
	require.Equal(t, 1252, m.Database.Codepage)
	require.Len(t, m.Tables, 1)
	require.Equal(t, "Phone", m.Tables[0].Name)
	require.Len(t, m.Tables[0].Columns, 2)

	dbPath := filepath.Join(dir, "out.msi")
	cmd := initCmd()
	cmd.SetArgs([]string{dbPath, manifestPath})
	require.NoError(t, cmd.Execute())

	db, err := msidb.Open(dbPath, msidb.ReadOnly)
	require.NoError(t, err)
	require.True(t, db.Store.TableExists("Phone"))
}
