package idt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"msidb/schema"
	"msidb/storage"
	"msidb/stringpool"
	"msidb/tablestore"
)

func newTestStore(t *testing.T) *tablestore.Store {
	t.Helper()
	c, err := storage.OpenWrite(t.TempDir()+"/test.msi", true)
	require.NoError(t, err)
	pool, err := stringpool.New(1252)
	require.NoError(t, err)
	s, err := tablestore.Open(c, pool)
	require.NoError(t, err)
	return s
}

func phoneColumns() []*schema.Column {
	return []*schema.Column{
		{Name: "id", Type: schema.NewTypeFlags(schema.Width32, false, true, false, false, false, false)},
		{Name: "name", Type: schema.NewTypeFlags(schema.Width24, true, false, true, false, false, false)},
	}
}

// TestExportImportRoundTrip exercises the export(import(x))==x
// round-trip law: what is exported from one store, re-imported into a
// fresh store, must describe the same rows.
func TestExportImportRoundTrip(t *testing.T) {
	src := newTestStore(t)
	require.NoError(t, src.CreateTable("Phone", phoneColumns(), schema.Persistent))
	tbl, err := src.GetOrLoadTable("Phone")
	require.NoError(t, err)

	row1 := tablestore.NewRow(tbl.Schema)
	tablestore.SetInt(tbl.Schema.Columns[0], row1, 1, false)
	require.NoError(t, src.SetString(tbl.Schema.Columns[1], row1, "Abe", schema.Persistent))
	require.NoError(t, src.InsertRow(tbl, row1, -1, false))

	row2 := tablestore.NewRow(tbl.Schema)
	tablestore.SetInt(tbl.Schema.Columns[0], row2, 2, false)
	require.NoError(t, src.SetString(tbl.Schema.Columns[1], row2, "Bea", schema.Persistent))
	require.NoError(t, src.InsertRow(tbl, row2, -1, false))

	var buf bytes.Buffer
	require.NoError(t, ExportTable(src, "Phone", &buf, ""))

	exported := buf.String()
	lines := strings.Split(exported, "\r\n")
	require.Equal(t, "id\tname", lines[0])
	require.Equal(t, "Phone\tid", lines[2])

	dst := newTestStore(t)
	tableName, err := ImportTable(dst, strings.NewReader(exported), "")
	require.NoError(t, err)
	require.Equal(t, "Phone", tableName)

	dstTbl, err := dst.GetOrLoadTable("Phone")
	require.NoError(t, err)
	require.Len(t, dstTbl.Rows, 2)

	var exported2 bytes.Buffer
	require.NoError(t, ExportTable(dst, "Phone", &exported2, ""))
	require.Equal(t, exported, exported2.String())
}

func TestEscapeNullRoundTrip(t *testing.T) {
	require.Equal(t, "a\x11\x19b", escapeNull("a\x00b"))
	require.Equal(t, "a\x00b", unescapeNull("a\x11\x19b"))
}

func TestForceCodepageImport(t *testing.T) {
	store := newTestStore(t)
	body := "\r\n\r\n1251\t_ForceCodepage\r\n"
	name, err := ImportTable(store, strings.NewReader(body), "")
	require.NoError(t, err)
	require.Equal(t, "_ForceCodepage", name)
	require.Equal(t, 1251, store.Pool.Codepage())
}
