package tablestore

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"msidb/schema"
	"msidb/storage"
	"msidb/stringpool"
)

// loadPool mirrors what the database facade does on open: read the pool
// streams (if any) and deserialise them before handing the pool to
// tablestore.Open.
func loadPool(t *testing.T, c storage.Container) *stringpool.Pool {
	t.Helper()
	poolR, err := c.ReadStream("_StringPool")
	if err != nil {
		p, err := stringpool.New(1252)
		require.NoError(t, err)
		return p
	}
	poolBlob, err := io.ReadAll(poolR)
	require.NoError(t, err)
	dataR, err := c.ReadStream("_StringData")
	require.NoError(t, err)
	dataBlob, err := io.ReadAll(dataR)
	require.NoError(t, err)
	p, err := stringpool.Deserialise(1252, poolBlob, dataBlob)
	require.NoError(t, err)
	return p
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	c, err := storage.OpenWrite(t.TempDir()+"/test.msi", true)
	require.NoError(t, err)
	pool, err := stringpool.New(1252)
	require.NoError(t, err)
	s, err := Open(c, pool)
	require.NoError(t, err)
	return s
}

func phoneColumns() []*schema.Column {
	return []*schema.Column{
		{Name: "Name", Type: schema.NewTypeFlags(schema.Width24, true, true, false, false, false, false)},
		{Name: "Number", Type: schema.NewTypeFlags(schema.Width32, false, false, true, false, false, false)},
	}
}

func TestCreateTableAndInsert(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTable("Phone", phoneColumns(), schema.Persistent))
	require.True(t, s.TableExists("Phone"))

	tbl, err := s.GetOrLoadTable("Phone")
	require.NoError(t, err)
	require.Len(t, tbl.Schema.Columns, 2)

	row := NewRow(tbl.Schema)
	require.NoError(t, s.SetString(tbl.Schema.Columns[0], row, "Alice", schema.Persistent))
	SetInt(tbl.Schema.Columns[1], row, 5551234, false)
	require.NoError(t, s.InsertRow(tbl, row, -1, false))
	require.Len(t, tbl.Rows, 1)

	name, ok := s.GetString(tbl.Schema.Columns[0], tbl.Rows[0].Data)
	require.True(t, ok)
	require.Equal(t, "Alice", name)
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTable("Phone", phoneColumns(), schema.Persistent))
	tbl, _ := s.GetOrLoadTable("Phone")

	row1 := NewRow(tbl.Schema)
	require.NoError(t, s.SetString(tbl.Schema.Columns[0], row1, "Bob", schema.Persistent))
	SetInt(tbl.Schema.Columns[1], row1, 1, false)
	require.NoError(t, s.InsertRow(tbl, row1, -1, false))

	row2 := NewRow(tbl.Schema)
	require.NoError(t, s.SetString(tbl.Schema.Columns[0], row2, "Bob", schema.Persistent))
	SetInt(tbl.Schema.Columns[1], row2, 2, false)
	require.Error(t, s.InsertRow(tbl, row2, -1, false))
}

func TestInsertMaintainsKeyOrder(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTable("Phone", phoneColumns(), schema.Persistent))
	tbl, _ := s.GetOrLoadTable("Phone")

	for _, name := range []string{"Charlie", "Alice", "Bob"} {
		row := NewRow(tbl.Schema)
		require.NoError(t, s.SetString(tbl.Schema.Columns[0], row, name, schema.Persistent))
		SetInt(tbl.Schema.Columns[1], row, 1, true)
		require.NoError(t, s.InsertRow(tbl, row, -1, false))
	}

	var order []string
	for _, r := range tbl.Rows {
		n, _ := s.GetString(tbl.Schema.Columns[0], r.Data)
		order = append(order, n)
	}
	require.Equal(t, []string{"Alice", "Bob", "Charlie"}, order)
}

func TestSetRowRejectsKeyColumn(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTable("Phone", phoneColumns(), schema.Persistent))
	tbl, _ := s.GetOrLoadTable("Phone")

	row := NewRow(tbl.Schema)
	require.NoError(t, s.SetString(tbl.Schema.Columns[0], row, "Dana", schema.Persistent))
	SetInt(tbl.Schema.Columns[1], row, 1, true)
	require.NoError(t, s.InsertRow(tbl, row, -1, false))

	patch := NewRow(tbl.Schema)
	require.NoError(t, s.SetString(tbl.Schema.Columns[0], patch, "Evan", schema.Persistent))
	err := s.SetRow(tbl, 0, patch, 1<<0)
	require.Error(t, err)
}

func TestSetRowUpdatesNonKeyColumn(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTable("Phone", phoneColumns(), schema.Persistent))
	tbl, _ := s.GetOrLoadTable("Phone")

	row := NewRow(tbl.Schema)
	require.NoError(t, s.SetString(tbl.Schema.Columns[0], row, "Dana", schema.Persistent))
	SetInt(tbl.Schema.Columns[1], row, 1, false)
	require.NoError(t, s.InsertRow(tbl, row, -1, false))

	patch := NewRow(tbl.Schema)
	SetInt(tbl.Schema.Columns[1], patch, 42, false)
	require.NoError(t, s.SetRow(tbl, 0, patch, 1<<1))

	v, null := GetInt(tbl.Schema.Columns[1], tbl.Rows[0].Data)
	require.False(t, null)
	require.Equal(t, int64(42), v)
}

func TestDeleteRowShiftsUp(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTable("Phone", phoneColumns(), schema.Persistent))
	tbl, _ := s.GetOrLoadTable("Phone")

	for _, name := range []string{"Alice", "Bob"} {
		row := NewRow(tbl.Schema)
		require.NoError(t, s.SetString(tbl.Schema.Columns[0], row, name, schema.Persistent))
		SetInt(tbl.Schema.Columns[1], row, 1, true)
		require.NoError(t, s.InsertRow(tbl, row, -1, false))
	}
	require.NoError(t, s.DeleteRow(tbl, 0))
	require.Len(t, tbl.Rows, 1)
	n, _ := s.GetString(tbl.Schema.Columns[0], tbl.Rows[0].Data)
	require.Equal(t, "Bob", n)
}

func TestDropTableRemovesCatalogueRows(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTable("Phone", phoneColumns(), schema.Persistent))
	require.NoError(t, s.DropTable("Phone"))
	require.False(t, s.TableExists("Phone"))
}

func TestCommitAndReload(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/test.msi"

	c, err := storage.OpenWrite(path, true)
	require.NoError(t, err)
	pool, err := stringpool.New(1252)
	require.NoError(t, err)
	s, err := Open(c, pool)
	require.NoError(t, err)

	require.NoError(t, s.CreateTable("Phone", phoneColumns(), schema.Persistent))
	tbl, _ := s.GetOrLoadTable("Phone")
	row := NewRow(tbl.Schema)
	require.NoError(t, s.SetString(tbl.Schema.Columns[0], row, "Alice", schema.Persistent))
	SetInt(tbl.Schema.Columns[1], row, 123, false)
	require.NoError(t, s.InsertRow(tbl, row, -1, false))

	require.NoError(t, s.Commit())

	c2, err := storage.OpenRead(path)
	require.NoError(t, err)
	pool2 := loadPool(t, c2)
	s2, err := Open(c2, pool2)
	require.NoError(t, err)
	require.True(t, s2.TableExists("Phone"))

	tbl2, err := s2.GetOrLoadTable("Phone")
	require.NoError(t, err)
	require.Len(t, tbl2.Rows, 1)
}

func TestAddColumnPreservesExistingData(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTable("Phone", phoneColumns(), schema.Persistent))
	tbl, _ := s.GetOrLoadTable("Phone")
	row := NewRow(tbl.Schema)
	require.NoError(t, s.SetString(tbl.Schema.Columns[0], row, "Alice", schema.Persistent))
	SetInt(tbl.Schema.Columns[1], row, 1, true)
	require.NoError(t, s.InsertRow(tbl, row, -1, false))

	require.NoError(t, s.AddColumn(tbl, &schema.Column{
		Name: "Extension",
		Type: schema.NewTypeFlags(schema.Width16, false, false, true, false, false, false),
	}))

	name, ok := s.GetString(tbl.Schema.Columns[0], tbl.Rows[0].Data)
	require.True(t, ok)
	require.Equal(t, "Alice", name)

	_, null := GetInt(tbl.Schema.Columns[2], tbl.Rows[0].Data)
	require.True(t, null)
}

func TestFindMatchingRows(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTable("Phone", phoneColumns(), schema.Persistent))
	tbl, _ := s.GetOrLoadTable("Phone")

	row := NewRow(tbl.Schema)
	require.NoError(t, s.SetString(tbl.Schema.Columns[0], row, "Alice", schema.Persistent))
	SetInt(tbl.Schema.Columns[1], row, 99, false)
	require.NoError(t, s.InsertRow(tbl, row, -1, false))

	matches := tbl.FindMatchingRows(1, uint32(func() int {
		id, _ := s.Pool.LookupID("Alice")
		return id
	}()))
	require.Equal(t, []int{0}, matches)
}
