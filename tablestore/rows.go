package tablestore

import (
	"encoding/binary"
	"sort"

	"msidb/errs"
	"msidb/schema"
)

const biasInt32 = uint32(0x80000000)
const biasInt16 = uint16(0x8000)

// getInt reads the biased/unbiased integer at column c out of row data,
// returning (value, isNull).
func getInt(sc *schema.Column, data []byte) (int64, bool) {
	off := sc.ByteOffset
	if sc.Type.IsInt16() {
		raw := binary.LittleEndian.Uint16(data[off:])
		if raw == 0 {
			return 0, true
		}
		return int64(int16(raw - biasInt16)), false
	}
	raw := binary.LittleEndian.Uint32(data[off:])
	if raw == 0 {
		return 0, true
	}
	return int64(int32(raw - biasInt32)), false
}

func setInt(sc *schema.Column, data []byte, v int64, null bool) {
	off := sc.ByteOffset
	if sc.Type.IsInt16() {
		if null {
			binary.LittleEndian.PutUint16(data[off:], 0)
			return
		}
		binary.LittleEndian.PutUint16(data[off:], uint16(int16(v))+biasInt16)
		return
	}
	if null {
		binary.LittleEndian.PutUint32(data[off:], 0)
		return
	}
	binary.LittleEndian.PutUint32(data[off:], uint32(int32(v))+biasInt32)
}

// getStringID reads the in-memory 3-byte string-id at column c.
func getStringID(sc *schema.Column, data []byte) int {
	off := sc.ByteOffset
	return int(data[off]) | int(data[off+1])<<8 | int(data[off+2])<<16
}

func setStringID(sc *schema.Column, data []byte, id int) {
	off := sc.ByteOffset
	data[off] = byte(id)
	data[off+1] = byte(id >> 8)
	data[off+2] = byte(id >> 16)
}

// newRowData allocates a zeroed row of sc's in-memory width.
func newRowData(sc *schema.Table) []byte {
	return make([]byte, sc.RowWidth())
}

// compareKey orders two rows by their composite key, column by column,
// the way insert_row's binary search relies on. String columns compare
// by decoded string value (via the pool), not by string-id.
func compareKey(sc *schema.Table, pool interface{ LookupString(int) (string, bool) }, a, b []byte) int {
	for _, c := range sc.KeyColumns() {
		if c.Type.IsString() && !c.Type.IsBinary() {
			sa, _ := pool.LookupString(getStringID(c, a))
			sb, _ := pool.LookupString(getStringID(c, b))
			if sa != sb {
				if sa < sb {
					return -1
				}
				return 1
			}
			continue
		}
		va, nullA := getInt(c, a)
		vb, nullB := getInt(c, b)
		if nullA != nullB {
			if nullA {
				return -1
			}
			return 1
		}
		if va != vb {
			if va < vb {
				return -1
			}
			return 1
		}
	}
	return 0
}

// InsertRow implements insert_row.
func (s *Store) InsertRow(t *Table, data []byte, rowPosition int, temporary bool) error {
	for _, r := range t.Rows {
		if compareKey(t.Schema, s.Pool, r.Data, data) == 0 {
			return errs.New("tablestore.InsertRow", errs.FunctionFailed)
		}
	}
	if err := s.checkNullability(t.Schema, data); err != nil {
		return err
	}

	idx := rowPosition
	if idx < 0 {
		idx = sort.Search(len(t.Rows), func(i int) bool {
			return compareKey(t.Schema, s.Pool, t.Rows[i].Data, data) >= 0
		})
	}
	if idx > len(t.Rows) {
		idx = len(t.Rows)
	}
	row := &Row{Data: data, Persistent: !temporary}
	t.Rows = append(t.Rows, nil)
	copy(t.Rows[idx+1:], t.Rows[idx:])
	t.Rows[idx] = row
	t.hashIdx = nil
	return nil
}

func (s *Store) checkNullability(sc *schema.Table, data []byte) error {
	for _, c := range sc.Columns {
		if c.Type.IsNullable() {
			continue
		}
		if c.Type.IsString() && !c.Type.IsBinary() {
			if getStringID(c, data) == 0 {
				return errs.New("tablestore.checkNullability", errs.InvalidData)
			}
			continue
		}
		if c.Type.IsBinary() {
			continue
		}
		if _, null := getInt(c, data); null {
			return errs.New("tablestore.checkNullability", errs.InvalidData)
		}
	}
	return nil
}

// FindRowByKey returns the index of the row in t whose KEY columns
// equal those of data, comparing string columns by decoded value (via
// the pool) the same way compareKey does. Used by the transform engine
// and by Database.Merge, both of which must resolve a foreign row's
// identity against this store's own rows before deciding whether to
// insert, update, or skip it.
func (s *Store) FindRowByKey(t *Table, data []byte) (int, bool) {
	for i, r := range t.Rows {
		if compareKey(t.Schema, s.Pool, r.Data, data) == 0 {
			return i, true
		}
	}
	return 0, false
}

// SetRow implements set_row: masked column overwrite,
// refusing to touch KEY columns. mask has one bit per column position
// (bit i-1 for column i); only set bits are written.
func (s *Store) SetRow(t *Table, rowIndex int, data []byte, mask uint64) error {
	if rowIndex < 0 || rowIndex >= len(t.Rows) {
		return errs.New("tablestore.SetRow", errs.InvalidParameter)
	}
	row := t.Rows[rowIndex]
	persistence := s.tablePersistence(t)
	for _, c := range t.Schema.Columns {
		if mask&(1<<uint(c.Position-1)) == 0 {
			continue
		}
		if c.Type.IsKey() {
			return errs.New("tablestore.SetRow", errs.FunctionFailed)
		}
		width := c.Type.Width()
		if c.Type.IsString() && !c.Type.IsBinary() {
			width = schema.Width24
			if oldID := getStringID(c, row.Data); oldID != 0 {
				if err := s.Pool.Release(oldID, persistence); err != nil {
					return err
				}
			}
		}
		copy(row.Data[c.ByteOffset:c.ByteOffset+int(width)], data[c.ByteOffset:c.ByteOffset+int(width)])
	}
	t.hashIdx = nil
	return nil
}

// DeleteRow implements delete_row: full removal, shifting
// subsequent rows up. Rows are never tombstoned.
func (s *Store) DeleteRow(t *Table, rowIndex int) error {
	if rowIndex < 0 || rowIndex >= len(t.Rows) {
		return errs.New("tablestore.DeleteRow", errs.InvalidParameter)
	}
	row := t.Rows[rowIndex]
	persistence := s.tablePersistence(t)
	for _, c := range t.Schema.Columns {
		if !c.Type.IsString() || c.Type.IsBinary() {
			continue
		}
		if id := getStringID(c, row.Data); id != 0 {
			if err := s.Pool.Release(id, persistence); err != nil {
				return err
			}
		}
	}
	t.Rows = append(t.Rows[:rowIndex], t.Rows[rowIndex+1:]...)
	t.hashIdx = nil
	return nil
}

// tablePersistence reports the pool refcount bucket a row's string
// cells were interned into, matching view.TableView's derivation from
// the table's schema-level persistence.
func (s *Store) tablePersistence(t *Table) schema.Persistence {
	if t.Schema.Persistence != schema.Persistent {
		return schema.Transient
	}
	return schema.Persistent
}

// AddColumn implements add_column: appends a new column,
// rebuilds the layout, and extends every existing row with a zeroed
// (null) value for it.
func (s *Store) AddColumn(t *Table, c *schema.Column) error {
	if t.Schema.ColumnByName(c.Name) != nil {
		return errs.New("tablestore.AddColumn", errs.InvalidParameter)
	}
	oldLayout := snapshotLayout(t.Schema)
	t.Schema.Columns = append(t.Schema.Columns, c)
	t.Schema.AssignOffsets()
	rebuildRows(t, oldLayout)
	return nil
}

// RemoveColumn implements remove_column: drops the named
// column and repacks every row.
func (s *Store) RemoveColumn(t *Table, name string) error {
	idx := -1
	for i, c := range t.Schema.Columns {
		if c.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errs.New("tablestore.RemoveColumn", errs.InvalidField)
	}
	oldLayout := snapshotLayout(t.Schema)
	t.Schema.Columns = append(t.Schema.Columns[:idx], t.Schema.Columns[idx+1:]...)
	t.Schema.AssignOffsets()
	rebuildRows(t, oldLayout)
	return nil
}

type colLayout struct {
	offset int
	width  int
}

// snapshotLayout captures each column's current byte offset and width by
// name, before a schema mutation invalidates schema.Column.ByteOffset.
func snapshotLayout(sc *schema.Table) map[string]colLayout {
	m := make(map[string]colLayout, len(sc.Columns))
	for _, c := range sc.Columns {
		w := int(c.Type.Width())
		if c.Type.IsString() && !c.Type.IsBinary() {
			w = int(schema.Width24)
		}
		m[c.Name] = colLayout{offset: c.ByteOffset, width: w}
	}
	return m
}

// rebuildRows re-encodes every row of t against its current (just
// mutated) schema, copying each surviving column's bytes from where it
// used to live and zero-filling (NULL) any column not present before.
func rebuildRows(t *Table, oldLayout map[string]colLayout) {
	for _, row := range t.Rows {
		old := row.Data
		fresh := newRowData(t.Schema)
		for _, c := range t.Schema.Columns {
			prev, ok := oldLayout[c.Name]
			if !ok {
				continue
			}
			width := int(c.Type.Width())
			if c.Type.IsString() && !c.Type.IsBinary() {
				width = int(schema.Width24)
			}
			if width != prev.width {
				continue
			}
			copy(fresh[c.ByteOffset:c.ByteOffset+width], old[prev.offset:prev.offset+width])
		}
		row.Data = fresh
	}
}
