package tablestore

import (
	"encoding/binary"

	"msidb/schema"
)

// hashKey folds a column's on-disk bytes into the bucket key used by the
// per-column hash index. String columns hash the string-id directly
// since two rows with the same string-id necessarily hold the same
// string.
func hashKey(sc *schema.Column, data []byte) uint32 {
	switch {
	case sc.Type.IsString() && !sc.Type.IsBinary():
		return uint32(getStringID(sc, data))
	case sc.Type.Width() == schema.Width16:
		return uint32(binary.LittleEndian.Uint16(data[sc.ByteOffset:]))
	default:
		return binary.LittleEndian.Uint32(data[sc.ByteOffset:])
	}
}

// buildIndex lazily builds the hash index for column position pos
// (1-based), caching it on the table until the next write invalidates
// it (every insert/set/delete clears Table.hashIdx).
func (t *Table) buildIndex(pos int) map[uint32][]int {
	if t.hashIdx == nil {
		t.hashIdx = map[int]map[uint32][]int{}
	}
	if idx, ok := t.hashIdx[pos]; ok {
		return idx
	}
	col := t.Schema.Columns[pos-1]
	idx := map[uint32][]int{}
	for i, r := range t.Rows {
		k := hashKey(col, r.Data)
		idx[k] = append(idx[k], i)
	}
	t.hashIdx[pos] = idx
	return idx
}

// FindMatchingRows implements find_matching_rows: returns
// the indices of rows whose column at position pos holds value,
// building (and caching) a per-column hash index on first use.
func (t *Table) FindMatchingRows(pos int, value uint32) []int {
	idx := t.buildIndex(pos)
	return idx[value]
}
