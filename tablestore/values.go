package tablestore

import (
	"strconv"

	"msidb/schema"
	"msidb/streamname"
)

// NewRow allocates a zeroed (all-NULL) row for sc, for callers building
// up a row cell by cell before Store.InsertRow.
func NewRow(sc *schema.Table) []byte { return newRowData(sc) }

// GetString decodes the string stored in column c of row data, via pool.
func (s *Store) GetString(c *schema.Column, data []byte) (string, bool) {
	id := getStringID(c, data)
	if id == 0 {
		return "", c.Type.IsNullable()
	}
	return s.Pool.LookupString(id)
}

// SetString interns v into the pool and writes its id into column c of
// row data, bumping the pool refcount for persistence.
func (s *Store) SetString(c *schema.Column, data []byte, v string, persistence schema.Persistence) error {
	id, err := s.Pool.Intern(v, 1, persistence)
	if err != nil {
		return err
	}
	setStringID(c, data, id)
	return nil
}

// RowStreamName builds the composite stream name that identifies
// a row's BINARY cells: sc's table name followed by, for each KEY
// column in position order, a '.' plus the key value (literal string
// for string keys; bias-stripped decimal for numeric keys). Shared by
// view.TableView, the transform engine, and Database.Merge so all three
// compute the identical name for the identical row.
func (s *Store) RowStreamName(sc *schema.Table, data []byte) string {
	var parts []string
	for _, c := range sc.KeyColumns() {
		if c.Type.IsString() && !c.Type.IsBinary() {
			str, _ := s.GetString(c, data)
			parts = append(parts, str)
			continue
		}
		v, _ := getInt(c, data)
		parts = append(parts, strconv.FormatInt(v, 10))
	}
	return streamname.CellStreamName(sc.Name, parts...)
}

// GetInt decodes the integer stored in column c of row data.
func GetInt(c *schema.Column, data []byte) (int64, bool) { return getInt(c, data) }

// SetInt writes v (or NULL) into column c of row data.
func SetInt(c *schema.Column, data []byte, v int64, null bool) { setInt(c, data, v, null) }
