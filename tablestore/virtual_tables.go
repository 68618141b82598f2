package tablestore

import (
	"msidb/errs"
	"msidb/schema"
)

// decodeTablesRowName returns the table name stored in a _Tables row.
func decodeTablesRowName(s *Store, r *Row) string {
	col := s.tables[tablesTableName].Schema.Columns[0]
	str, _ := s.Pool.LookupString(getStringID(col, r.Data))
	return str
}

func (s *Store) appendTablesRow(name string, persistent bool) error {
	t := s.tables[tablesTableName]
	data := newRowData(t.Schema)
	id, err := s.Pool.Intern(name, 1, schema.Persistent)
	if err != nil {
		return err
	}
	setStringID(t.Schema.Columns[0], data, id)
	return s.InsertRow(t, data, -1, !persistent)
}

func (s *Store) removeTablesRow(name string) error {
	t := s.tables[tablesTableName]
	for i, r := range t.Rows {
		if decodeTablesRowName(s, r) == name {
			// DeleteRow releases the row's Name string-id.
			return s.DeleteRow(t, i)
		}
	}
	return errs.New("tablestore.removeTablesRow", errs.InvalidTable)
}

func (s *Store) appendColumnsRow(c *schema.Column) error {
	t := s.tables[columnsTableName]
	cols := t.Schema.Columns
	data := newRowData(t.Schema)

	tableID, err := s.Pool.Intern(c.Table, 1, schema.Persistent)
	if err != nil {
		return err
	}
	nameID, err := s.Pool.Intern(c.Name, 1, schema.Persistent)
	if err != nil {
		return err
	}
	setStringID(cols[0], data, tableID)
	setInt(cols[1], data, int64(c.Position), false)
	setStringID(cols[2], data, nameID)
	setInt(cols[3], data, int64(c.Type), false)
	return s.InsertRow(t, data, -1, false)
}

func (s *Store) removeColumnsRows(table string) error {
	t := s.tables[columnsTableName]
	for {
		idx := -1
		for i, r := range t.Rows {
			if s.columnsRowTable(r) == table {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		// DeleteRow releases the row's Table and Name string-ids.
		if err := s.DeleteRow(t, idx); err != nil {
			return err
		}
	}
}

func (s *Store) columnsRowTable(r *Row) string {
	col := s.tables[columnsTableName].Schema.Columns[0]
	str, _ := s.Pool.LookupString(getStringID(col, r.Data))
	return str
}

// schemaFromColumns resolves a user table's column list by scanning
// _Columns for its rows, ordered by Number. The resulting schema is
// always Persistent; _Tables is not consulted for persistence.
func (s *Store) schemaFromColumns(name string) (*schema.Table, error) {
	if !s.TableExists(name) {
		return nil, errs.New("tablestore.schemaFromColumns", errs.InvalidTable)
	}
	ct := s.tables[columnsTableName]
	type found struct {
		pos  int
		name string
		typ  schema.TypeFlags
	}
	var cols []found
	for _, r := range ct.Rows {
		if s.columnsRowTable(r) != name {
			continue
		}
		pos, _ := getInt(ct.Schema.Columns[1], r.Data)
		nameID := getStringID(ct.Schema.Columns[2], r.Data)
		colName, _ := s.Pool.LookupString(nameID)
		typ, _ := getInt(ct.Schema.Columns[3], r.Data)
		cols = append(cols, found{pos: int(pos), name: colName, typ: schema.TypeFlags(typ)})
	}
	if len(cols) == 0 {
		return nil, errs.New("tablestore.schemaFromColumns", errs.InvalidTable)
	}
	// Selection sort by position: column counts are small (msi tables
	// rarely exceed a few dozen columns) so an O(n^2) sort keeps this
	// free of an extra import.
	for i := 0; i < len(cols); i++ {
		min := i
		for j := i + 1; j < len(cols); j++ {
			if cols[j].pos < cols[min].pos {
				min = j
			}
		}
		cols[i], cols[min] = cols[min], cols[i]
	}

	sc := &schema.Table{Name: name, Persistence: schema.Persistent}
	for _, f := range cols {
		sc.Columns = append(sc.Columns, &schema.Column{Table: name, Name: f.name, Type: f.typ})
	}
	sc.AssignOffsets()
	return sc, nil
}
