// Package tablestore implements the persistent schema and row data for
// every user table, plus the two self-describing virtual tables
// _Tables and _Columns that every other table's shape is resolved
// from.
package tablestore

import (
	"msidb/errs"
	"msidb/schema"
	"msidb/storage"
	"msidb/streamname"
	"msidb/stringpool"
)

// Row is one fixed-width in-memory tuple. Data is row-major, one
// column's bytes after another in schema.Column.ByteOffset order,
// always using the 3-byte string-id width for string columns; on-disk
// encoding transposes this into the column-major stream format.
type Row struct {
	Data       []byte
	Persistent bool // false for rows inserted as TEMPORARY
}

// Table is the live, row-holding counterpart to schema.Table.
type Table struct {
	Schema *schema.Table
	Rows   []*Row

	hashIdx map[int]map[uint32][]int // column position -> raw stored value -> row indices
}

func newTable(s *schema.Table) *Table {
	return &Table{Schema: s}
}

// Store is the TableStore: the cache of live tables plus the pool and
// container they're serialised through.
type Store struct {
	Pool      *stringpool.Pool
	container storage.Container
	tables    map[string]*Table
}

// Open loads (or, for a brand-new container, initialises) _Tables and
// _Columns, without yet materialising any user table.
func Open(container storage.Container, pool *stringpool.Pool) (*Store, error) {
	s := &Store{Pool: pool, container: container, tables: map[string]*Table{}}
	if err := s.ensureCatalogue(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCatalogue() error {
	if _, ok := s.tables[tablesTableName]; !ok {
		t, err := s.loadOrInitTable(tablesSchema())
		if err != nil {
			return err
		}
		s.tables[tablesTableName] = t
	}
	if _, ok := s.tables[columnsTableName]; !ok {
		t, err := s.loadOrInitTable(columnsSchema())
		if err != nil {
			return err
		}
		s.tables[columnsTableName] = t
	}
	return nil
}

func (s *Store) loadOrInitTable(sc *schema.Table) (*Table, error) {
	t := newTable(sc)
	stream, err := s.container.ReadStream(streamname.EncodeTable(sc.Name))
	if err != nil {
		// Missing stream -> empty persistent table.
		return t, nil
	}
	defer stream.Close()
	rows, err := decodeRows(stream, sc, s.Pool.BytesPerStrRef())
	if err != nil {
		return nil, errs.Wrap("tablestore.loadOrInitTable", errs.InvalidData, err)
	}
	t.Rows = rows
	return t, nil
}

// GetOrLoadTable returns the cached table, or loads it by resolving its
// column list from _Columns and reading its row stream.
func (s *Store) GetOrLoadTable(name string) (*Table, error) {
	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	sc, err := s.schemaFromColumns(name)
	if err != nil {
		return nil, err
	}
	t, err := s.loadOrInitTable(sc)
	if err != nil {
		return nil, err
	}
	s.tables[name] = t
	return t, nil
}

// TableExists reports whether name appears in _Tables.
func (s *Store) TableExists(name string) bool {
	tbl := s.tables[tablesTableName]
	for _, r := range tbl.Rows {
		if decodeTablesRowName(s, r) == name {
			return true
		}
	}
	return false
}

// TableNames returns every user table name recorded in _Tables. Unlike
// Tables(), which only reflects tables already resolved into the live
// cache, this scans the full catalogue so callers like cmd/msiinfo's
// "tables" subcommand and the transform/merge engines see every table
// the database actually has, loaded or not.
func (s *Store) TableNames() []string {
	tbl := s.tables[tablesTableName]
	names := make([]string, 0, len(tbl.Rows))
	for _, r := range tbl.Rows {
		names = append(names, decodeTablesRowName(s, r))
	}
	return names
}

// CreateTable implements create_table.
func (s *Store) CreateTable(name string, columns []*schema.Column, persistence schema.Persistence) error {
	if s.TableExists(name) {
		return errs.New("tablestore.CreateTable", errs.BadQuerySyntax)
	}
	for _, c := range columns {
		c.Table = name
	}
	sc := &schema.Table{Name: name, Columns: columns, Persistence: persistence}
	sc.AssignOffsets()
	if sc.MixedTemporaryKey() {
		return errs.New("tablestore.CreateTable", errs.BadQuerySyntax)
	}

	if err := s.appendTablesRow(name, persistence == schema.Persistent); err != nil {
		return err
	}
	for _, c := range columns {
		if err := s.appendColumnsRow(c); err != nil {
			return err
		}
	}
	s.tables[name] = newTable(sc)
	return nil
}

// DropTable implements drop_table.
func (s *Store) DropTable(name string) error {
	if !s.TableExists(name) {
		return errs.New("tablestore.DropTable", errs.InvalidTable)
	}
	if err := s.removeColumnsRows(name); err != nil {
		return err
	}
	if err := s.removeTablesRow(name); err != nil {
		return err
	}
	delete(s.tables, name)
	return nil
}

// Container exposes the underlying StorageIO boundary, used by the
// streams/storages virtual tables and the transform engine.
func (s *Store) Container() storage.Container { return s.container }

// Tables returns the live table cache, keyed by name. Exported for the
// commit path and for merge/transform callers that need to enumerate
// every user table.
func (s *Store) Tables() map[string]*Table { return s.tables }

const (
	tablesTableName  = "_Tables"
	columnsTableName = "_Columns"
)

func tablesSchema() *schema.Table {
	t := &schema.Table{
		Name: tablesTableName,
		Columns: []*schema.Column{
			{Name: "Name", Type: schema.NewTypeFlags(schema.Width24, true, true, false, false, false, false)},
		},
		Persistence: schema.Persistent,
	}
	t.AssignOffsets()
	return t
}

func columnsSchema() *schema.Table {
	t := &schema.Table{
		Name: columnsTableName,
		Columns: []*schema.Column{
			{Name: "Table", Type: schema.NewTypeFlags(schema.Width24, true, true, false, false, false, false)},
			{Name: "Number", Type: schema.NewTypeFlags(schema.Width16, false, true, false, false, false, false)},
			{Name: "Name", Type: schema.NewTypeFlags(schema.Width24, true, false, false, false, false, false)},
			{Name: "Type", Type: schema.NewTypeFlags(schema.Width16, false, false, false, false, false, false)},
		},
		Persistence: schema.Persistent,
	}
	t.AssignOffsets()
	return t
}
