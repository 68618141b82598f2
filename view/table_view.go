package view

import (
	"io"

	"msidb/errs"
	"msidb/record"
	"msidb/schema"
	"msidb/tablestore"
)

// TableView is a direct pass-through to TableStore.
type TableView struct {
	unsupported
	Store *tablestore.Store
	Table *tablestore.Table
}

// NewTableView resolves name via the store and wraps it.
func NewTableView(s *tablestore.Store, name string) (*TableView, error) {
	t, err := s.GetOrLoadTable(name)
	if err != nil {
		return nil, err
	}
	return &TableView{unsupported: unsupported{op: "view.TableView"}, Store: s, Table: t}, nil
}

func (v *TableView) Execute(*record.Record) error { return nil }

func (v *TableView) Dimensions() (int, int, error) {
	return len(v.Table.Rows), len(v.Table.Schema.Columns), nil
}

func (v *TableView) ColumnInfo(n int) (ColumnInfo, error) {
	if n < 1 || n > len(v.Table.Schema.Columns) {
		return ColumnInfo{}, errs.New("view.TableView.ColumnInfo", errs.InvalidParameter)
	}
	c := v.Table.Schema.Columns[n-1]
	return ColumnInfo{Name: c.Name, Type: c.Type, Temporary: c.Type.IsTemporary(), Table: v.Table.Schema.Name}, nil
}

// FetchInt returns the raw stored value (including bias) for numeric
// columns, or the string-id for STRING columns.
func (v *TableView) FetchInt(row, col int) (uint32, error) {
	if row < 0 || row >= len(v.Table.Rows) {
		return 0, errs.New("view.TableView.FetchInt", errs.InvalidParameter)
	}
	c := v.Table.Schema.Columns[col-1]
	return rawFieldValue(c, v.Table.Rows[row].Data), nil
}

func rawFieldValue(c *schema.Column, data []byte) uint32 {
	off := c.ByteOffset
	switch {
	case c.Type.IsString() && !c.Type.IsBinary():
		return uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16
	case c.Type.Width() == schema.Width16:
		return uint32(data[off]) | uint32(data[off+1])<<8
	default:
		return uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16 | uint32(data[off+3])<<24
	}
}

// streamNameForRow builds the per-row composite stream name via the
// shared tablestore.Store.RowStreamName.
func (v *TableView) streamNameForRow(row int) (string, error) {
	if row < 0 || row >= len(v.Table.Rows) {
		return "", errs.New("view.TableView.streamNameForRow", errs.InvalidParameter)
	}
	return v.Store.RowStreamName(v.Table.Schema, v.Table.Rows[row].Data), nil
}

func (v *TableView) FetchStream(row, col int) (io.ReadSeeker, error) {
	name, err := v.streamNameForRow(row)
	if err != nil {
		return nil, err
	}
	_ = col
	rs, err := v.Store.Container().ReadStream(name)
	if err != nil {
		return nil, errs.Wrap("view.TableView.FetchStream", errs.NotFound, err)
	}
	data, err := io.ReadAll(rs)
	rs.Close()
	if err != nil {
		return nil, errs.Wrap("view.TableView.FetchStream", errs.FunctionFailed, err)
	}
	return &seekableBytes{data: data}, nil
}

func (v *TableView) GetRow(row int) (*record.Record, error) {
	if row < 0 || row >= len(v.Table.Rows) {
		return nil, errs.New("view.TableView.GetRow", errs.InvalidParameter)
	}
	cols := v.Table.Schema.Columns
	rec := record.New(len(cols))
	data := v.Table.Rows[row].Data
	for i, c := range cols {
		field := i + 1
		switch {
		case c.Type.IsBinary():
			rs, err := v.FetchStream(row, field)
			if err == nil {
				buf, _ := io.ReadAll(rs)
				rec.LoadStream(field, buf)
			}
		case c.Type.IsString():
			s, ok := v.Store.GetString(c, data)
			if ok && s != "" {
				rec.SetString(field, s)
			}
		default:
			val, null := tablestore.GetInt(c, data)
			if !null {
				rec.SetInt(field, int32(val))
			}
		}
	}
	return rec, nil
}

func (v *TableView) SetRow(row int, rec *record.Record, mask uint32) error {
	if row < 0 || row >= len(v.Table.Rows) {
		return errs.New("view.TableView.SetRow", errs.InvalidParameter)
	}
	data := tablestore.NewRow(v.Table.Schema)
	if err := v.encodeInto(rec, data, mask); err != nil {
		return err
	}
	return v.Store.SetRow(v.Table, row, data, uint64(mask))
}

func (v *TableView) InsertRow(rec *record.Record, row int64, temporary bool) error {
	data := tablestore.NewRow(v.Table.Schema)
	if err := v.encodeInto(rec, data, ^uint32(0)); err != nil {
		return err
	}
	return v.Store.InsertRow(v.Table, data, int(row), temporary)
}

// encodeInto writes rec's fields 1..n into data for every column whose
// bit is set in mask.
func (v *TableView) encodeInto(rec *record.Record, data []byte, mask uint32) error {
	persistence := schema.Persistent
	if v.Table.Schema.Persistence != schema.Persistent {
		persistence = schema.Transient
	}
	for i, c := range v.Table.Schema.Columns {
		field := i + 1
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if c.Type.IsBinary() {
			continue
		}
		if rec.IsNull(field) {
			continue
		}
		if c.Type.IsString() {
			if err := v.Store.SetString(c, data, rec.GetString(field), persistence); err != nil {
				return err
			}
			continue
		}
		tablestore.SetInt(c, data, int64(rec.GetInt(field)), false)
	}
	return nil
}

func (v *TableView) DeleteRow(row int) error {
	return v.Store.DeleteRow(v.Table, row)
}

func (v *TableView) FindMatchingRows(col int, value uint32) ([]int, error) {
	return v.Table.FindMatchingRows(col, value), nil
}

func (v *TableView) AddColumn(name string, typ schema.TypeFlags, hold bool) error {
	c := &schema.Column{Table: v.Table.Schema.Name, Name: name, Type: typ}
	if hold {
		c.RefCount = 1
	}
	return v.Store.AddColumn(v.Table, c)
}

func (v *TableView) RemoveColumn(name string) error {
	return v.Store.RemoveColumn(v.Table, name)
}

func (v *TableView) Drop() error {
	return v.Store.DropTable(v.Table.Schema.Name)
}

// seekableBytes is an in-memory io.ReadSeeker for a fetched stream.
type seekableBytes struct {
	data []byte
	pos  int
}

func (s *seekableBytes) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

func (s *seekableBytes) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		base = len(s.data)
	default:
		return 0, errs.New("view.seekableBytes.Seek", errs.InvalidParameter)
	}
	next := base + int(offset)
	if next < 0 {
		return 0, errs.New("view.seekableBytes.Seek", errs.InvalidParameter)
	}
	s.pos = next
	return int64(s.pos), nil
}
