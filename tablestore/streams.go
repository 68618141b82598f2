package tablestore

import (
	"bytes"
	"io"

	"msidb/errs"
	"msidb/schema"
	"msidb/streamname"
)

// decodeRows parses a table's row stream: columns stored transposed
// (every row's bytes for column 1, then every row's bytes for column 2,
// ...), each column using its on-disk width (bytesPerStrRef for STRING
// columns, its fixed width otherwise).
func decodeRows(r io.Reader, sc *schema.Table, bytesPerStrRef int) ([]*Row, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	rowOnDiskWidth := 0
	for _, c := range sc.Columns {
		rowOnDiskWidth += c.Type.StoredWidth(bytesPerStrRef)
	}
	if rowOnDiskWidth == 0 {
		return nil, nil
	}
	if len(raw)%rowOnDiskWidth != 0 {
		return nil, errs.New("tablestore.decodeRows", errs.InvalidData)
	}
	n := len(raw) / rowOnDiskWidth
	return decodeRowsColumnMajor(raw, sc, bytesPerStrRef, n)
}

// decodeRowsColumnMajor parses the transposed on-disk layout: every
// row's bytes for column 1 first, then every row's bytes for column 2,
// and so on.
func decodeRowsColumnMajor(raw []byte, sc *schema.Table, bytesPerStrRef, n int) ([]*Row, error) {
	rows := make([]*Row, n)
	for i := range rows {
		rows[i] = &Row{Data: newRowData(sc), Persistent: true}
	}

	byteOff := 0
	for _, c := range sc.Columns {
		onDiskWidth := c.Type.StoredWidth(bytesPerStrRef)
		for i := 0; i < n; i++ {
			start := byteOff + i*onDiskWidth
			src := raw[start : start+onDiskWidth]
			if c.Type.IsString() && !c.Type.IsBinary() {
				id := 0
				for b := onDiskWidth - 1; b >= 0; b-- {
					id = id<<8 | int(src[b])
				}
				setStringID(c, rows[i].Data, id)
			} else {
				copy(rows[i].Data[c.ByteOffset:c.ByteOffset+onDiskWidth], src)
			}
		}
		byteOff += onDiskWidth * n
	}
	return rows, nil
}

// encodeRows serialises t's rows into the transposed column-major
// on-disk format. Only persistent rows are written (temporary rows
// never survive a commit).
func encodeRows(t *Table, bytesPerStrRef int) []byte {
	var persistent []*Row
	for _, r := range t.Rows {
		if r.Persistent {
			persistent = append(persistent, r)
		}
	}
	n := len(persistent)
	if n == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, c := range t.Schema.Columns {
		onDiskWidth := c.Type.StoredWidth(bytesPerStrRef)
		for _, r := range persistent {
			if c.Type.IsString() && !c.Type.IsBinary() {
				id := getStringID(c, r.Data)
				b := make([]byte, onDiskWidth)
				for i := 0; i < onDiskWidth; i++ {
					b[i] = byte(id >> (8 * i))
				}
				buf.Write(b)
			} else {
				buf.Write(r.Data[c.ByteOffset : c.ByteOffset+onDiskWidth])
			}
		}
	}
	return buf.Bytes()
}

// Commit re-encodes every dirty (in this implementation, every loaded)
// persistent table and writes it to its stream; temporary tables and
// temporary rows are dropped rather than persisted.
func (s *Store) Commit() error {
	bytesPerStrRef := s.Pool.BytesPerStrRef()
	for name, t := range s.tables {
		if t.Schema.Persistence != schema.Persistent {
			continue
		}
		data := encodeRows(t, bytesPerStrRef)
		w, err := s.container.CreateStream(streamname.EncodeTable(name))
		if err != nil {
			return errs.Wrap("tablestore.Commit", errs.OpenFailed, err)
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return errs.Wrap("tablestore.Commit", errs.FunctionFailed, err)
		}
		if err := w.Close(); err != nil {
			return errs.Wrap("tablestore.Commit", errs.FunctionFailed, err)
		}
	}
	poolBlob, dataBlob, err := s.Pool.Serialise()
	if err != nil {
		return errs.Wrap("tablestore.Commit", errs.FunctionFailed, err)
	}
	if err := s.writeStream("_StringPool", poolBlob); err != nil {
		return err
	}
	if err := s.writeStream("_StringData", dataBlob); err != nil {
		return err
	}
	return s.container.Commit()
}

func (s *Store) writeStream(name string, data []byte) error {
	w, err := s.container.CreateStream(name)
	if err != nil {
		return errs.Wrap("tablestore.writeStream", errs.OpenFailed, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errs.Wrap("tablestore.writeStream", errs.FunctionFailed, err)
	}
	return w.Close()
}
