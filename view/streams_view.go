package view

import (
	"bytes"
	"io"

	"msidb/errs"
	"msidb/record"
	"msidb/schema"
	"msidb/storage"
	"msidb/streamname"
)

// StreamsView exposes the container's top-level streams (or, for
// StorageKind, substorages) as a two-column (Name, Data) virtual table.
// Name is decoded via package streamname (reversed from its on-disk
// encoded form); Data is the stream's contents.
type StreamsView struct {
	unsupported
	Container storage.Container
	WantKind  storage.EntryKind

	names []string // decoded names, stable order fixed at Execute time
}

func NewStreamsView(c storage.Container, kind storage.EntryKind) *StreamsView {
	return &StreamsView{unsupported: unsupported{op: "view.StreamsView"}, Container: c, WantKind: kind}
}

func (v *StreamsView) Execute(*record.Record) error {
	entries, err := v.Container.EnumChildren()
	if err != nil {
		return errs.Wrap("view.StreamsView.Execute", errs.FunctionFailed, err)
	}
	v.names = v.names[:0]
	for _, e := range entries {
		if e.Kind != v.WantKind {
			continue
		}
		v.names = append(v.names, streamname.Decode(e.Name))
	}
	return nil
}

func (v *StreamsView) Close() error { return nil }

func (v *StreamsView) Dimensions() (int, int, error) { return len(v.names), 2, nil }

func (v *StreamsView) ColumnInfo(n int) (ColumnInfo, error) {
	switch n {
	case 1:
		return ColumnInfo{Name: "Name", Type: schema.NewTypeFlags(schema.Width24, true, true, false, false, false, false)}, nil
	case 2:
		return ColumnInfo{Name: "Data", Type: schema.NewTypeFlags(schema.Width16, false, false, false, false, false, true)}, nil
	default:
		return ColumnInfo{}, errs.New("view.StreamsView.ColumnInfo", errs.InvalidParameter)
	}
}

func (v *StreamsView) checkRow(row int) error {
	if row < 0 || row >= len(v.names) {
		return errs.New("view.StreamsView.checkRow", errs.InvalidParameter)
	}
	return nil
}

// FetchInt is meaningless for either column's real content (Name is a
// string, Data a stream); it exists only to satisfy the View contract.
func (v *StreamsView) FetchInt(row, col int) (uint32, error) {
	if err := v.checkRow(row); err != nil {
		return 0, err
	}
	return 0, nil
}

func (v *StreamsView) FetchStream(row, col int) (io.ReadSeeker, error) {
	if err := v.checkRow(row); err != nil {
		return nil, err
	}
	if col != 2 {
		return nil, errs.New("view.StreamsView.FetchStream", errs.FunctionFailed)
	}
	rs, err := v.Container.ReadStream(streamname.Encode(v.names[row]))
	if err != nil {
		return nil, errs.Wrap("view.StreamsView.FetchStream", errs.NotFound, err)
	}
	data, err := io.ReadAll(rs)
	rs.Close()
	if err != nil {
		return nil, errs.Wrap("view.StreamsView.FetchStream", errs.FunctionFailed, err)
	}
	return bytes.NewReader(data), nil
}

func (v *StreamsView) GetRow(row int) (*record.Record, error) {
	if err := v.checkRow(row); err != nil {
		return nil, err
	}
	rec := record.New(2)
	rec.SetString(1, v.names[row])
	if rs, err := v.FetchStream(row, 2); err == nil {
		buf, _ := io.ReadAll(rs)
		rec.LoadStream(2, buf)
	}
	return rec, nil
}

// InsertRow writes a new stream to the container.
func (v *StreamsView) InsertRow(rec *record.Record, row int64, temporary bool) error {
	name := rec.GetString(1)
	w, err := v.Container.CreateStream(streamname.Encode(name))
	if err != nil {
		return errs.Wrap("view.StreamsView.InsertRow", errs.OpenFailed, err)
	}
	if rec.IsStream(2) {
		data, err := io.ReadAll(streamCursor{rec})
		if err != nil {
			w.Close()
			return err
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return errs.Wrap("view.StreamsView.InsertRow", errs.FunctionFailed, err)
		}
	}
	if err := w.Close(); err != nil {
		return errs.Wrap("view.StreamsView.InsertRow", errs.FunctionFailed, err)
	}
	v.names = append(v.names, name)
	return nil
}

// DeleteRow removes the stream from the container.
func (v *StreamsView) DeleteRow(row int) error {
	if err := v.checkRow(row); err != nil {
		return err
	}
	if err := v.Container.Remove(streamname.Encode(v.names[row])); err != nil {
		return errs.Wrap("view.StreamsView.DeleteRow", errs.NotFound, err)
	}
	v.names = append(v.names[:row], v.names[row+1:]...)
	return nil
}

// SetRow with mask bit 0 clear replaces the stream's contents without
// renaming it.
func (v *StreamsView) SetRow(row int, rec *record.Record, mask uint32) error {
	if err := v.checkRow(row); err != nil {
		return err
	}
	if mask&1 != 0 {
		return errs.New("view.StreamsView.SetRow", errs.FunctionFailed)
	}
	w, err := v.Container.CreateStream(streamname.Encode(v.names[row]))
	if err != nil {
		return errs.Wrap("view.StreamsView.SetRow", errs.OpenFailed, err)
	}
	if rec.IsStream(2) {
		data, err := io.ReadAll(streamCursor{rec})
		if err != nil {
			w.Close()
			return err
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return errs.Wrap("view.StreamsView.SetRow", errs.FunctionFailed, err)
		}
	}
	return w.Close()
}

// streamCursor adapts Record.SaveStream's chunked reads into an
// io.Reader for io.ReadAll.
type streamCursor struct{ rec *record.Record }

func (s streamCursor) Read(p []byte) (int, error) {
	n, _, err := s.rec.SaveStream(2, p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
