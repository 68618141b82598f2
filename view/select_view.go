package view

import (
	"io"

	"msidb/errs"
	"msidb/record"
)

// SelectView projects a parent view's columns. Cols[i-1] names the
// parent column number for output column i; 0 is a literal-empty
// placeholder.
type SelectView struct {
	unsupported
	Parent View
	Cols   []int
	Names  []string // output column names, parallel to Cols
}

func (v *SelectView) Execute(bindings *record.Record) error { return v.Parent.Execute(bindings) }
func (v *SelectView) Close() error                          { return v.Parent.Close() }

func (v *SelectView) Dimensions() (int, int, error) {
	rows, _, err := v.Parent.Dimensions()
	if err != nil {
		return 0, 0, err
	}
	return rows, len(v.Cols), nil
}

func (v *SelectView) ColumnInfo(n int) (ColumnInfo, error) {
	if n < 1 || n > len(v.Cols) {
		return ColumnInfo{}, errs.New("view.SelectView.ColumnInfo", errs.InvalidParameter)
	}
	if v.Cols[n-1] == 0 {
		return ColumnInfo{Name: v.Names[n-1]}, nil
	}
	return v.Parent.ColumnInfo(v.Cols[n-1])
}

func (v *SelectView) FetchInt(row, col int) (uint32, error) {
	if col < 1 || col > len(v.Cols) {
		return 0, errs.New("view.SelectView.FetchInt", errs.InvalidParameter)
	}
	if v.Cols[col-1] == 0 {
		return 0, nil
	}
	return v.Parent.FetchInt(row, v.Cols[col-1])
}

func (v *SelectView) FetchStream(row, col int) (io.ReadSeeker, error) {
	if col < 1 || col > len(v.Cols) || v.Cols[col-1] == 0 {
		return nil, errs.New("view.SelectView.FetchStream", errs.FunctionFailed)
	}
	return v.Parent.FetchStream(row, v.Cols[col-1])
}

func (v *SelectView) GetRow(row int) (*record.Record, error) {
	rec := record.New(len(v.Cols))
	for i := range v.Cols {
		field := i + 1
		if v.Cols[i] == 0 {
			continue
		}
		parentRec, err := v.Parent.GetRow(row)
		if err != nil {
			return nil, err
		}
		if parentRec.IsString(v.Cols[i]) {
			rec.SetString(field, parentRec.GetString(v.Cols[i]))
		} else if !parentRec.IsNull(v.Cols[i]) {
			rec.SetInt(field, parentRec.GetInt(v.Cols[i]))
		}
	}
	return rec, nil
}

// reorderToParent builds a parent-width record from rec, placing each
// SelectView column's value at the parent's column index.
func (v *SelectView) reorderToParent(rec *record.Record, parentWidth int) *record.Record {
	out := record.New(parentWidth)
	for i, parentCol := range v.Cols {
		if parentCol == 0 {
			continue
		}
		field := i + 1
		if rec.IsString(field) {
			out.SetString(parentCol, rec.GetString(field))
		} else if !rec.IsNull(field) {
			out.SetInt(parentCol, rec.GetInt(field))
		}
	}
	return out
}

func (v *SelectView) SetRow(row int, rec *record.Record, mask uint32) error {
	_, parentCols, err := v.Parent.Dimensions()
	if err != nil {
		return err
	}
	reordered := v.reorderToParent(rec, parentCols)
	parentMask := uint32(0)
	for i, parentCol := range v.Cols {
		if parentCol != 0 && mask&(1<<uint(i)) != 0 {
			parentMask |= 1 << uint(parentCol-1)
		}
	}
	return v.Parent.SetRow(row, reordered, parentMask)
}

func (v *SelectView) InsertRow(rec *record.Record, row int64, temporary bool) error {
	_, parentCols, err := v.Parent.Dimensions()
	if err != nil {
		return err
	}
	return v.Parent.InsertRow(v.reorderToParent(rec, parentCols), row, temporary)
}

// Modify(UPDATE) reads the existing row, overlays non-key fields from
// rec, and writes the merged record back, refusing binary fields.
func (v *SelectView) Modify(mode ModifyMode, rec *record.Record, row int) error {
	if mode != ModifyUpdate {
		return errs.New("view.SelectView.Modify", errs.FunctionFailed)
	}
	existing, err := v.GetRow(row)
	if err != nil {
		return err
	}
	mask := uint32(0)
	for i := range v.Cols {
		field := i + 1
		info, err := v.ColumnInfo(field)
		if err != nil {
			return err
		}
		if info.Type.IsKey() {
			continue
		}
		if info.Type.IsBinary() {
			if !rec.IsNull(field) {
				return errs.New("view.SelectView.Modify", errs.FunctionFailed)
			}
			continue
		}
		if rec.IsNull(field) {
			continue
		}
		if rec.IsString(field) {
			existing.SetString(field, rec.GetString(field))
		} else {
			existing.SetInt(field, rec.GetInt(field))
		}
		mask |= 1 << uint(i)
	}
	return v.SetRow(row, existing, mask)
}
