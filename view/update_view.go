package view

import (
	"msidb/errs"
	"msidb/record"
)

// UpdateView executes a compiled SET list against the rows its WhereView
// matches.
type UpdateView struct {
	unsupported
	Where      *WhereView
	SetColumns []int // 1-based column indices in Where's single table, parallel to SetValues
	SetValues  []InsertValue
}

func NewUpdateView(where *WhereView, setColumns []int, setValues []InsertValue) *UpdateView {
	return &UpdateView{unsupported: unsupported{op: "view.UpdateView"}, Where: where, SetColumns: setColumns, SetValues: setValues}
}

// Execute runs the update: the trailing N wildcards of
// bindings (N = total fields - number of SET columns) are extracted
// into a sub-record for the WhereView; the leading fields supply SET
// wildcards.
func (v *UpdateView) Execute(bindings *record.Record) error {
	n := len(v.SetColumns)
	var whereBindings *record.Record
	if bindings != nil {
		total := bindings.FieldCount()
		whereCount := total - n
		if whereCount < 0 {
			return errs.New("view.UpdateView.Execute", errs.InvalidParameter)
		}
		whereBindings = record.New(whereCount)
		for i := 1; i <= whereCount; i++ {
			src := n + i
			if bindings.IsString(src) {
				whereBindings.SetString(i, bindings.GetString(src))
			} else if !bindings.IsNull(src) {
				whereBindings.SetInt(i, bindings.GetInt(src))
			}
		}
	}

	if err := v.Where.Execute(whereBindings); err != nil {
		return err
	}
	rows, _, err := v.Where.Dimensions()
	if err != nil {
		return err
	}

	rec := record.New(n)
	mask := uint32(0)
	wildcard := 1
	for i, val := range v.SetValues {
		field := i + 1
		mask |= 1 << uint(i)
		switch {
		case val.IsWildcard:
			if bindings == nil {
				return errs.New("view.UpdateView.Execute", errs.InvalidParameter)
			}
			if bindings.IsString(wildcard) {
				rec.SetString(field, bindings.GetString(wildcard))
			} else if !bindings.IsNull(wildcard) {
				rec.SetInt(field, bindings.GetInt(wildcard))
			}
			wildcard++
		case val.IsString:
			rec.SetString(field, val.Str)
		default:
			rec.SetInt(field, val.Int)
		}
	}

	for r := 0; r < rows; r++ {
		if err := v.Where.SetRow(r, v.reorder(rec), v.reorderMask(mask)); err != nil {
			return err
		}
	}
	return nil
}

// reorder maps rec's SET-list-ordered fields onto the target table's
// actual column positions (SetColumns[i] names that column for SET
// field i+1).
func (v *UpdateView) reorder(rec *record.Record) *record.Record {
	width := 0
	for _, c := range v.SetColumns {
		if c > width {
			width = c
		}
	}
	out := record.New(width)
	for i, col := range v.SetColumns {
		field := i + 1
		if rec.IsString(field) {
			out.SetString(col, rec.GetString(field))
		} else if !rec.IsNull(field) {
			out.SetInt(col, rec.GetInt(field))
		}
	}
	return out
}

func (v *UpdateView) reorderMask(mask uint32) uint32 {
	out := uint32(0)
	for i, col := range v.SetColumns {
		if mask&(1<<uint(i)) != 0 {
			out |= 1 << uint(col-1)
		}
	}
	return out
}

func (v *UpdateView) Close() error { return v.Where.Close() }
