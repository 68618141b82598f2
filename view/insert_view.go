package view

import (
	"msidb/errs"
	"msidb/record"
)

// InsertView builds a row from a VALUES list plus wildcard parameters
// and appends it through its TableView.
type InsertView struct {
	unsupported
	Table     *TableView
	Select    *SelectView // resolves the column order of the INSERT's column list
	Values    []InsertValue
	Temporary bool
}

// InsertValue is one parsed VALUES entry.
type InsertValue struct {
	IsWildcard bool
	IsString   bool
	Str        string
	Int        int32
}

func NewInsertView(table *TableView, sel *SelectView, values []InsertValue, temporary bool) *InsertView {
	return &InsertView{unsupported: unsupported{op: "view.InsertView"}, Table: table, Select: sel, Values: values, Temporary: temporary}
}

// Execute runs insert in five steps.
func (v *InsertView) Execute(bindings *record.Record) error {
	if err := v.Select.Execute(bindings); err != nil {
		return err
	}

	rec := record.New(len(v.Values))
	wildcard := 1
	for i, val := range v.Values {
		field := i + 1
		switch {
		case val.IsWildcard:
			if bindings == nil {
				return errs.New("view.InsertView.Execute", errs.InvalidParameter)
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

	_, parentCols, err := v.Table.Dimensions()
	if err != nil {
		return err
	}
	reordered := v.reorderByName(rec, parentCols)

	rowPosition := int64(-1)
	for _, c := range v.Table.Table.Schema.KeyColumns() {
		if reordered.IsNull(c.Position) {
			rowPosition = 0
			break
		}
	}
	return v.Table.InsertRow(reordered, rowPosition, v.Temporary)
}

// reorderByName maps the SelectView's column order onto the table's
// actual column order by name comparison (insert step 3).
func (v *InsertView) reorderByName(rec *record.Record, parentWidth int) *record.Record {
	out := record.New(parentWidth)
	for i, parentCol := range v.Select.Cols {
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

func (v *InsertView) Close() error { return v.Table.Close() }
