package view

import (
	"msidb/errs"
	"msidb/record"
	"msidb/schema"
	"msidb/tablestore"
)

// AlterView implements ALTER TABLE: HOLD/FREE ref-counting, and
// ADD/TEMPORARY column mutation.
type AlterView struct {
	unsupported
	Store  *tablestore.Store
	Table  string
	Hold   bool
	Free   bool
	Add    *schema.Column // nil unless this is an ADD
	AddHold bool
}

func NewAlterView(s *tablestore.Store, table string, hold, free bool, add *schema.Column, addHold bool) *AlterView {
	return &AlterView{unsupported: unsupported{op: "view.AlterView"}, Store: s, Table: table, Hold: hold, Free: free, Add: add, AddHold: addHold}
}

func (v *AlterView) Execute(*record.Record) error {
	t, err := v.Store.GetOrLoadTable(v.Table)
	if err != nil {
		return err
	}
	switch {
	case v.Hold:
		t.Schema.RefCount++
		return nil
	case v.Free:
		if t.Schema.RefCount > 0 {
			t.Schema.RefCount--
		}
		if t.Schema.RefCount == 0 && len(t.Rows) == 0 {
			return v.Store.DropTable(v.Table)
		}
		return nil
	case v.Add != nil:
		if v.AddHold {
			v.Add.RefCount = 1
		}
		return v.Store.AddColumn(t, v.Add)
	default:
		return errs.New("view.AlterView.Execute", errs.BadQuerySyntax)
	}
}

func (v *AlterView) Close() error { return nil }
