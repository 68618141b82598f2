package view

import (
	"msidb/record"
	"msidb/tablestore"
)

// DropView drops a named table via TableStore.
type DropView struct {
	unsupported
	Store *tablestore.Store
	Table string
}

func NewDropView(s *tablestore.Store, table string) *DropView {
	return &DropView{unsupported: unsupported{op: "view.DropView"}, Store: s, Table: table}
}

func (v *DropView) Execute(*record.Record) error { return v.Store.DropTable(v.Table) }
func (v *DropView) Close() error                 { return nil }
