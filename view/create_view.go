package view

import (
	"msidb/record"
	"msidb/schema"
	"msidb/tablestore"
)

// CreateView executes CREATE TABLE: a fully TEMPORARY, non-HOLD table
// succeeds without ever touching the store.
type CreateView struct {
	unsupported
	Store       *tablestore.Store
	Name        string
	Columns     []*schema.Column
	Persistence schema.Persistence
	Hold        bool
}

func NewCreateView(s *tablestore.Store, name string, cols []*schema.Column, persistence schema.Persistence, hold bool) *CreateView {
	return &CreateView{unsupported: unsupported{op: "view.CreateView"}, Store: s, Name: name, Columns: cols, Persistence: persistence, Hold: hold}
}

func (v *CreateView) allTemporary() bool {
	for _, c := range v.Columns {
		if !c.Type.IsTemporary() {
			return false
		}
	}
	return len(v.Columns) > 0
}

func (v *CreateView) Execute(*record.Record) error {
	if v.allTemporary() && !v.Hold {
		return nil
	}
	if err := v.Store.CreateTable(v.Name, v.Columns, v.Persistence); err != nil {
		return err
	}
	if v.Hold {
		t, err := v.Store.GetOrLoadTable(v.Name)
		if err != nil {
			return err
		}
		t.Schema.RefCount++
	}
	return nil
}

func (v *CreateView) Close() error { return nil }
