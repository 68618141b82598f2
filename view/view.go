// Package view implements the ten-node view pipeline: every parsed
// statement compiles into a tree of View values that share one
// polymorphic contract, grounded on
// original_source/libmsi/{select,where,distinct,insert,update,create,alter,delete,drop}.c.
package view

import (
	"io"

	"msidb/errs"
	"msidb/record"
	"msidb/schema"
)

// ModifyMode enumerates the subset of MSI's MODIFY_* verbs this engine
// implements: only the ones a view actually describes a behavior for.
type ModifyMode int

const (
	ModifyUpdate ModifyMode = iota
	ModifyInsert
	ModifyDelete
)

// OrderColumn names one column of a sort request, 1-based against the
// view's own column numbering.
type OrderColumn struct {
	Column int
}

// ColumnInfo describes one output column.
type ColumnInfo struct {
	Name      string
	Type      schema.TypeFlags
	Temporary bool
	Table     string
}

// View is the contract every pipeline node implements. Not every node
// supports every method; unsupported ones return a *errs.Error with
// Kind == errs.FunctionFailed.
type View interface {
	Execute(bindings *record.Record) error
	Close() error
	Dimensions() (rows, cols int, err error)
	ColumnInfo(n int) (ColumnInfo, error)
	FetchInt(row, col int) (uint32, error)
	FetchStream(row, col int) (io.ReadSeeker, error)
	GetRow(row int) (*record.Record, error)
	SetRow(row int, rec *record.Record, mask uint32) error
	InsertRow(rec *record.Record, row int64, temporary bool) error
	DeleteRow(row int) error
	FindMatchingRows(col int, value uint32) ([]int, error)
	Modify(mode ModifyMode, rec *record.Record, row int) error
	AddColumn(name string, typ schema.TypeFlags, hold bool) error
	RemoveColumn(name string) error
	Drop() error
	Sort(order []OrderColumn) error
}

// unsupported is embedded by every concrete view so it only has to
// define the methods it actually supports; everything else reports
// FUNCTION_FAILED.
type unsupported struct{ op string }

func (u unsupported) Execute(*record.Record) error { return errs.New(u.op+".Execute", errs.FunctionFailed) }
func (u unsupported) Close() error                 { return nil }
func (u unsupported) Dimensions() (int, int, error) {
	return 0, 0, errs.New(u.op+".Dimensions", errs.FunctionFailed)
}
func (u unsupported) ColumnInfo(int) (ColumnInfo, error) {
	return ColumnInfo{}, errs.New(u.op+".ColumnInfo", errs.FunctionFailed)
}
func (u unsupported) FetchInt(int, int) (uint32, error) {
	return 0, errs.New(u.op+".FetchInt", errs.FunctionFailed)
}
func (u unsupported) FetchStream(int, int) (io.ReadSeeker, error) {
	return nil, errs.New(u.op+".FetchStream", errs.FunctionFailed)
}
func (u unsupported) GetRow(int) (*record.Record, error) {
	return nil, errs.New(u.op+".GetRow", errs.FunctionFailed)
}
func (u unsupported) SetRow(int, *record.Record, uint32) error {
	return errs.New(u.op+".SetRow", errs.FunctionFailed)
}
func (u unsupported) InsertRow(*record.Record, int64, bool) error {
	return errs.New(u.op+".InsertRow", errs.FunctionFailed)
}
func (u unsupported) DeleteRow(int) error { return errs.New(u.op+".DeleteRow", errs.FunctionFailed) }
func (u unsupported) FindMatchingRows(int, uint32) ([]int, error) {
	return nil, errs.New(u.op+".FindMatchingRows", errs.FunctionFailed)
}
func (u unsupported) Modify(ModifyMode, *record.Record, int) error {
	return errs.New(u.op+".Modify", errs.FunctionFailed)
}
func (u unsupported) AddColumn(string, schema.TypeFlags, bool) error {
	return errs.New(u.op+".AddColumn", errs.FunctionFailed)
}
func (u unsupported) RemoveColumn(string) error {
	return errs.New(u.op+".RemoveColumn", errs.FunctionFailed)
}
func (u unsupported) Drop() error                   { return errs.New(u.op+".Drop", errs.FunctionFailed) }
func (u unsupported) Sort(order []OrderColumn) error { return errs.New(u.op+".Sort", errs.FunctionFailed) }
