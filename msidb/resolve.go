package msidb

import (
	"strings"

	"msidb/errs"
	"msidb/schema"
	"msidb/view"
)

// joinInfo resolves (possibly table-qualified) column names against the
// FROM list of a compiling SELECT/UPDATE/DELETE statement, in original
// (pre-reorder) table order — the same order WhereView numbers its
// joined columns in.
type joinInfo struct {
	tables []*view.TableView
	names  []string
}

func (j *joinInfo) asViews() []view.View {
	out := make([]view.View, len(j.tables))
	for i, t := range j.tables {
		out[i] = t
	}
	return out
}

// splitQualified splits "Table.Column" into ("Table", "Column"), or
// ("", "Column") for an unqualified reference.
func splitQualified(name string) (table, col string) {
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

func wireFor(t schema.TypeFlags) view.WireKind {
	switch {
	case t.IsString():
		return view.WireStringID
	case t.Width() == schema.Width16:
		return view.WireInt16
	default:
		return view.WireInt32
	}
}

// resolve finds the (table index, 1-based column position) a qualified
// or bare column name refers to, failing BadQuerySyntax on an ambiguous
// bare reference and InvalidField on no match.
func (j *joinInfo) resolve(qualified string) (tableIdx, colIdx int, wire view.WireKind, err error) {
	tbl, col := splitQualified(qualified)
	if tbl != "" {
		for i, name := range j.names {
			if name != tbl {
				continue
			}
			c := j.tables[i].Table.Schema.ColumnByName(col)
			if c == nil {
				return 0, 0, 0, errs.New("msidb.joinInfo.resolve", errs.InvalidField)
			}
			return i, c.Position, wireFor(c.Type), nil
		}
		return 0, 0, 0, errs.New("msidb.joinInfo.resolve", errs.InvalidTable)
	}
	found := -1
	foundCol := 0
	var foundType schema.TypeFlags
	for i, t := range j.tables {
		c := t.Table.Schema.ColumnByName(col)
		if c == nil {
			continue
		}
		if found >= 0 {
			return 0, 0, 0, errs.New("msidb.joinInfo.resolve", errs.BadQuerySyntax)
		}
		found, foundCol, foundType = i, c.Position, c.Type
	}
	if found < 0 {
		return 0, 0, 0, errs.New("msidb.joinInfo.resolve", errs.InvalidField)
	}
	return found, foundCol, wireFor(foundType), nil
}

// globalIndex maps a (table index, column position) pair onto
// WhereView's flattened column numbering: the sum of every preceding
// table's column count, plus the column's own 1-based position.
func (j *joinInfo) globalIndex(tableIdx, colIdx int) int {
	base := 0
	for i := 0; i < tableIdx; i++ {
		base += len(j.tables[i].Table.Schema.Columns)
	}
	return base + colIdx
}

func (j *joinInfo) totalColumns() int {
	n := 0
	for _, t := range j.tables {
		n += len(t.Table.Schema.Columns)
	}
	return n
}
