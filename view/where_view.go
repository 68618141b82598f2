package view

import (
	"io"
	"sort"

	"msidb/errs"
	"msidb/record"
)

const invalidRow = -1

// rowEntry is one successful join result: one row index per table in
// WhereView.Tables order (join step 4).
type rowEntry struct {
	values []int
}

// WhereView filters a join of one or more table-like children through a
// compiled expression tree.
type WhereView struct {
	unsupported
	Tables []View      // one per FROM entry, in original (pre-reorder) order
	Names  []string    // table names, parallel to Tables
	Expr   *CExpr       // nil means "no predicate": every combination matches
	order  []OrderColumn

	reorder []int // Tables[reorder[i]] is the i-th table scanned
	rows    []rowEntry
}

// NewWhereView builds a WhereView over tables/names with the given
// compiled predicate (nil for no WHERE clause).
func NewWhereView(tables []View, names []string, expr *CExpr) *WhereView {
	return &WhereView{unsupported: unsupported{op: "view.WhereView"}, Tables: tables, Names: names, Expr: expr}
}

func (v *WhereView) Sort(order []OrderColumn) error {
	v.order = order
	return nil
}

// reorderTables implements join step 2: tables referenced by a
// constant-equality predicate (column = literal) come first, then
// tables joined to an already-placed table via an equality predicate,
// then everything else in original order.
func (v *WhereView) reorderTables() []int {
	n := len(v.Tables)
	placed := make([]bool, n)
	order := make([]int, 0, n)

	constEq := map[int]bool{}
	joinEq := map[int]bool{}
	collectEqualities(v.Expr, constEq, joinEq)

	for i := 0; i < n; i++ {
		if constEq[i] {
			order = append(order, i)
			placed[i] = true
		}
	}
	for i := 0; i < n; i++ {
		if !placed[i] && joinEq[i] {
			order = append(order, i)
			placed[i] = true
		}
	}
	for i := 0; i < n; i++ {
		if !placed[i] {
			order = append(order, i)
		}
	}
	return order
}

// collectEqualities walks expr once, marking tableIndex in constEq when
// it appears in a `col = literal` comparison and in joinEq when it
// appears in a `col = col` comparison against another table.
func collectEqualities(e *CExpr, constEq, joinEq map[int]bool) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ExprBinary:
		if e.BinOp == BinEq {
			markEquality(e.Left, e.Right, constEq, joinEq)
			markEquality(e.Right, e.Left, constEq, joinEq)
		}
		collectEqualities(e.Left, constEq, joinEq)
		collectEqualities(e.Right, constEq, joinEq)
	case ExprStringCompare:
		collectEqualities(e.Left, constEq, joinEq)
		collectEqualities(e.Right, constEq, joinEq)
	case ExprUnary:
		collectEqualities(e.Child, constEq, joinEq)
	}
}

func markEquality(side, other *CExpr, constEq, joinEq map[int]bool) {
	if side == nil || side.Kind != ExprColumnRef {
		return
	}
	switch other.Kind {
	case ExprIntLiteral, ExprStringLiteral:
		constEq[side.TableIndex] = true
	case ExprColumnRef:
		joinEq[side.TableIndex] = true
	}
}

// Execute runs the nested-loop join.
func (v *WhereView) Execute(bindings *record.Record) error {
	for _, t := range v.Tables {
		if err := t.Execute(bindings); err != nil {
			return err
		}
	}
	rowCounts := make([]int, len(v.Tables))
	for i, t := range v.Tables {
		rows, _, err := t.Dimensions()
		if err != nil {
			return err
		}
		rowCounts[i] = rows
		if rows == 0 {
			v.rows = nil
			return nil // short-circuit: empty result set
		}
	}

	v.reorder = v.reorderTables()
	v.rows = nil
	cur := make([]int, len(v.Tables))
	for i := range cur {
		cur[i] = invalidRow
	}
	if err := v.scan(0, cur, rowCounts, bindings); err != nil {
		return err
	}
	if len(v.order) > 0 {
		v.sortRows()
	}
	return nil
}

// scan implements the recursive nested-loop descent: depth indexes into
// v.reorder (the scan order), not the original table order.
func (v *WhereView) scan(depth int, cur []int, rowCounts []int, bindings *record.Record) error {
	if depth == len(v.reorder) {
		values := make([]int, len(cur))
		copy(values, cur)
		v.rows = append(v.rows, rowEntry{values: values})
		return nil
	}
	tableIdx := v.reorder[depth]
	for r := 0; r < rowCounts[tableIdx]; r++ {
		cur[tableIdx] = r
		result, truth, err := evalExpr(v.Expr, v.Tables, cur, bindings)
		if err != nil {
			return err
		}
		if result == evalFalse && truth {
			continue // SUCCESS and false: prune
		}
		// SUCCESS-and-true or CONTINUE: descend.
		if err := v.scan(depth+1, cur, rowCounts, bindings); err != nil {
			return err
		}
	}
	cur[tableIdx] = invalidRow
	return nil
}

// sortRows implements join step 5: primary key is the live
// ordering-column values, tie-broken by the natural tuple order of row
// indices.
func (v *WhereView) sortRows() {
	sort.SliceStable(v.rows, func(a, b int) bool {
		for _, oc := range v.order {
			va, _ := v.FetchInt(a, oc.Column)
			vb, _ := v.FetchInt(b, oc.Column)
			if va != vb {
				return va < vb
			}
		}
		for i := range v.rows[a].values {
			if v.rows[a].values[i] != v.rows[b].values[i] {
				return v.rows[a].values[i] < v.rows[b].values[i]
			}
		}
		return false
	})
}

func (v *WhereView) Close() error {
	for _, t := range v.Tables {
		if err := t.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (v *WhereView) Dimensions() (int, int, error) {
	cols := 0
	for _, t := range v.Tables {
		_, c, err := t.Dimensions()
		if err != nil {
			return 0, 0, err
		}
		cols += c
	}
	return len(v.rows), cols, nil
}

// locate resolves output column n to (table index, child column index).
func (v *WhereView) locate(n int) (int, int, error) {
	for ti, t := range v.Tables {
		_, c, err := t.Dimensions()
		if err != nil {
			return 0, 0, err
		}
		if n <= c {
			return ti, n, nil
		}
		n -= c
	}
	return 0, 0, errs.New("view.WhereView.locate", errs.InvalidParameter)
}

func (v *WhereView) ColumnInfo(n int) (ColumnInfo, error) {
	ti, ci, err := v.locate(n)
	if err != nil {
		return ColumnInfo{}, err
	}
	return v.Tables[ti].ColumnInfo(ci)
}

func (v *WhereView) FetchInt(row, col int) (uint32, error) {
	if row < 0 || row >= len(v.rows) {
		return 0, errs.New("view.WhereView.FetchInt", errs.InvalidParameter)
	}
	ti, ci, err := v.locate(col)
	if err != nil {
		return 0, err
	}
	childRow := v.rows[row].values[ti]
	if childRow == invalidRow {
		return 0, nil
	}
	return v.Tables[ti].FetchInt(childRow, ci)
}

func (v *WhereView) FetchStream(row, col int) (io.ReadSeeker, error) {
	if row < 0 || row >= len(v.rows) {
		return nil, errs.New("view.WhereView.FetchStream", errs.InvalidParameter)
	}
	ti, ci, err := v.locate(col)
	if err != nil {
		return nil, err
	}
	return v.Tables[ti].FetchStream(v.rows[row].values[ti], ci)
}

func (v *WhereView) GetRow(row int) (*record.Record, error) {
	if row < 0 || row >= len(v.rows) {
		return nil, errs.New("view.WhereView.GetRow", errs.InvalidParameter)
	}
	_, cols, err := v.Dimensions()
	if err != nil {
		return nil, err
	}
	rec := record.New(cols)
	col := 1
	for ti, t := range v.Tables {
		childRow := v.rows[row].values[ti]
		if childRow == invalidRow {
			_, c, _ := t.Dimensions()
			col += c
			continue
		}
		childRec, err := t.GetRow(childRow)
		if err != nil {
			return nil, err
		}
		for i := 1; i <= childRec.FieldCount(); i++ {
			if childRec.IsString(i) {
				rec.SetString(col, childRec.GetString(i))
			} else if !childRec.IsNull(i) {
				rec.SetInt(col, childRec.GetInt(i))
			}
			col++
		}
	}
	return rec, nil
}

// DeleteRow and SetRow delegate to the single table of an unjoined
// WhereView (the only shape UPDATE/DELETE's grammar produces: one FROM
// table, no joins), translating the WhereView's result-row index into
// that table's underlying row index.
func (v *WhereView) singleTableRow(row int) (int, error) {
	if len(v.Tables) != 1 {
		return 0, errs.New("view.WhereView.singleTableRow", errs.FunctionFailed)
	}
	if row < 0 || row >= len(v.rows) {
		return 0, errs.New("view.WhereView.singleTableRow", errs.InvalidParameter)
	}
	return v.rows[row].values[0], nil
}

func (v *WhereView) DeleteRow(row int) error {
	r, err := v.singleTableRow(row)
	if err != nil {
		return err
	}
	return v.Tables[0].DeleteRow(r)
}

func (v *WhereView) SetRow(row int, rec *record.Record, mask uint32) error {
	r, err := v.singleTableRow(row)
	if err != nil {
		return err
	}
	return v.Tables[0].SetRow(r, rec, mask)
}

func (v *WhereView) FindMatchingRows(col int, value uint32) ([]int, error) {
	ti, ci, err := v.locate(col)
	if err != nil {
		return nil, err
	}
	childMatches, err := v.Tables[ti].FindMatchingRows(ci, value)
	if err != nil {
		return nil, err
	}
	matchSet := make(map[int]bool, len(childMatches))
	for _, m := range childMatches {
		matchSet[m] = true
	}
	var out []int
	for i, re := range v.rows {
		if matchSet[re.values[ti]] {
			out = append(out, i)
		}
	}
	return out, nil
}

// firstKeyTable returns the first joined table that carries a KEY
// column, for Modify(UPDATE)'s multi-table-join rule.
func (v *WhereView) firstKeyTable() (int, error) {
	for ti, t := range v.Tables {
		_, cols, err := t.Dimensions()
		if err != nil {
			return 0, err
		}
		for c := 1; c <= cols; c++ {
			info, err := t.ColumnInfo(c)
			if err != nil {
				return 0, err
			}
			if info.Type.IsKey() {
				return ti, nil
			}
		}
	}
	return 0, errs.New("view.WhereView.firstKeyTable", errs.FunctionFailed)
}

// Modify(UPDATE) applies rec to the matching row of the first joined
// table carrying a KEY column: find the row whose key equals rec's
// first field, diff the non-key cells, and set_row with the computed
// mask.
func (v *WhereView) Modify(mode ModifyMode, rec *record.Record, row int) error {
	if mode != ModifyUpdate {
		return errs.New("view.WhereView.Modify", errs.FunctionFailed)
	}
	ti, err := v.firstKeyTable()
	if err != nil {
		return err
	}
	t := v.Tables[ti]
	_, cols, err := t.Dimensions()
	if err != nil {
		return err
	}
	rows, _, err := t.Dimensions()
	if err != nil {
		return err
	}
	var target = -1
	for r := 0; r < rows; r++ {
		existing, err := t.GetRow(r)
		if err != nil {
			return err
		}
		if existing.CompareField(rec, 1) {
			target = r
			break
		}
	}
	if target < 0 {
		return errs.New("view.WhereView.Modify", errs.FunctionFailed)
	}
	existing, err := t.GetRow(target)
	if err != nil {
		return err
	}
	mask := uint32(0)
	for c := 1; c <= cols; c++ {
		info, err := t.ColumnInfo(c)
		if err != nil {
			return err
		}
		if info.Type.IsKey() || rec.IsNull(c) {
			continue
		}
		if rec.IsString(c) {
			existing.SetString(c, rec.GetString(c))
		} else {
			existing.SetInt(c, rec.GetInt(c))
		}
		mask |= 1 << uint(c-1)
	}
	return t.SetRow(target, existing, mask)
}
