// compile.go translates a parsed sqlparse.Statement into a bound
// view.View pipeline, resolving every column reference to the
// (table index, column index, wire kind) triple view's nodes expect
// and every string literal compared against a STRING column to that
// column's pool string-id, grounded on sqlparse's grammar and the
// view package's node constructors.
package msidb

import (
	"msidb/errs"
	"msidb/record"
	"msidb/schema"
	"msidb/sqlparse"
	"msidb/view"
)

func prepare(db *Database, sql string) (*Query, error) {
	stmt, err := sqlparse.Parse(sql)
	if err != nil {
		return nil, err
	}
	c := &compiler{db: db}
	root, err := c.compileStatement(stmt)
	if err != nil {
		return nil, err
	}
	return &Query{db: db, root: root}, nil
}

type compiler struct {
	db *Database
}

func (c *compiler) compileStatement(stmt *sqlparse.Statement) (view.View, error) {
	switch {
	case stmt.Create != nil:
		return c.compileCreate(stmt.Create)
	case stmt.Drop != nil:
		return c.compileDrop(stmt.Drop)
	case stmt.Alter != nil:
		return c.compileAlter(stmt.Alter)
	case stmt.Insert != nil:
		return c.compileInsert(stmt.Insert)
	case stmt.Select != nil:
		return c.compileSelect(stmt.Select)
	case stmt.Update != nil:
		return c.compileUpdate(stmt.Update)
	case stmt.Delete != nil:
		return c.compileDelete(stmt.Delete)
	}
	return nil, errs.New("msidb.compileStatement", errs.BadQuerySyntax)
}

// columnTypeFlags maps a parsed column type word onto the packed
// TypeFlags schema.Column stores.
func columnTypeFlags(cs sqlparse.ColumnSpec) schema.TypeFlags {
	switch cs.TypeWord {
	case "CHAR", "LONGCHAR":
		return schema.NewTypeFlags(schema.Width24, true, cs.Key, cs.Nullable, cs.Localizable, cs.Temporary, false)
	case "LONG":
		return schema.NewTypeFlags(schema.Width32, false, cs.Key, cs.Nullable, cs.Localizable, cs.Temporary, false)
	case "OBJECT":
		return schema.NewTypeFlags(schema.Width16, false, cs.Key, cs.Nullable, cs.Localizable, cs.Temporary, true)
	default: // INT, SHORT
		return schema.NewTypeFlags(schema.Width16, false, cs.Key, cs.Nullable, cs.Localizable, cs.Temporary, false)
	}
}

func columnFromSpec(cs sqlparse.ColumnSpec) *schema.Column {
	return &schema.Column{Name: cs.Name, Type: columnTypeFlags(cs)}
}

func (c *compiler) compileCreate(ct *sqlparse.CreateTable) (view.View, error) {
	cols := make([]*schema.Column, len(ct.Columns))
	for i, cs := range ct.Columns {
		cols[i] = columnFromSpec(cs)
	}
	return view.NewCreateView(c.db.Store, ct.Table, cols, schema.Persistent, ct.Hold), nil
}

func (c *compiler) compileDrop(dt *sqlparse.DropTable) (view.View, error) {
	return view.NewDropView(c.db.Store, dt.Table), nil
}

func (c *compiler) compileAlter(at *sqlparse.AlterTable) (view.View, error) {
	var add *schema.Column
	if at.Add != nil {
		add = columnFromSpec(*at.Add)
	}
	return view.NewAlterView(c.db.Store, at.Table, at.Hold, at.Free, add, at.AddHold), nil
}

func compileInsertValue(e sqlparse.Expr) view.InsertValue {
	switch {
	case e.Wildcard:
		return view.InsertValue{IsWildcard: true}
	case e.StringLiteral != nil:
		return view.InsertValue{IsString: true, Str: *e.StringLiteral}
	default:
		return view.InsertValue{Int: derefInt(e.IntLiteral)}
	}
}

func derefInt(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func (c *compiler) compileInsert(ins *sqlparse.Insert) (view.View, error) {
	table, err := view.NewTableView(c.db.Store, ins.Table)
	if err != nil {
		return nil, err
	}
	cols := make([]int, len(ins.Columns))
	names := make([]string, len(ins.Columns))
	for i, name := range ins.Columns {
		col := table.Table.Schema.ColumnByName(name)
		if col == nil {
			return nil, errs.New("msidb.compileInsert", errs.InvalidField)
		}
		cols[i] = col.Position
		names[i] = name
	}
	sel := &view.SelectView{Parent: table, Cols: cols, Names: names}
	values := make([]view.InsertValue, len(ins.Values))
	for i, v := range ins.Values {
		values[i] = compileInsertValue(v)
	}
	return view.NewInsertView(table, sel, values, ins.Temporary), nil
}

// buildJoin constructs the FROM list's TableViews, in source order.
func (c *compiler) buildJoin(tableNames []string) (*joinInfo, error) {
	j := &joinInfo{names: tableNames}
	for _, name := range tableNames {
		t, err := view.NewTableView(c.db.Store, name)
		if err != nil {
			return nil, err
		}
		j.tables = append(j.tables, t)
	}
	return j, nil
}

func isEmptyExpr(e sqlparse.Expr) bool {
	return e.BinOp == nil && e.UnaryOp == nil && e.ColumnRef == "" &&
		e.IntLiteral == nil && e.StringLiteral == nil && !e.Wildcard
}

func (c *compiler) compileWhere(e sqlparse.Expr, j *joinInfo, wildcardCount *int) (*view.CExpr, error) {
	if isEmptyExpr(e) {
		return nil, nil
	}
	return c.compileExpr(&e, j, wildcardCount)
}

func (c *compiler) compileExpr(e *sqlparse.Expr, j *joinInfo, wc *int) (*view.CExpr, error) {
	switch {
	case e.UnaryOp != nil:
		child, err := c.compileColumnRef(e.UnaryChild, j)
		if err != nil {
			return nil, err
		}
		return &view.CExpr{Kind: view.ExprUnary, UnaryOp: mapUnaryOp(*e.UnaryOp), Child: child}, nil
	case e.BinOp != nil && (*e.BinOp == sqlparse.OpAnd || *e.BinOp == sqlparse.OpOr):
		left, err := c.compileExpr(e.Left, j, wc)
		if err != nil {
			return nil, err
		}
		right, err := c.compileExpr(e.Right, j, wc)
		if err != nil {
			return nil, err
		}
		op := view.BinAnd
		if *e.BinOp == sqlparse.OpOr {
			op = view.BinOr
		}
		return &view.CExpr{Kind: view.ExprBinary, BinOp: op, Left: left, Right: right}, nil
	case e.BinOp != nil:
		return c.compileComparison(e, j, wc)
	default:
		return nil, errs.New("msidb.compileExpr", errs.BadQuerySyntax)
	}
}

func (c *compiler) compileColumnRef(e *sqlparse.Expr, j *joinInfo) (*view.CExpr, error) {
	tableIdx, colIdx, wire, err := j.resolve(e.ColumnRef)
	if err != nil {
		return nil, err
	}
	return &view.CExpr{Kind: view.ExprColumnRef, TableIndex: tableIdx, ColIndex: colIdx, Wire: wire}, nil
}

// compileComparison compiles `left OP right`, where left is always a
// column reference. A string literal compared against a STRING column
// is resolved at compile time to that column's pool string-id, since
// view's resolveOperand never decodes a STRING column's raw id to an
// actual string at evaluation time — only the compiled pool-id
// comparison path works.
func (c *compiler) compileComparison(e *sqlparse.Expr, j *joinInfo, wc *int) (*view.CExpr, error) {
	left, err := c.compileColumnRef(e.Left, j)
	if err != nil {
		return nil, err
	}
	var right *view.CExpr
	switch {
	case e.Right.IntLiteral != nil:
		right = &view.CExpr{Kind: view.ExprIntLiteral, IntVal: *e.Right.IntLiteral}
	case e.Right.StringLiteral != nil:
		if left.Wire != view.WireStringID {
			return nil, errs.New("msidb.compileComparison", errs.DatatypeMismatch)
		}
		id, ok := c.db.Pool.LookupID(*e.Right.StringLiteral)
		if !ok {
			id = -1 // guaranteed never to match any interned string-id
		}
		right = &view.CExpr{Kind: view.ExprIntLiteral, IntVal: int32(id)}
	case e.Right.Wildcard:
		*wc++
		right = &view.CExpr{Kind: view.ExprWildcard, WildcardIndex: *wc}
	case e.Right.ColumnRef != "":
		right, err = c.compileColumnRef(e.Right, j)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errs.New("msidb.compileComparison", errs.BadQuerySyntax)
	}
	return &view.CExpr{Kind: view.ExprBinary, BinOp: mapBinOp(*e.BinOp), Left: left, Right: right}, nil
}

func mapUnaryOp(op sqlparse.UnaryOp) view.UnaryOp {
	if op == sqlparse.OpIsNull {
		return view.UnaryIsNull
	}
	return view.UnaryNotNull
}

func mapBinOp(op sqlparse.BinOp) view.BinOp {
	switch op {
	case sqlparse.OpEq:
		return view.BinEq
	case sqlparse.OpNe:
		return view.BinNe
	case sqlparse.OpLt:
		return view.BinLt
	case sqlparse.OpLe:
		return view.BinLe
	case sqlparse.OpGt:
		return view.BinGt
	default:
		return view.BinGe
	}
}

func (c *compiler) compileSelect(sel *sqlparse.Select) (view.View, error) {
	j, err := c.buildJoin(sel.Tables)
	if err != nil {
		return nil, err
	}
	wc := 0
	expr, err := c.compileWhere(sel.Where, j, &wc)
	if err != nil {
		return nil, err
	}
	whereView := view.NewWhereView(j.asViews(), j.names, expr)

	if len(sel.OrderBy) > 0 {
		order := make([]view.OrderColumn, len(sel.OrderBy))
		for i, term := range sel.OrderBy {
			ti, ci, _, err := j.resolve(term.Column)
			if err != nil {
				return nil, err
			}
			order[i] = view.OrderColumn{Column: j.globalIndex(ti, ci)}
		}
		if err := whereView.Sort(order); err != nil {
			return nil, err
		}
	}

	cols, names, err := c.compileProjection(sel.Columns, j)
	if err != nil {
		return nil, err
	}
	selectView := &view.SelectView{Parent: whereView, Cols: cols, Names: names}

	var root view.View = selectView
	if sel.Distinct {
		root = view.NewDistinctView(selectView)
	}
	return root, nil
}

// compileProjection resolves SELECT's column list ("*" or an explicit,
// possibly table-qualified, list) against the join's flattened column
// numbering.
func (c *compiler) compileProjection(columns []string, j *joinInfo) ([]int, []string, error) {
	if len(columns) == 1 && columns[0] == "*" {
		total := j.totalColumns()
		cols := make([]int, total)
		names := make([]string, total)
		for i := 1; i <= total; i++ {
			cols[i-1] = i
		}
		n := 0
		for _, t := range j.tables {
			for _, col := range t.Table.Schema.Columns {
				names[n] = col.Name
				n++
			}
		}
		return cols, names, nil
	}
	cols := make([]int, len(columns))
	names := make([]string, len(columns))
	for i, name := range columns {
		ti, ci, _, err := j.resolve(name)
		if err != nil {
			return nil, nil, err
		}
		cols[i] = j.globalIndex(ti, ci)
		_, col := splitQualified(name)
		names[i] = col
	}
	return cols, names, nil
}

func (c *compiler) compileUpdate(up *sqlparse.Update) (view.View, error) {
	j, err := c.buildJoin([]string{up.Table})
	if err != nil {
		return nil, err
	}
	table := j.tables[0].Table.Schema
	setColumns := make([]int, len(up.Assignments))
	setValues := make([]view.InsertValue, len(up.Assignments))
	for i, a := range up.Assignments {
		col := table.ColumnByName(a.Column)
		if col == nil {
			return nil, errs.New("msidb.compileUpdate", errs.InvalidField)
		}
		setColumns[i] = col.Position
		setValues[i] = compileInsertValue(a.Value)
	}
	wc := 0
	expr, err := c.compileWhere(up.Where, j, &wc)
	if err != nil {
		return nil, err
	}
	whereView := view.NewWhereView(j.asViews(), j.names, expr)
	return view.NewUpdateView(whereView, setColumns, setValues), nil
}

func (c *compiler) compileDelete(del *sqlparse.Delete) (view.View, error) {
	j, err := c.buildJoin([]string{del.Table})
	if err != nil {
		return nil, err
	}
	wc := 0
	expr, err := c.compileWhere(del.Where, j, &wc)
	if err != nil {
		return nil, err
	}
	whereView := view.NewWhereView(j.asViews(), j.names, expr)
	return view.NewDeleteView(whereView), nil
}

// Query wraps a compiled view tree with the execute/fetch surface
// the facade exposes to callers.
type Query struct {
	db   *Database
	root view.View
}

func (q *Query) Execute(bindings *record.Record) error { return q.root.Execute(bindings) }
func (q *Query) Close() error                           { return q.root.Close() }
func (q *Query) Dimensions() (rows, cols int, err error) { return q.root.Dimensions() }
func (q *Query) ColumnInfo(n int) (view.ColumnInfo, error) { return q.root.ColumnInfo(n) }
func (q *Query) FetchInt(row, col int) (uint32, error)   { return q.root.FetchInt(row, col) }
func (q *Query) GetRow(row int) (*record.Record, error)  { return q.root.GetRow(row) }
func (q *Query) SetRow(row int, rec *record.Record, mask uint32) error {
	return q.root.SetRow(row, rec, mask)
}
func (q *Query) InsertRow(rec *record.Record, row int64, temporary bool) error {
	return q.root.InsertRow(rec, row, temporary)
}
func (q *Query) DeleteRow(row int) error { return q.root.DeleteRow(row) }
