// Package sqlparse implements a recursive-descent parser over package
// sqltoken's token stream, producing a statement AST that package view
// compiles into a pipeline.
package sqlparse

// ColumnSpec is one parsed column of a CREATE TABLE or ALTER TABLE ADD.
type ColumnSpec struct {
	Name        string
	TypeWord    string // CHAR, LONGCHAR, INT, LONG, SHORT, OBJECT
	Width       int    // parsed trailing width, e.g. CHAR(255)
	Nullable    bool
	Temporary   bool
	Localizable bool
	Key         bool // set from the trailing PRIMARY KEY clause
}

// CreateTable is `CREATE TABLE name ( column_list ) [HOLD]`.
type CreateTable struct {
	Table      string
	Columns    []ColumnSpec
	PrimaryKey []string
	Hold       bool
}

// DropTable is `DROP TABLE name`.
type DropTable struct {
	Table string
}

// AlterTable is `ALTER TABLE name { HOLD | FREE | ADD column_spec [HOLD] }`.
type AlterTable struct {
	Table  string
	Hold   bool
	Free   bool
	Add    *ColumnSpec
	AddHold bool
}

// Insert is `INSERT INTO name ( col_list ) VALUES ( value_list ) [TEMPORARY]`.
type Insert struct {
	Table     string
	Columns   []string
	Values    []Expr
	Temporary bool
}

// OrderTerm is one column of an ORDER BY list.
type OrderTerm struct {
	Column string
}

// Select is `SELECT [DISTINCT] column_expr_list FROM table_list [WHERE expr] [ORDER BY order_list]`.
type Select struct {
	Distinct bool
	Columns  []string // "*" represented as a single entry "*"
	Tables   []string
	Where    Expr // zero Expr if absent
	OrderBy  []OrderTerm
}

// Assignment is one `col = expr` of an UPDATE's SET list.
type Assignment struct {
	Column string
	Value  Expr
}

// Update is `UPDATE table SET assignment_list [WHERE expr]`.
type Update struct {
	Table       string
	Assignments []Assignment
	Where       Expr
}

// Delete is `DELETE FROM table [WHERE expr]`.
type Delete struct {
	Table string
	Where Expr
}

// Statement is the parsed root: exactly one of these fields is non-nil.
type Statement struct {
	Create *CreateTable
	Drop   *DropTable
	Alter  *AlterTable
	Insert *Insert
	Select *Select
	Update *Update
	Delete *Delete
}

// BinOp enumerates the comparison and boolean operators of expr.
type BinOp int

const (
	OpEq BinOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

// UnaryOp enumerates the two postfix IS forms.
type UnaryOp int

const (
	OpIsNull UnaryOp = iota
	OpNotNull
)

// Expr is the WHERE/ORDER expression tree. Exactly one field set
// identifies the variant, mirroring a tagged union.
type Expr struct {
	ColumnRef string // unresolved column reference

	IntLiteral    *int32
	StringLiteral *string
	Wildcard      bool

	UnaryOp    *UnaryOp
	UnaryChild *Expr

	BinOp       *BinOp
	Left, Right *Expr
}

func colExpr(name string) *Expr  { return &Expr{ColumnRef: name} }
func intExpr(v int64) *Expr      { i := int32(v); return &Expr{IntLiteral: &i} }
func strExpr(s string) *Expr     { return &Expr{StringLiteral: &s} }
func wildcardExpr() *Expr        { return &Expr{Wildcard: true} }
func unaryExpr(op UnaryOp, child *Expr) *Expr {
	return &Expr{UnaryOp: &op, UnaryChild: child}
}
func binExpr(op BinOp, l, r *Expr) *Expr {
	return &Expr{BinOp: &op, Left: l, Right: r}
}
