package view

import (
	"msidb/errs"
	"msidb/record"
)

// WireKind classifies how a resolved column reference's value should be
// compared, matching the ColumnRefResolved variant of the expression
// tree.
type WireKind int

const (
	WireInt16 WireKind = iota
	WireInt32
	WireStringID
)

// CExprKind tags which field of CExpr is populated.
type CExprKind int

const (
	ExprColumnRef CExprKind = iota
	ExprIntLiteral
	ExprStringLiteral
	ExprWildcard
	ExprUnary
	ExprBinary
	ExprStringCompare
)

// UnaryOp mirrors sqlparse.UnaryOp without importing the parser package
// into the compiled, table-bound expression tree.
type UnaryOp int

const (
	UnaryIsNull UnaryOp = iota
	UnaryNotNull
)

// BinOp mirrors sqlparse.BinOp for comparisons and boolean combinators.
type BinOp int

const (
	BinEq BinOp = iota
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd
	BinOr
)

// CExpr is the compiled, table-bound counterpart of sqlparse.Expr: every
// ColumnRef has been resolved to a (table index, column index, wire
// kind) triple against the WhereView's join list.
type CExpr struct {
	Kind CExprKind

	TableIndex int
	ColIndex   int
	Wire       WireKind

	IntVal int32
	StrVal string

	// WildcardIndex is the 1-based position of this `?` among every
	// wildcard in the WHERE clause, in source order, assigned at compile
	// time so binding order matches parse order.
	WildcardIndex int

	UnaryOp UnaryOp
	Child   *CExpr

	BinOp       BinOp
	Left, Right *CExpr
}

// evalBool is the three-valued result of evaluating a CExpr: a
// reference to a table whose row index is still invalidRow yields
// evalContinue rather than a value.
type evalBool int

const (
	evalFalse evalBool = iota
	evalTrue
	evalContinue
)

// evalExpr evaluates e against the current partial join row cur
// (indexed by table position) and the WHERE clause's bound parameter
// record (nil if it has no wildcards). It returns (result, truthKnown):
// when truthKnown is false the caller must treat the row as "proceed
// anyway", per join step 3's CONTINUE handling.
func evalExpr(e *CExpr, tables []View, cur []int, bindings *record.Record) (evalBool, bool, error) {
	if e == nil {
		return evalTrue, true, nil
	}
	switch e.Kind {
	case ExprUnary:
		return evalUnary(e, tables, cur)
	case ExprBinary:
		switch e.BinOp {
		case BinAnd:
			return evalAnd(e, tables, cur, bindings)
		case BinOr:
			return evalOr(e, tables, cur, bindings)
		default:
			return evalComparison(e, tables, cur, bindings)
		}
	case ExprStringCompare:
		return evalComparison(e, tables, cur, bindings)
	default:
		return evalTrue, true, nil
	}
}

func evalUnary(e *CExpr, tables []View, cur []int) (evalBool, bool, error) {
	row := cur[e.Child.TableIndex]
	if row == invalidRow {
		return evalContinue, false, nil
	}
	v, err := tables[e.Child.TableIndex].FetchInt(row, e.Child.ColIndex)
	if err != nil {
		return evalFalse, false, err
	}
	isNull := v == 0
	switch e.UnaryOp {
	case UnaryIsNull:
		return boolResult(isNull), true, nil
	default:
		return boolResult(!isNull), true, nil
	}
}

func boolResult(b bool) evalBool {
	if b {
		return evalTrue
	}
	return evalFalse
}

// evalAnd short-circuits on a known-false side even if the other side
// is CONTINUE.
func evalAnd(e *CExpr, tables []View, cur []int, bindings *record.Record) (evalBool, bool, error) {
	lr, lt, err := evalExpr(e.Left, tables, cur, bindings)
	if err != nil {
		return evalFalse, false, err
	}
	if lt && lr == evalFalse {
		return evalFalse, true, nil
	}
	rr, rt, err := evalExpr(e.Right, tables, cur, bindings)
	if err != nil {
		return evalFalse, false, err
	}
	if rt && rr == evalFalse {
		return evalFalse, true, nil
	}
	if lt && rt {
		return evalTrue, true, nil
	}
	return evalContinue, false, nil
}

// evalOr short-circuits on a known-true side even if the other side is
// CONTINUE.
func evalOr(e *CExpr, tables []View, cur []int, bindings *record.Record) (evalBool, bool, error) {
	lr, lt, err := evalExpr(e.Left, tables, cur, bindings)
	if err != nil {
		return evalFalse, false, err
	}
	if lt && lr == evalTrue {
		return evalTrue, true, nil
	}
	rr, rt, err := evalExpr(e.Right, tables, cur, bindings)
	if err != nil {
		return evalFalse, false, err
	}
	if rt && rr == evalTrue {
		return evalTrue, true, nil
	}
	if lt && rt {
		return evalFalse, true, nil
	}
	return evalContinue, false, nil
}

// unbias converts a column's raw stored value (as returned by FetchInt,
// which biases integers so that 0 means NULL) into its real signed
// value for the given wire width.
func unbias(wire WireKind, raw uint32) int32 {
	if wire == WireInt16 {
		return int32(int16(uint16(raw) - 0x8000))
	}
	return int32(raw - 0x80000000)
}

// resolveOperand reads the value and "known" state of one operand,
// already bias-stripped for numeric columns so it can be compared
// directly against a literal's real value. A ColumnRef whose row is
// still invalidRow is not known; literals and bound wildcards are
// always known.
func resolveOperand(e *CExpr, tables []View, cur []int, bindings *record.Record) (val int32, str string, isStr bool, known bool, err error) {
	switch e.Kind {
	case ExprColumnRef:
		row := cur[e.TableIndex]
		if row == invalidRow {
			return 0, "", false, false, nil
		}
		v, ferr := tables[e.TableIndex].FetchInt(row, e.ColIndex)
		if ferr != nil {
			return 0, "", false, false, ferr
		}
		if e.Wire == WireStringID {
			return int32(v), "", true, true, nil
		}
		return unbias(e.Wire, v), "", false, true, nil
	case ExprIntLiteral:
		return e.IntVal, "", false, true, nil
	case ExprStringLiteral:
		return 0, e.StrVal, true, true, nil
	case ExprWildcard:
		if bindings == nil {
			return 0, "", false, false, errs.New("view.resolveOperand", errs.InvalidParameter)
		}
		if bindings.IsString(e.WildcardIndex) {
			return 0, bindings.GetString(e.WildcardIndex), true, true, nil
		}
		return bindings.GetInt(e.WildcardIndex), "", false, true, nil
	default:
		return 0, "", false, true, nil
	}
}

// evalComparison evaluates a two-sided comparison (numeric bias-aware,
// or string equality via StringCompare). Unresolved operands yield
// CONTINUE.
func evalComparison(e *CExpr, tables []View, cur []int, bindings *record.Record) (evalBool, bool, error) {
	lv, ls, lIsStr, lKnown, err := resolveOperand(e.Left, tables, cur, bindings)
	if err != nil {
		return evalFalse, false, err
	}
	rv, rs, _, rKnown, err := resolveOperand(e.Right, tables, cur, bindings)
	if err != nil {
		return evalFalse, false, err
	}
	if !lKnown || !rKnown {
		return evalContinue, false, nil
	}
	op := e.BinOp
	if e.Kind == ExprStringCompare {
		switch op {
		case BinEq:
			return boolResult(ls == rs), true, nil
		case BinNe:
			return boolResult(ls != rs), true, nil
		default:
			return evalFalse, false, errs.New("view.evalComparison", errs.BadQuerySyntax)
		}
	}
	if lIsStr {
		switch op {
		case BinEq:
			return boolResult(lv == rv), true, nil
		case BinNe:
			return boolResult(lv != rv), true, nil
		default:
			return evalFalse, false, errs.New("view.evalComparison", errs.BadQuerySyntax)
		}
	}
	switch op {
	case BinEq:
		return boolResult(lv == rv), true, nil
	case BinNe:
		return boolResult(lv != rv), true, nil
	case BinLt:
		return boolResult(lv < rv), true, nil
	case BinLe:
		return boolResult(lv <= rv), true, nil
	case BinGt:
		return boolResult(lv > rv), true, nil
	case BinGe:
		return boolResult(lv >= rv), true, nil
	default:
		return evalFalse, false, errs.New("view.evalComparison", errs.BadQuerySyntax)
	}
}
