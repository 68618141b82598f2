package sqlparse

import (
	"msidb/errs"
	"msidb/sqltoken"
)

// parser walks a token stream produced on demand from the remaining
// source text, one token of lookahead at a time.
type parser struct {
	src string
	tok sqltoken.Token
	// pos is the byte offset in src where tok.Kind's bytes end; advance()
	// rescans from there.
	pos int
}

// Parse parses a single SQL statement.
func Parse(query string) (*Statement, error) {
	p := &parser{src: query}
	p.advance()
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != sqltoken.EOF {
		return nil, errs.New("sqlparse.Parse", errs.BadQuerySyntax)
	}
	return stmt, nil
}

func (p *parser) advance() {
	for {
		tok, n := sqltoken.Next(p.src[p.pos:])
		p.pos += n
		if tok.Kind == sqltoken.Whitespace {
			continue
		}
		p.tok = tok
		return
	}
}

func (p *parser) isKeyword(word string) bool {
	return p.tok.Kind == sqltoken.Keyword && p.tok.Text == word
}

func (p *parser) expectKeyword(word string) error {
	if !p.isKeyword(word) {
		return errs.New("sqlparse.expectKeyword", errs.BadQuerySyntax)
	}
	p.advance()
	return nil
}

func (p *parser) expect(kind sqltoken.Kind) (sqltoken.Token, error) {
	if p.tok.Kind != kind {
		return sqltoken.Token{}, errs.New("sqlparse.expect", errs.BadQuerySyntax)
	}
	tok := p.tok
	p.advance()
	return tok, nil
}

// identName consumes a plain identifier. A name that collides with a
// reserved word must be written bracket- or backtick-quoted, which
// sqltoken already reports as Id rather than Keyword.
func (p *parser) identName() (string, error) {
	if p.tok.Kind != sqltoken.Id {
		return "", errs.New("sqlparse.identName", errs.BadQuerySyntax)
	}
	s := p.tok.Text
	p.advance()
	return s, nil
}

// qualifiedName consumes `ident` or `ident.ident` (a table-qualified
// column reference, e.g. Component.D1 in a join's SELECT/WHERE list)
// and returns it as a single dot-joined string; the compiler splits it
// back apart when resolving against the joined table list.
func (p *parser) qualifiedName() (string, error) {
	name, err := p.identName()
	if err != nil {
		return "", err
	}
	if p.tok.Kind == sqltoken.Dot {
		p.advance()
		col, err := p.identName()
		if err != nil {
			return "", err
		}
		return name + "." + col, nil
	}
	return name, nil
}

func (p *parser) parseStatement() (*Statement, error) {
	switch {
	case p.isKeyword("CREATE"):
		ct, err := p.parseCreateTable()
		if err != nil {
			return nil, err
		}
		return &Statement{Create: ct}, nil
	case p.isKeyword("DROP"):
		dt, err := p.parseDropTable()
		if err != nil {
			return nil, err
		}
		return &Statement{Drop: dt}, nil
	case p.isKeyword("ALTER"):
		at, err := p.parseAlterTable()
		if err != nil {
			return nil, err
		}
		return &Statement{Alter: at}, nil
	case p.isKeyword("INSERT"):
		ins, err := p.parseInsert()
		if err != nil {
			return nil, err
		}
		return &Statement{Insert: ins}, nil
	case p.isKeyword("SELECT"):
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		return &Statement{Select: sel}, nil
	case p.isKeyword("UPDATE"):
		up, err := p.parseUpdate()
		if err != nil {
			return nil, err
		}
		return &Statement{Update: up}, nil
	case p.isKeyword("DELETE"):
		del, err := p.parseDelete()
		if err != nil {
			return nil, err
		}
		return &Statement{Delete: del}, nil
	default:
		return nil, errs.New("sqlparse.parseStatement", errs.BadQuerySyntax)
	}
}

func (p *parser) parseCreateTable() (*CreateTable, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.identName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(sqltoken.LParen); err != nil {
		return nil, err
	}

	ct := &CreateTable{Table: name}
	for {
		if p.isKeyword("PRIMARY") {
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			for {
				col, err := p.identName()
				if err != nil {
					return nil, err
				}
				ct.PrimaryKey = append(ct.PrimaryKey, col)
				if p.tok.Kind == sqltoken.Comma {
					p.advance()
					continue
				}
				break
			}
			break
		}
		col, err := p.parseColumnSpec()
		if err != nil {
			return nil, err
		}
		ct.Columns = append(ct.Columns, col)
		if p.tok.Kind == sqltoken.Comma {
			p.advance()
			continue
		}
		if p.isKeyword("PRIMARY") {
			continue
		}
		break
	}
	if _, err := p.expect(sqltoken.RParen); err != nil {
		return nil, err
	}
	if p.isKeyword("HOLD") {
		ct.Hold = true
		p.advance()
	}
	for _, keyName := range ct.PrimaryKey {
		for i := range ct.Columns {
			if ct.Columns[i].Name == keyName {
				ct.Columns[i].Key = true
			}
		}
	}
	return ct, nil
}

func (p *parser) parseColumnSpec() (ColumnSpec, error) {
	name, err := p.identName()
	if err != nil {
		return ColumnSpec{}, err
	}
	cs := ColumnSpec{Name: name, Nullable: true}
	if !p.isKeyword("CHAR") && !p.isKeyword("LONGCHAR") && !p.isKeyword("INT") &&
		!p.isKeyword("LONG") && !p.isKeyword("SHORT") && !p.isKeyword("OBJECT") {
		return ColumnSpec{}, errs.New("sqlparse.parseColumnSpec", errs.BadQuerySyntax)
	}
	cs.TypeWord = p.tok.Text
	p.advance()
	if p.tok.Kind == sqltoken.LParen {
		p.advance()
		width, err := p.expect(sqltoken.Integer)
		if err != nil {
			return ColumnSpec{}, err
		}
		cs.Width = int(width.Int)
		if _, err := p.expect(sqltoken.RParen); err != nil {
			return ColumnSpec{}, err
		}
	}
	for {
		switch {
		case p.isKeyword("NOT"):
			p.advance()
			if err := p.expectKeyword("NULL"); err != nil {
				return ColumnSpec{}, err
			}
			cs.Nullable = false
		case p.isKeyword("TEMPORARY"):
			p.advance()
			cs.Temporary = true
		case p.isKeyword("LOCALIZABLE"):
			p.advance()
			cs.Localizable = true
		default:
			return cs, nil
		}
	}
}

func (p *parser) parseDropTable() (*DropTable, error) {
	if err := p.expectKeyword("DROP"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.identName()
	if err != nil {
		return nil, err
	}
	return &DropTable{Table: name}, nil
}

func (p *parser) parseAlterTable() (*AlterTable, error) {
	if err := p.expectKeyword("ALTER"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.identName()
	if err != nil {
		return nil, err
	}
	at := &AlterTable{Table: name}
	switch {
	case p.isKeyword("HOLD"):
		p.advance()
		at.Hold = true
	case p.isKeyword("FREE"):
		p.advance()
		at.Free = true
	case p.isKeyword("ADD"):
		p.advance()
		col, err := p.parseColumnSpec()
		if err != nil {
			return nil, err
		}
		at.Add = &col
		if p.isKeyword("HOLD") {
			p.advance()
			at.AddHold = true
		}
	default:
		return nil, errs.New("sqlparse.parseAlterTable", errs.BadQuerySyntax)
	}
	return at, nil
}

func (p *parser) parseInsert() (*Insert, error) {
	if err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	name, err := p.identName()
	if err != nil {
		return nil, err
	}
	ins := &Insert{Table: name}
	if _, err := p.expect(sqltoken.LParen); err != nil {
		return nil, err
	}
	for {
		col, err := p.identName()
		if err != nil {
			return nil, err
		}
		ins.Columns = append(ins.Columns, col)
		if p.tok.Kind == sqltoken.Comma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(sqltoken.RParen); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expect(sqltoken.LParen); err != nil {
		return nil, err
	}
	for {
		v, err := p.parseLiteralOrWildcard()
		if err != nil {
			return nil, err
		}
		ins.Values = append(ins.Values, *v)
		if p.tok.Kind == sqltoken.Comma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(sqltoken.RParen); err != nil {
		return nil, err
	}
	if len(ins.Columns) != len(ins.Values) {
		return nil, errs.New("sqlparse.parseInsert", errs.BadQuerySyntax)
	}
	if p.isKeyword("TEMPORARY") {
		ins.Temporary = true
		p.advance()
	}
	return ins, nil
}

func (p *parser) parseLiteralOrWildcard() (*Expr, error) {
	switch {
	case p.tok.Kind == sqltoken.Wildcard:
		p.advance()
		return wildcardExpr(), nil
	case p.tok.Kind == sqltoken.Integer:
		v := p.tok.Int
		p.advance()
		return intExpr(v), nil
	case p.tok.Kind == sqltoken.Minus:
		p.advance()
		lit, err := p.expect(sqltoken.Integer)
		if err != nil {
			return nil, err
		}
		return intExpr(-lit.Int), nil
	case p.tok.Kind == sqltoken.String:
		s := p.tok.Text
		p.advance()
		return strExpr(s), nil
	default:
		return nil, errs.New("sqlparse.parseLiteralOrWildcard", errs.BadQuerySyntax)
	}
}

func (p *parser) parseSelect() (*Select, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	sel := &Select{}
	if p.isKeyword("DISTINCT") {
		sel.Distinct = true
		p.advance()
	}
	if p.tok.Kind == sqltoken.Star {
		sel.Columns = []string{"*"}
		p.advance()
	} else {
		for {
			col, err := p.qualifiedName()
			if err != nil {
				return nil, err
			}
			sel.Columns = append(sel.Columns, col)
			if p.tok.Kind == sqltoken.Comma {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	for {
		t, err := p.identName()
		if err != nil {
			return nil, err
		}
		sel.Tables = append(sel.Tables, t)
		if p.tok.Kind == sqltoken.Comma {
			p.advance()
			continue
		}
		break
	}
	if p.isKeyword("WHERE") {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = *expr
	}
	if p.isKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			col, err := p.qualifiedName()
			if err != nil {
				return nil, err
			}
			sel.OrderBy = append(sel.OrderBy, OrderTerm{Column: col})
			if p.tok.Kind == sqltoken.Comma {
				p.advance()
				continue
			}
			break
		}
	}
	return sel, nil
}

func (p *parser) parseUpdate() (*Update, error) {
	if err := p.expectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	name, err := p.identName()
	if err != nil {
		return nil, err
	}
	up := &Update{Table: name}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	for {
		col, err := p.identName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(sqltoken.Eq); err != nil {
			return nil, err
		}
		val, err := p.parseLiteralOrWildcard()
		if err != nil {
			return nil, err
		}
		up.Assignments = append(up.Assignments, Assignment{Column: col, Value: *val})
		if p.tok.Kind == sqltoken.Comma {
			p.advance()
			continue
		}
		break
	}
	if p.isKeyword("WHERE") {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		up.Where = *expr
	}
	return up, nil
}

func (p *parser) parseDelete() (*Delete, error) {
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	name, err := p.identName()
	if err != nil {
		return nil, err
	}
	del := &Delete{Table: name}
	if p.isKeyword("WHERE") {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		del.Where = *expr
	}
	return del, nil
}

// parseExpr is the top of the boolean-expression grammar: OR binds
// loosest, AND next, comparisons/IS tightest, parens reset.
func (p *parser) parseExpr() (*Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binExpr(OpOr, left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (*Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = binExpr(OpAnd, left, right)
	}
	return left, nil
}

func (p *parser) parsePrimary() (*Expr, error) {
	if p.tok.Kind == sqltoken.LParen {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(sqltoken.RParen); err != nil {
			return nil, err
		}
		return e, nil
	}
	col, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	left := colExpr(col)

	if p.isKeyword("IS") {
		p.advance()
		if p.isKeyword("NOT") {
			p.advance()
			if err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			return unaryExpr(OpNotNull, left), nil
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return unaryExpr(OpIsNull, left), nil
	}

	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}

	switch {
	case p.tok.Kind == sqltoken.Id:
		rhsName, err := p.qualifiedName()
		if err != nil {
			return nil, err
		}
		rhs := colExpr(rhsName)
		return binExpr(op, left, rhs), nil
	case p.tok.Kind == sqltoken.String:
		if op != OpEq && op != OpNe {
			return nil, errs.New("sqlparse.parsePrimary", errs.BadQuerySyntax)
		}
		rhs := strExpr(p.tok.Text)
		p.advance()
		return binExpr(op, left, rhs), nil
	case p.tok.Kind == sqltoken.Integer:
		v := p.tok.Int
		p.advance()
		return binExpr(op, left, intExpr(v)), nil
	case p.tok.Kind == sqltoken.Wildcard:
		p.advance()
		return binExpr(op, left, wildcardExpr()), nil
	default:
		return nil, errs.New("sqlparse.parsePrimary", errs.BadQuerySyntax)
	}
}

func (p *parser) parseCompareOp() (BinOp, error) {
	switch p.tok.Kind {
	case sqltoken.Eq:
		p.advance()
		return OpEq, nil
	case sqltoken.Ne:
		p.advance()
		return OpNe, nil
	case sqltoken.Lt:
		p.advance()
		return OpLt, nil
	case sqltoken.Le:
		p.advance()
		return OpLe, nil
	case sqltoken.Gt:
		p.advance()
		return OpGt, nil
	case sqltoken.Ge:
		p.advance()
		return OpGe, nil
	default:
		return 0, errs.New("sqlparse.parseCompareOp", errs.BadQuerySyntax)
	}
}
