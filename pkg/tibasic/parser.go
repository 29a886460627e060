package tibasic

import (
	"math"
	"strconv"
	"strings"
)

// Parser is a recursive-descent parser over a token slice. Block statements
// are emitted as flat marker statements; nothing is nested.
type Parser struct {
	tokens []Token
	pos    int
}

// Compile scans and parses src into a program ready for execution.
func Compile(src string) (*Program, error) {
	tokens, err := Scan(src)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parse builds the flat statement list and the label table.
func Parse(tokens []Token) (*Program, error) {
	p := &Parser{tokens: tokens}
	prog := &Program{}
	for !p.atEnd() {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	labels, err := resolveLabels(prog.Stmts)
	if err != nil {
		return nil, err
	}
	prog.Labels = labels
	return prog, nil
}

func resolveLabels(stmts []Stmt) (map[string]int, error) {
	labels := make(map[string]int)
	for i, stmt := range stmts {
		lbl, ok := stmt.(*LabelStmt)
		if !ok {
			continue
		}
		if _, dup := labels[lbl.Name]; dup {
			return nil, newError(CategoryLoad, ErrDuplicateLabel, lbl.Line(), lbl.Name)
		}
		labels[lbl.Name] = i
	}
	return labels, nil
}

// Token cursor helpers

func (p *Parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *Parser) next() Token {
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

// sameLine reports whether the current token sits on the line of the
// previously consumed token. Expressions never continue across lines.
func (p *Parser) sameLine() bool {
	if p.atEnd() || p.pos == 0 {
		return false
	}
	return p.tokens[p.pos].Line == p.tokens[p.pos-1].Line
}

func (p *Parser) line() int {
	if p.atEnd() {
		if len(p.tokens) == 0 {
			return 0
		}
		return p.tokens[len(p.tokens)-1].Line
	}
	return p.cur().Line
}

func matches(tok Token, kind TokenKind, text string) bool {
	if tok.Kind != kind {
		return false
	}
	return text == "" || strings.EqualFold(tok.Text, text)
}

func (p *Parser) check(kind TokenKind, text string) bool {
	return !p.atEnd() && matches(p.cur(), kind, text)
}

func (p *Parser) accept(kind TokenKind, text string) bool {
	if p.check(kind, text) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) acceptSameLine(kind TokenKind, text string) bool {
	return p.sameLine() && p.accept(kind, text)
}

func (p *Parser) expect(kind TokenKind, text string) (Token, error) {
	if p.check(kind, text) {
		return p.next(), nil
	}
	want := kind.String()
	if text != "" {
		want = strconv.Quote(text)
	}
	return Token{}, p.unexpected(want)
}

func (p *Parser) unexpected(want string) *Error {
	e := &Error{Category: CategorySyntax, Err: ErrUnexpectedToken, Line: p.line(), Expected: want}
	if p.atEnd() {
		e.Err = ErrUnexpectedEOF
		e.Found = "end of program"
		return e
	}
	e.Col = p.cur().Col
	e.Found = p.cur().String()
	return e
}

// Statements

func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.cur()
	pos := Pos{LineNo: tok.Line}
	if tok.Kind != TokenIdentifier {
		return p.parseExprStmt()
	}

	switch strings.ToLower(tok.Text) {
	case "if":
		p.next()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &IfStmt{Pos: pos, Cond: cond}, nil
	case "then":
		p.next()
		return &ThenStmt{Pos: pos}, nil
	case "else":
		p.next()
		return &ElseStmt{Pos: pos}, nil
	case "end":
		p.next()
		return &EndStmt{Pos: pos}, nil
	case "clrhome":
		p.next()
		return &ClrHomeStmt{Pos: pos}, nil
	case "while":
		p.next()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Pos: pos, Cond: cond}, nil
	case "repeat":
		p.next()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &RepeatStmt{Pos: pos, Cond: cond}, nil
	case "for":
		return p.parseFor(pos)
	case "disp":
		p.next()
		var args []Expr
		if p.sameLine() {
			var err error
			if args, err = p.parseArgList(); err != nil {
				return nil, err
			}
		}
		return &DispStmt{Pos: pos, Args: args}, nil
	case "output":
		return p.parseOutput(pos)
	case "input":
		return p.parseInput(pos)
	case "prompt":
		return p.parsePrompt(pos)
	case "pause":
		p.next()
		stmt := &PauseStmt{Pos: pos}
		if p.sameLine() {
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.Value = value
		}
		return stmt, nil
	case "menu":
		return p.parseMenu(pos)
	case "lbl":
		p.next()
		name, err := p.parseLabelName()
		if err != nil {
			return nil, err
		}
		return &LabelStmt{Pos: pos, Name: name}, nil
	case "goto":
		p.next()
		name, err := p.parseLabelName()
		if err != nil {
			return nil, err
		}
		return &GotoStmt{Pos: pos, Name: name}, nil
	case "prgm":
		p.next()
		if p.check(TokenString, "") || p.check(TokenIdentifier, "") {
			return &PrgmStmt{Pos: pos, Name: p.next().Text}, nil
		}
		return nil, p.unexpected("program name")
	}
	return p.parseExprStmt()
}

func (p *Parser) parseExprStmt() (Stmt, error) {
	line := p.cur().Line
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{Pos: Pos{LineNo: line}, X: x}, nil
}

// parseLabelName accepts an identifier or a number rounded to an integer.
func (p *Parser) parseLabelName() (string, error) {
	if p.check(TokenIdentifier, "") {
		return p.next().Text, nil
	}
	if p.check(TokenNumber, "") {
		n := math.Round(p.next().Num)
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	}
	return "", p.unexpected("label name")
}

func (p *Parser) parseFor(pos Pos) (Stmt, error) {
	p.next()
	if _, err := p.expect(TokenParen, "("); err != nil {
		return nil, err
	}
	v, err := p.expect(TokenIdentifier, "")
	if err != nil {
		return nil, err
	}
	stmt := &ForStmt{Pos: pos, Var: v.Text}
	if _, err := p.expect(TokenComma, ""); err != nil {
		return nil, err
	}
	if stmt.Start, err = p.parseExpr(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenComma, ""); err != nil {
		return nil, err
	}
	if stmt.End, err = p.parseExpr(); err != nil {
		return nil, err
	}
	if p.accept(TokenComma, "") {
		if stmt.Step, err = p.parseExpr(); err != nil {
			return nil, err
		}
	} else {
		stmt.Step = &NumberLit{Pos: pos, Value: 1}
	}
	if _, err := p.expect(TokenParen, ")"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseOutput(pos Pos) (Stmt, error) {
	p.next()
	if _, err := p.expect(TokenParen, "("); err != nil {
		return nil, err
	}
	stmt := &OutputStmt{Pos: pos}
	var err error
	if stmt.Row, err = p.parseExpr(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenComma, ""); err != nil {
		return nil, err
	}
	if stmt.Col, err = p.parseExpr(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenComma, ""); err != nil {
		return nil, err
	}
	if stmt.Value, err = p.parseExpr(); err != nil {
		return nil, err
	}
	p.acceptSameLine(TokenParen, ")")
	return stmt, nil
}

func (p *Parser) parseInput(pos Pos) (Stmt, error) {
	p.next()
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.acceptSameLine(TokenComma, "") {
		v, err := p.expect(TokenIdentifier, "")
		if err != nil {
			return nil, err
		}
		return &InputStmt{Pos: pos, Prompt: first, Var: v.Text}, nil
	}
	id, ok := first.(*Ident)
	if !ok {
		return nil, &Error{Category: CategorySyntax, Err: ErrUnexpectedToken, Line: pos.Line(),
			Expected: "Identifier", Found: "expression"}
	}
	return &InputStmt{Pos: pos, Var: id.Name}, nil
}

func (p *Parser) parsePrompt(pos Pos) (Stmt, error) {
	p.next()
	stmt := &PromptStmt{Pos: pos}
	for {
		v, err := p.expect(TokenIdentifier, "")
		if err != nil {
			return nil, err
		}
		stmt.Vars = append(stmt.Vars, v.Text)
		if !p.acceptSameLine(TokenComma, "") {
			return stmt, nil
		}
	}
}

func (p *Parser) parseMenu(pos Pos) (Stmt, error) {
	p.next()
	if _, err := p.expect(TokenParen, "("); err != nil {
		return nil, err
	}
	title, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	stmt := &MenuStmt{Pos: pos, Title: title}
	for p.acceptSameLine(TokenComma, "") {
		text, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenComma, ""); err != nil {
			return nil, err
		}
		label, err := p.parseLabelName()
		if err != nil {
			return nil, err
		}
		stmt.Options = append(stmt.Options, MenuOption{Text: text, Label: label})
	}
	p.acceptSameLine(TokenParen, ")")
	return stmt, nil
}

func (p *Parser) parseArgList() ([]Expr, error) {
	var args []Expr
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.acceptSameLine(TokenComma, "") {
			return args, nil
		}
	}
}

// Expressions, lowest precedence first:
// assignment, additive, multiplicative, comparison, call, term.

func (p *Parser) parseExpr() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if !p.sameLine() || !p.check(TokenAssignment, "") {
		return left, nil
	}
	arrow := p.next()
	target := p.pos
	right, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	id, ok := right.(*Ident)
	if !ok {
		p.pos = target
		return nil, p.unexpected("Identifier")
	}
	return &BinaryExpr{Pos: Pos{LineNo: arrow.Line}, Op: OpAssign, Left: left, Right: id}, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.sameLine() {
		tok := p.cur()
		var op BinaryOp
		switch {
		case matches(tok, TokenOperator, "+"):
			op = OpAdd
		case matches(tok, TokenOperator, "-"):
			op = OpSub
		case matches(tok, TokenIdentifier, "and"):
			op = OpAnd
		case matches(tok, TokenIdentifier, "or"):
			op = OpOr
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: Pos{LineNo: tok.Line}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.sameLine() && p.check(TokenOperator, "") {
		tok := p.cur()
		var op BinaryOp
		switch tok.Text {
		case "*":
			op = OpMul
		case "/":
			op = OpDiv
		case "%":
			op = OpMod
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: Pos{LineNo: tok.Line}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

// parseComparison allows at most one comparison; A<B<C does not chain.
func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseCall()
	if err != nil {
		return nil, err
	}
	if !p.sameLine() || !p.check(TokenComparison, "") {
		return left, nil
	}
	tok := p.next()
	var op BinaryOp
	switch tok.Text {
	case "=":
		op = OpEq
	case ">":
		op = OpGt
	case "<":
		op = OpLt
	case ">=":
		op = OpGe
	case "<=":
		op = OpLe
	case "!":
		// the lexer emits != as two comparison tokens
		if _, err := p.expect(TokenComparison, "="); err != nil {
			return nil, err
		}
		op = OpNe
	}
	right, err := p.parseCall()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Pos: Pos{LineNo: tok.Line}, Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseCall() (Expr, error) {
	x, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.sameLine() && p.check(TokenParen, "(") {
		open := p.next()
		call := &CallExpr{Pos: Pos{LineNo: open.Line}, Target: x}
		if !p.accept(TokenParen, ")") {
			if call.Args, err = p.parseArgList(); err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenParen, ")"); err != nil {
				return nil, err
			}
		}
		x = call
	}
	return x, nil
}

func (p *Parser) parseTerm() (Expr, error) {
	if p.atEnd() {
		return nil, p.unexpected("expression")
	}
	tok := p.cur()
	pos := Pos{LineNo: tok.Line}
	switch {
	case tok.Kind == TokenNumber:
		p.next()
		return &NumberLit{Pos: pos, Value: tok.Num}, nil
	case tok.Kind == TokenString:
		p.next()
		return &StringLit{Pos: pos, Value: tok.Text}, nil
	case tok.Kind == TokenIdentifier:
		p.next()
		return &Ident{Pos: pos, Name: tok.Text}, nil
	case matches(tok, TokenParen, "("):
		p.next()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenParen, ")"); err != nil {
			return nil, err
		}
		return x, nil
	case matches(tok, TokenOperator, "-"):
		p.next()
		operand, err := p.parseCall()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Pos: pos, Op: OpSub, Left: &NumberLit{Pos: pos, Value: 0}, Right: operand}, nil
	}
	return nil, p.unexpected("expression")
}
