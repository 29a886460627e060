package tibasic

// Node is implemented by every AST node.
type Node interface {
	Line() int
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a top-level statement in the flat program list.
type Stmt interface {
	Node
	stmtNode()
}

// Pos records where a node starts in the source.
type Pos struct {
	LineNo int
}

func (p Pos) Line() int { return p.LineNo }

// BinaryOp enumerates binary operators, including assignment.
type BinaryOp int

const (
	OpAssign BinaryOp = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpEq
	OpNe
	OpGt
	OpLt
	OpGe
	OpLe
)

var binaryOpNames = [...]string{
	OpAssign: "->",
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpMod:    "%",
	OpAnd:    "and",
	OpOr:     "or",
	OpEq:     "=",
	OpNe:     "!=",
	OpGt:     ">",
	OpLt:     "<",
	OpGe:     ">=",
	OpLe:     "<=",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "?"
}

// Expressions

type NumberLit struct {
	Pos
	Value float64
}

type StringLit struct {
	Pos
	Value string
}

type Ident struct {
	Pos
	Name string
}

// BinaryExpr is Left Op Right. For OpAssign, Right is always an *Ident.
type BinaryExpr struct {
	Pos
	Op    BinaryOp
	Left  Expr
	Right Expr
}

type CallExpr struct {
	Pos
	Target Expr
	Args   []Expr
}

func (*NumberLit) exprNode()  {}
func (*StringLit) exprNode()  {}
func (*Ident) exprNode()      {}
func (*BinaryExpr) exprNode() {}
func (*CallExpr) exprNode()   {}

// Statements

// ExprStmt is a bare expression; its value lands in Ans.
type ExprStmt struct {
	Pos
	X Expr
}

type LabelStmt struct {
	Pos
	Name string
}

type GotoStmt struct {
	Pos
	Name string
}

type WhileStmt struct {
	Pos
	Cond Expr
}

type RepeatStmt struct {
	Pos
	Cond Expr
}

type ForStmt struct {
	Pos
	Var   string
	Start Expr
	End   Expr
	Step  Expr
}

type IfStmt struct {
	Pos
	Cond Expr
}

type ThenStmt struct{ Pos }

type ElseStmt struct{ Pos }

type EndStmt struct{ Pos }

type DispStmt struct {
	Pos
	Args []Expr
}

type OutputStmt struct {
	Pos
	Row   Expr
	Col   Expr
	Value Expr
}

type ClrHomeStmt struct{ Pos }

// InputStmt reads one value into Var. Prompt is nil when the statement
// has a single argument.
type InputStmt struct {
	Pos
	Prompt Expr
	Var    string
}

type PromptStmt struct {
	Pos
	Vars []string
}

type PauseStmt struct {
	Pos
	Value Expr // optional
}

// MenuOption pairs a displayed option with its jump target.
type MenuOption struct {
	Text  Expr
	Label string
}

type MenuStmt struct {
	Pos
	Title   Expr
	Options []MenuOption
}

type PrgmStmt struct {
	Pos
	Name string
}

func (*ExprStmt) stmtNode()    {}
func (*LabelStmt) stmtNode()   {}
func (*GotoStmt) stmtNode()    {}
func (*WhileStmt) stmtNode()   {}
func (*RepeatStmt) stmtNode()  {}
func (*ForStmt) stmtNode()     {}
func (*IfStmt) stmtNode()      {}
func (*ThenStmt) stmtNode()    {}
func (*ElseStmt) stmtNode()    {}
func (*EndStmt) stmtNode()     {}
func (*DispStmt) stmtNode()    {}
func (*OutputStmt) stmtNode()  {}
func (*ClrHomeStmt) stmtNode() {}
func (*InputStmt) stmtNode()   {}
func (*PromptStmt) stmtNode()  {}
func (*PauseStmt) stmtNode()   {}
func (*MenuStmt) stmtNode()    {}
func (*PrgmStmt) stmtNode()    {}

// Program is the flat statement list plus its label table.
type Program struct {
	Stmts  []Stmt
	Labels map[string]int
}
