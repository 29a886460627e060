package tibasic

import "fmt"

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenNumber TokenKind = iota
	TokenString
	TokenIdentifier
	TokenOperator
	TokenComparison
	TokenAssignment
	TokenParen
	TokenComma
)

var tokenKindNames = map[TokenKind]string{
	TokenNumber:     "Number",
	TokenString:     "String",
	TokenIdentifier: "Identifier",
	TokenOperator:   "Operator",
	TokenComparison: "Comparison",
	TokenAssignment: "Assignment",
	TokenParen:      "Paren",
	TokenComma:      "Comma",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single lexical unit. Num is only meaningful for TokenNumber.
type Token struct {
	Kind TokenKind
	Text string
	Num  float64
	Line int
	Col  int
}

func (t Token) String() string {
	switch t.Kind {
	case TokenString:
		return fmt.Sprintf("String(%q)", t.Text)
	case TokenComma:
		return "Comma"
	default:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Text)
	}
}
