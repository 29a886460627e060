// Package tibasic implements the lexer, parser and step-wise interpreter for a
// TI-83 style BASIC dialect.
package tibasic

import (
	"errors"
	"fmt"
	"strings"
)

// Error definitions for program loading and execution.
var (
	ErrUnexpectedChar  = errors.New("unexpected character")
	ErrUnexpectedToken = errors.New("unexpected token")
	ErrUnexpectedEOF   = errors.New("unexpected end of program")
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrUndefinedLabel  = errors.New("undefined label")
	ErrUnbalancedEnd   = errors.New("End without open block")
	ErrMenuSelection   = errors.New("menu selection out of range")
	ErrUnexpectedNode  = errors.New("unexpected statement")
	ErrUnsupported     = errors.New("unsupported statement")
)

// Error categories
const (
	CategoryLexical = "LEXICAL ERROR"
	CategorySyntax  = "SYNTAX ERROR"
	CategoryLoad    = "LOAD ERROR"
	CategoryRuntime = "RUNTIME ERROR"
)

// Error is a structured load or runtime failure. Err holds one of the
// sentinel errors above so callers can match with errors.Is.
type Error struct {
	Category string
	Err      error
	Line     int
	Col      int
	Detail   string
	Expected string // parse errors only
	Found    string // parse errors only
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Category)
	if e.Line > 0 {
		fmt.Fprintf(&sb, " IN LINE %d", e.Line)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	if e.Expected != "" {
		fmt.Fprintf(&sb, ": expected %s, found %s", e.Expected, e.Found)
	} else if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(category string, err error, line int, detail string) *Error {
	return &Error{Category: category, Err: err, Line: line, Detail: detail}
}

func lexError(line, col int, text string) *Error {
	e := newError(CategoryLexical, ErrUnexpectedChar, line, fmt.Sprintf("%q", text))
	e.Col = col
	return e
}

func runtimeError(err error, line int, detail string) *Error {
	return newError(CategoryRuntime, err, line, detail)
}
