package tibasic

import (
	"regexp"
	"strconv"
	"unicode"
	"unicode/utf8"
)

var numberPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// Lexer turns source text into tokens. It keeps no state between Scan calls.
type Lexer struct {
	src  string
	pos  int
	line int
	col  int
}

// Scan tokenizes src in a single left-to-right pass.
func Scan(src string) ([]Token, error) {
	l := &Lexer{src: src, line: 1, col: 1}
	return l.scan()
}

func (l *Lexer) peek() (rune, int) {
	if l.pos >= len(l.src) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.src[l.pos:])
}

func (l *Lexer) advance() rune {
	r, size := l.peek()
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.'
}

func (l *Lexer) scan() ([]Token, error) {
	var tokens []Token
	for l.pos < len(l.src) {
		r, _ := l.peek()
		line, col := l.line, l.col

		emit := func(kind TokenKind, text string) {
			tokens = append(tokens, Token{Kind: kind, Text: text, Line: line, Col: col})
		}

		switch {
		case unicode.IsSpace(r):
			l.advance()

		case isAlphanumeric(r):
			start := l.pos
			for l.pos < len(l.src) {
				next, _ := l.peek()
				if !isAlphanumeric(next) {
					break
				}
				l.advance()
			}
			word := l.src[start:l.pos]
			if numberPattern.MatchString(word) {
				n, err := strconv.ParseFloat(word, 64)
				if err != nil {
					return nil, lexError(line, col, word)
				}
				tokens = append(tokens, Token{Kind: TokenNumber, Text: word, Num: n, Line: line, Col: col})
			} else {
				emit(TokenIdentifier, word)
			}

		case r == '"':
			l.advance()
			start := l.pos
			for l.pos < len(l.src) {
				next, _ := l.peek()
				if next == '"' {
					break
				}
				l.advance()
			}
			text := l.src[start:l.pos]
			// an unterminated string runs to the end of input
			if l.pos < len(l.src) {
				l.advance()
			}
			emit(TokenString, text)

		case r == '+' || r == '*' || r == '/' || r == '%':
			l.advance()
			emit(TokenOperator, string(r))

		case r == '-':
			l.advance()
			if next, _ := l.peek(); next == '>' {
				l.advance()
				emit(TokenAssignment, "->")
			} else {
				emit(TokenOperator, "-")
			}

		case r == '>' || r == '<':
			l.advance()
			if next, _ := l.peek(); next == '=' {
				l.advance()
				emit(TokenComparison, string(r)+"=")
			} else {
				emit(TokenComparison, string(r))
			}

		case r == '=' || r == '!':
			l.advance()
			emit(TokenComparison, string(r))

		case r == '(' || r == ')':
			l.advance()
			emit(TokenParen, string(r))

		case r == ',':
			l.advance()
			emit(TokenComma, ",")

		default:
			return nil, lexError(line, col, string(r))
		}
	}
	return tokens, nil
}
