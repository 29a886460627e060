package tibasic

import (
	"errors"
	"reflect"
	"testing"
)

func TestScanTokens(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		kinds []TokenKind
		texts []string
	}{
		{
			name:  "assignment",
			src:   "1->X",
			kinds: []TokenKind{TokenNumber, TokenAssignment, TokenIdentifier},
			texts: []string{"1", "->", "X"},
		},
		{
			name:  "minus is an operator",
			src:   "5-3",
			kinds: []TokenKind{TokenNumber, TokenOperator, TokenNumber},
			texts: []string{"5", "-", "3"},
		},
		{
			name:  "not equal is two comparison tokens",
			src:   "A!=B",
			kinds: []TokenKind{TokenIdentifier, TokenComparison, TokenComparison, TokenIdentifier},
			texts: []string{"A", "!", "=", "B"},
		},
		{
			name:  "compound comparisons",
			src:   "X>=3<=Y",
			kinds: []TokenKind{TokenIdentifier, TokenComparison, TokenNumber, TokenComparison, TokenIdentifier},
			texts: []string{"X", ">=", "3", "<=", "Y"},
		},
		{
			name:  "unterminated string runs to end",
			src:   `Disp "HELLO`,
			kinds: []TokenKind{TokenIdentifier, TokenString},
			texts: []string{"Disp", "HELLO"},
		},
		{
			name:  "string keeps spaces and symbols",
			src:   `"A @ B",1`,
			kinds: []TokenKind{TokenString, TokenComma, TokenNumber},
			texts: []string{"A @ B", ",", "1"},
		},
		{
			name:  "trailing dot is not a number",
			src:   "1. 2.5",
			kinds: []TokenKind{TokenIdentifier, TokenNumber},
			texts: []string{"1.", "2.5"},
		},
		{
			name:  "parens and operators",
			src:   "sin(Pi*2)%3",
			kinds: []TokenKind{TokenIdentifier, TokenParen, TokenIdentifier, TokenOperator, TokenNumber, TokenParen, TokenOperator, TokenNumber},
			texts: []string{"sin", "(", "Pi", "*", "2", ")", "%", "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Scan(tt.src)
			if err != nil {
				t.Fatalf("Scan(%q) failed: %v", tt.src, err)
			}
			if len(tokens) != len(tt.kinds) {
				t.Fatalf("Scan(%q) returned %d tokens, want %d: %v", tt.src, len(tokens), len(tt.kinds), tokens)
			}
			for i, tok := range tokens {
				if tok.Kind != tt.kinds[i] || tok.Text != tt.texts[i] {
					t.Errorf("token %d = %s %q, want %s %q", i, tok.Kind, tok.Text, tt.kinds[i], tt.texts[i])
				}
			}
		})
	}
}

func TestScanNumberValue(t *testing.T) {
	tokens, err := Scan("12.25")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if tokens[0].Num != 12.25 {
		t.Errorf("Num = %v, want 12.25", tokens[0].Num)
	}
}

func TestScanPositions(t *testing.T) {
	tokens, err := Scan("Disp 1\n  X")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	want := [][2]int{{1, 1}, {1, 6}, {2, 3}}
	for i, tok := range tokens {
		if tok.Line != want[i][0] || tok.Col != want[i][1] {
			t.Errorf("token %d at %d:%d, want %d:%d", i, tok.Line, tok.Col, want[i][0], want[i][1])
		}
	}
}

func TestScanUnexpectedCharacter(t *testing.T) {
	_, err := Scan("1->X\nX@Y")
	if !errors.Is(err, ErrUnexpectedChar) {
		t.Fatalf("expected ErrUnexpectedChar, got %v", err)
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Category != CategoryLexical || perr.Line != 2 || perr.Col != 2 {
		t.Errorf("got %s at %d:%d, want %s at 2:2", perr.Category, perr.Line, perr.Col, CategoryLexical)
	}
}

func TestScanIsDeterministic(t *testing.T) {
	src := "For(I,1,10)\nDisp I*2\nEnd"
	a, errA := Scan(src)
	b, errB := Scan(src)
	if errA != nil || errB != nil {
		t.Fatalf("Scan failed: %v / %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("two scans of the same source differ")
	}
}
