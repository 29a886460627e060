package tibasic

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

// fakeScreen records every sink call as a string.
type fakeScreen struct {
	calls []string
}

func (s *fakeScreen) Display(v Value) {
	s.calls = append(s.calls, "display:"+v.String())
}

func (s *fakeScreen) Output(row, col int, v Value) {
	s.calls = append(s.calls, fmt.Sprintf("output:%d,%d:%s", row, col, v.String()))
}

func (s *fakeScreen) Clear() {
	s.calls = append(s.calls, "clear")
}

type fakeMenu struct {
	title   string
	options []string
	index   int
}

func (m *fakeMenu) SetTitleAndOptions(title string, options []string) {
	m.title = title
	m.options = options
	m.index = 0
}

func (m *fakeMenu) CurrentIndex() int {
	return m.index
}

func mustLoad(t *testing.T, src string) (*Interpreter, *fakeScreen, *fakeMenu) {
	t.Helper()
	screen := &fakeScreen{}
	menu := &fakeMenu{}
	in, err := Load(src, screen, menu, WithRand(rand.New(rand.NewSource(1))))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return in, screen, menu
}

// runUntilSuspend steps until the interpreter reports anything but Continue.
func runUntilSuspend(t *testing.T, in *Interpreter) Status {
	t.Helper()
	for i := 0; i < 10000; i++ {
		st := in.Step()
		if st.State != StateContinue {
			return st
		}
	}
	t.Fatal("program did not suspend or halt within 10000 steps")
	return Status{}
}

func expectVar(t *testing.T, in *Interpreter, name string, want Value) {
	t.Helper()
	got, ok := in.Var(name)
	if !ok {
		t.Fatalf("variable %s is not bound", name)
	}
	if !got.Equal(want) {
		t.Errorf("%s = %s (%s), want %s (%s)", name, got, got.Kind(), want, want.Kind())
	}
}

func expectCalls(t *testing.T, screen *fakeScreen, want ...string) {
	t.Helper()
	if strings.Join(screen.calls, "|") != strings.Join(want, "|") {
		t.Errorf("screen calls = %q, want %q", screen.calls, want)
	}
}

// sexpr prints an expression tree in prefix form for compact assertions.
func sexpr(x Expr) string {
	switch x := x.(type) {
	case *NumberLit:
		return FormatNumber(x.Value)
	case *StringLit:
		return fmt.Sprintf("%q", x.Value)
	case *Ident:
		return x.Name
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", x.Op, sexpr(x.Left), sexpr(x.Right))
	case *CallExpr:
		parts := []string{"call", sexpr(x.Target)}
		for _, a := range x.Args {
			parts = append(parts, sexpr(a))
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
	return "?"
}
