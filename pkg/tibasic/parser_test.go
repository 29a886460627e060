package tibasic

import (
	"errors"
	"reflect"
	"testing"

	"github.com/MakeNowJust/heredoc"
)

func mustCompile(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", src, err)
	}
	return prog
}

func TestParseExpressionPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1+2*3", "(+ 1 (* 2 3))"},
		{"(1+2)*3", "(* (+ 1 2) 3)"},
		{"10-4-3", "(- (- 10 4) 3)"},
		{"X+1=5", "(+ X (= 1 5))"},
		{"2*K=24", "(* 2 (= K 24))"},
		{"1+2->X", "(-> (+ 1 2) X)"},
		{"A!=B", "(!= A B)"},
		{"A>=B", "(>= A B)"},
		{"A and B or C", "(or (and A B) C)"},
		{"K=24 and X<3", "(and (= K 24) (< X 3))"},
		{"sqrt(16)", "(call sqrt 16)"},
		{"random(1,6)", "(call random 1 6)"},
		{"F(1)(2)", "(call (call F 1) 2)"},
		{"-5+2", "(+ (- 0 5) 2)"},
		{`"HI"`, `"HI"`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog := mustCompile(t, tt.src)
			if len(prog.Stmts) != 1 {
				t.Fatalf("got %d statements, want 1", len(prog.Stmts))
			}
			stmt, ok := prog.Stmts[0].(*ExprStmt)
			if !ok {
				t.Fatalf("got %T, want *ExprStmt", prog.Stmts[0])
			}
			if got := sexpr(stmt.X); got != tt.want {
				t.Errorf("parsed %q as %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestParseStatementKinds(t *testing.T) {
	src := heredoc.Doc(`
		ClrHome
		Lbl A
		If K=24
		Then
		Output(1,11,"<--")
		Else
		Output(1,11,K
		End
		While X<3
		X+1->X
		End
		Repeat getKey
		End
		For(I,1,3)
		Disp I,"X"
		End
		Input "N?",N
		Prompt A,B
		Pause
		Menu("T","A",10,"B",20
		Prgm "OTHER"
		Goto A
	`)
	prog := mustCompile(t, src)

	want := []Stmt{
		&ClrHomeStmt{}, &LabelStmt{}, &IfStmt{}, &ThenStmt{}, &OutputStmt{}, &ElseStmt{}, &OutputStmt{}, &EndStmt{},
		&WhileStmt{}, &ExprStmt{}, &EndStmt{}, &RepeatStmt{}, &EndStmt{}, &ForStmt{}, &DispStmt{}, &EndStmt{},
		&InputStmt{}, &PromptStmt{}, &PauseStmt{}, &MenuStmt{}, &PrgmStmt{}, &GotoStmt{},
	}
	if len(prog.Stmts) != len(want) {
		t.Fatalf("got %d statements, want %d", len(prog.Stmts), len(want))
	}
	for i, stmt := range prog.Stmts {
		if reflect.TypeOf(stmt) != reflect.TypeOf(want[i]) {
			t.Errorf("statement %d is %T, want %T", i, stmt, want[i])
		}
	}
	if prog.Labels["A"] != 1 {
		t.Errorf("label A at %d, want 1", prog.Labels["A"])
	}
}

func TestParseKeywordsAreCaseInsensitive(t *testing.T) {
	prog := mustCompile(t, "disp 1\nDISP 2\nclrhome")
	for i, want := range []Stmt{&DispStmt{}, &DispStmt{}, &ClrHomeStmt{}} {
		if reflect.TypeOf(prog.Stmts[i]) != reflect.TypeOf(want) {
			t.Errorf("statement %d is %T, want %T", i, prog.Stmts[i], want)
		}
	}
}

func TestParseDetails(t *testing.T) {
	t.Run("numeric labels are rounded", func(t *testing.T) {
		prog := mustCompile(t, "Lbl 10.4\nGoto 9.6")
		if name := prog.Stmts[0].(*LabelStmt).Name; name != "10" {
			t.Errorf("label name = %q, want 10", name)
		}
		if name := prog.Stmts[1].(*GotoStmt).Name; name != "10" {
			t.Errorf("goto name = %q, want 10", name)
		}
	})

	t.Run("menu options", func(t *testing.T) {
		prog := mustCompile(t, `Menu("T","A",10,"B",20)`)
		menu := prog.Stmts[0].(*MenuStmt)
		if sexpr(menu.Title) != `"T"` || len(menu.Options) != 2 {
			t.Fatalf("unexpected menu %+v", menu)
		}
		if menu.Options[0].Label != "10" || menu.Options[1].Label != "20" {
			t.Errorf("labels = %q, %q", menu.Options[0].Label, menu.Options[1].Label)
		}
	})

	t.Run("for step defaults to one", func(t *testing.T) {
		prog := mustCompile(t, "For(I,1,10)")
		f := prog.Stmts[0].(*ForStmt)
		if f.Var != "I" || sexpr(f.Step) != "1" {
			t.Errorf("got var %s step %s", f.Var, sexpr(f.Step))
		}
		prog = mustCompile(t, "For(I,10,1,0-2)")
		if got := sexpr(prog.Stmts[0].(*ForStmt).Step); got != "(- 0 2)" {
			t.Errorf("step = %s", got)
		}
	})

	t.Run("input forms", func(t *testing.T) {
		prog := mustCompile(t, "Input X\nInput \"AGE\",A")
		one := prog.Stmts[0].(*InputStmt)
		two := prog.Stmts[1].(*InputStmt)
		if one.Prompt != nil || one.Var != "X" {
			t.Errorf("single argument input = %+v", one)
		}
		if sexpr(two.Prompt) != `"AGE"` || two.Var != "A" {
			t.Errorf("prompted input = %+v", two)
		}
	})

	t.Run("arguments stop at line end", func(t *testing.T) {
		prog := mustCompile(t, "Pause\nDisp\n\"A\"")
		if len(prog.Stmts) != 3 {
			t.Fatalf("got %d statements, want 3", len(prog.Stmts))
		}
		if prog.Stmts[0].(*PauseStmt).Value != nil {
			t.Error("Pause picked up an argument from the next line")
		}
		if len(prog.Stmts[1].(*DispStmt).Args) != 0 {
			t.Error("Disp picked up an argument from the next line")
		}
	})

	t.Run("expressions stop at line end", func(t *testing.T) {
		prog := mustCompile(t, "Disp X\n-1->Y")
		if len(prog.Stmts) != 2 {
			t.Fatalf("got %d statements, want 2", len(prog.Stmts))
		}
		if got := sexpr(prog.Stmts[1].(*ExprStmt).X); got != "(-> (- 0 1) Y)" {
			t.Errorf("second statement = %s", got)
		}
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		want     error
		category string
	}{
		{"for needs a variable", "For(1,2,3)", ErrUnexpectedToken, CategorySyntax},
		{"for needs closing paren", "For(I,1,3", ErrUnexpectedEOF, CategorySyntax},
		{"assign to literal", "1->2", ErrUnexpectedToken, CategorySyntax},
		{"unclosed paren", "Disp (1", ErrUnexpectedEOF, CategorySyntax},
		{"lone bang", "A!B", ErrUnexpectedToken, CategorySyntax},
		{"input needs identifier", "Input 1+2", ErrUnexpectedToken, CategorySyntax},
		{"prompt needs identifier", `Prompt "A"`, ErrUnexpectedToken, CategorySyntax},
		{"goto needs label", "Goto \"A\"", ErrUnexpectedToken, CategorySyntax},
		{"dangling operator", "1+", ErrUnexpectedEOF, CategorySyntax},
		{"stray close paren", ")", ErrUnexpectedToken, CategorySyntax},
		{"duplicate label", "Lbl A\nDisp 1\nLbl A", ErrDuplicateLabel, CategoryLoad},
		{"lexical error", "Disp #", ErrUnexpectedChar, CategoryLexical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Compile(%q) error = %v, want %v", tt.src, err, tt.want)
			}
			var perr *Error
			if !errors.As(err, &perr) || perr.Category != tt.category {
				t.Errorf("error category = %v, want %s", err, tt.category)
			}
		})
	}
}

func TestParseErrorReportsExpectedAndFound(t *testing.T) {
	_, err := Compile("Disp 1\nFor(I,1,3]")
	if err == nil {
		t.Fatal("expected an error")
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Category != CategoryLexical {
		t.Fatalf("category = %s, want %s", perr.Category, CategoryLexical)
	}

	_, err = Compile("Disp 1\nFor(I,1,3,)")
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Line != 2 || perr.Expected != "expression" || perr.Found != "Paren())" {
		t.Errorf("got line %d expected %q found %q", perr.Line, perr.Expected, perr.Found)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	src := "If X=1\nThen\nDisp \"A\"\nElse\nDisp \"B\"\nEnd"
	a := mustCompile(t, src)
	b := mustCompile(t, src)
	if !reflect.DeepEqual(a, b) {
		t.Error("two parses of the same source differ")
	}
}
