package tibasic

import (
	"math/rand"
	"time"

	"github.com/antibyte/retrocalc/pkg/logger"
)

// State is the scheduling hint returned by Step.
type State int

const (
	StateContinue State = iota
	StateAwaitingMenuSelection
	StateAwaitingInput
	StatePaused
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateContinue:
		return "Continue"
	case StateAwaitingMenuSelection:
		return "AwaitingMenuSelection"
	case StateAwaitingInput:
		return "AwaitingInput"
	case StatePaused:
		return "Paused"
	case StateHalted:
		return "Halted"
	}
	return "Unknown"
}

// Status is the result of one Step. Err is only set for StateHalted and is
// nil when the program simply ran off its end.
type Status struct {
	State State
	Err   error
}

// AnsName is the variable holding the last bare expression result.
const AnsName = "Ans"

const noSkip = -1

// Interpreter executes a Program one statement per Step call. It is not
// safe for concurrent use; the host serializes calls.
type Interpreter struct {
	prog   *Program
	screen Screen
	menu   Menu

	pc      int
	vars    map[string]Value
	blocks  []int
	skip    int
	forInit map[int]bool
	ifTaken map[int]bool

	lastKey     int
	resolve     func(string)
	pendingMenu *MenuStmt
	promptIdx   int

	rng       *rand.Rand
	sessionID string
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithRand sets the random source used by random().
func WithRand(rng *rand.Rand) Option {
	return func(in *Interpreter) { in.rng = rng }
}

// WithSessionID tags log lines with the owning session.
func WithSessionID(id string) Option {
	return func(in *Interpreter) { in.sessionID = id }
}

// New creates an interpreter positioned at the first statement of prog.
func New(prog *Program, screen Screen, menu Menu, opts ...Option) *Interpreter {
	in := &Interpreter{
		prog:    prog,
		screen:  screen,
		menu:    menu,
		skip:    noSkip,
		forInit: make(map[int]bool),
		ifTaken: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.rng == nil {
		in.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	in.vars = initialBindings(in.rng)
	return in
}

// Load compiles src and returns a fresh interpreter. Lexical, syntax and
// label errors are returned before any interpreter exists.
func Load(src string, screen Screen, menu Menu, opts ...Option) (*Interpreter, error) {
	prog, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return New(prog, screen, menu, opts...), nil
}

// HasMore reports whether the program counter is still inside the program.
func (in *Interpreter) HasMore() bool {
	return in.pc < len(in.prog.Stmts)
}

// PC returns the index of the next statement to run.
func (in *Interpreter) PC() int {
	return in.pc
}

// SetLastKey records a key press for the next getKey read.
func (in *Interpreter) SetLastKey(code int) {
	in.lastKey = code
}

// SetInput resolves a pending Input or Prompt. It is ignored when no input
// is pending.
func (in *Interpreter) SetInput(text string) {
	if in.resolve == nil {
		return
	}
	resolve := in.resolve
	in.resolve = nil
	resolve(text)
}

// AwaitingInput reports whether an Input or Prompt is waiting for SetInput.
func (in *Interpreter) AwaitingInput() bool {
	return in.resolve != nil
}

// Var returns a variable binding without the auto-initialising side effect.
func (in *Interpreter) Var(name string) (Value, bool) {
	v, ok := in.vars[name]
	return v, ok
}

// SetVar binds a variable.
func (in *Interpreter) SetVar(name string, v Value) {
	in.vars[name] = v
}

// Step executes or skips exactly one statement.
func (in *Interpreter) Step() Status {
	if in.resolve != nil {
		return Status{State: StateAwaitingInput}
	}
	if in.pendingMenu != nil {
		return in.resumeMenu()
	}
	if !in.HasMore() {
		return Status{State: StateHalted}
	}

	stmt := in.prog.Stmts[in.pc]
	if in.skipping() {
		in.skipStmt(stmt)
		return Status{State: StateContinue}
	}

	status, err := in.exec(stmt)
	if err != nil {
		return in.halt(err)
	}
	return status
}

func (in *Interpreter) halt(err error) Status {
	logger.Warn(logger.AreaInterpreter, "[%s] program halted at statement %d: %v", in.sessionID, in.pc, err)
	in.pc = len(in.prog.Stmts)
	in.resolve = nil
	in.pendingMenu = nil
	return Status{State: StateHalted, Err: err}
}

func (in *Interpreter) push(idx int) {
	in.blocks = append(in.blocks, idx)
}

func (in *Interpreter) pop() (int, bool) {
	if len(in.blocks) == 0 {
		return 0, false
	}
	top := in.blocks[len(in.blocks)-1]
	in.blocks = in.blocks[:len(in.blocks)-1]
	return top, true
}

func (in *Interpreter) skipping() bool {
	return in.skip != noSkip && len(in.blocks) >= in.skip
}

// skipStmt scans a statement inside a false branch or loop body, tracking
// only block structure.
func (in *Interpreter) skipStmt(stmt Stmt) {
	switch stmt.(type) {
	case *WhileStmt, *RepeatStmt, *ForStmt, *ThenStmt:
		in.push(in.pc)
	case *ElseStmt:
		closes := len(in.blocks) == in.skip
		in.pop()
		in.push(in.pc)
		if closes {
			in.skip = noSkip
		}
	case *EndStmt:
		if idx, ok := in.pop(); ok {
			if _, isFor := in.prog.Stmts[idx].(*ForStmt); isFor {
				delete(in.forInit, idx)
			}
			delete(in.ifTaken, idx)
		}
		if len(in.blocks) < in.skip {
			in.skip = noSkip
		}
	}
	in.pc++
}

func (in *Interpreter) jump(label string, line int) error {
	idx, ok := in.prog.Labels[label]
	if !ok {
		return runtimeError(ErrUndefinedLabel, line, label)
	}
	in.pc = idx
	return nil
}

func (in *Interpreter) resumeMenu() Status {
	stmt := in.pendingMenu
	in.pendingMenu = nil
	sel := in.menu.CurrentIndex()
	if sel < 0 || sel >= len(stmt.Options) {
		return in.halt(runtimeError(ErrMenuSelection, stmt.Line(), ""))
	}
	if err := in.jump(stmt.Options[sel].Label, stmt.Line()); err != nil {
		return in.halt(err)
	}
	return Status{State: StateContinue}
}
