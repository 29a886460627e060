// Package calculator hosts a BASIC program the way the handheld does: it
// owns the home and menu screens, clocks the interpreter, and turns key
// presses into getKey codes, menu selections and typed input.
package calculator

import (
	"strconv"
	"strings"
	"sync"

	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/screen"
	"github.com/antibyte/retrocalc/pkg/tibasic"
)

// RunMode tells whether the clock may step the interpreter.
type RunMode int

const (
	ModeRun RunMode = iota
	ModePause
	ModeInput
	ModeDone
)

func (m RunMode) String() string {
	switch m {
	case ModeRun:
		return "run"
	case ModePause:
		return "pause"
	case ModeInput:
		return "input"
	case ModeDone:
		return "done"
	}
	return "unknown"
}

// ScreenMode selects which screen is visible.
type ScreenMode int

const (
	ScreenHome ScreenMode = iota
	ScreenMenu
)

func (m ScreenMode) String() string {
	if m == ScreenMenu {
		return "menu"
	}
	return "home"
}

const (
	codeEnter       = "Enter"
	codeNumpadEnter = "NumpadEnter"
	codeBackspace   = "Backspace"
	codeArrowUp     = "ArrowUp"
	codeArrowDown   = "ArrowDown"
)

// Calculator is safe for concurrent use.
type Calculator struct {
	mu sync.Mutex

	home   *screen.Home
	menu   *screen.Menu
	interp *tibasic.Interpreter

	keys         KeyMap
	stepsPerTick int
	interpOpts   []tibasic.Option

	program string
	run     RunMode
	screen  ScreenMode
	input   string
	held    string
	err     error
	version uint64
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithKeyMap replaces the default key map.
func WithKeyMap(km KeyMap) Option {
	return func(c *Calculator) { c.keys = km }
}

// WithStepsPerTick sets how many statements one Tick may run.
func WithStepsPerTick(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.stepsPerTick = n
		}
	}
}

// WithInterpreterOptions passes options to every interpreter the
// calculator creates.
func WithInterpreterOptions(opts ...tibasic.Option) Option {
	return func(c *Calculator) { c.interpOpts = append(c.interpOpts, opts...) }
}

// New returns a calculator with no program loaded (mode done).
func New(opts ...Option) *Calculator {
	c := &Calculator{
		home:         screen.NewHome(),
		menu:         screen.NewMenu(),
		keys:         DefaultKeyMap(),
		stepsPerTick: 1,
		run:          ModeDone,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load compiles src and starts it from a cleared screen. On a compile error
// the current program keeps running.
func (c *Calculator) Load(name, src string) error {
	prog, err := tibasic.Compile(src)
	if err != nil {
		logger.Info(logger.AreaCalculator, "program %s rejected: %v", name, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.home.Clear()
	c.menu.SetTitleAndOptions("", nil)
	c.interp = tibasic.New(prog, c.home, c.menu, c.interpOpts...)
	c.program = name
	c.run = ModeRun
	c.screen = ScreenHome
	c.input = ""
	c.held = ""
	c.err = nil
	c.version++
	logger.Debug(logger.AreaCalculator, "loaded %s (%d statements)", name, len(prog.Stmts))
	return nil
}

// Tick runs up to stepsPerTick statements while the calculator is in run
// mode and reports whether anything visible may have changed.
func (c *Calculator) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	stepped := false
	for i := 0; i < c.stepsPerTick && c.run == ModeRun && c.interp != nil; i++ {
		c.apply(c.interp.Step())
		stepped = true
	}
	if stepped {
		c.version++
	}
	return stepped
}

func (c *Calculator) apply(st tibasic.Status) {
	c.screen = ScreenHome
	switch st.State {
	case tibasic.StateContinue:
		c.run = ModeRun
	case tibasic.StatePaused:
		c.run = ModePause
	case tibasic.StateAwaitingInput:
		c.run = ModeInput
	case tibasic.StateAwaitingMenuSelection:
		c.run = ModePause
		c.screen = ScreenMenu
	case tibasic.StateHalted:
		c.run = ModeDone
		c.err = st.Err
		if st.Err != nil {
			logger.Info(logger.AreaCalculator, "%s stopped: %v", c.program, st.Err)
		}
	}
}

// KeyDown handles a key press. Repeats of a held key are ignored until the
// matching KeyUp.
func (c *Calculator) KeyDown(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if code == c.held {
		return
	}
	c.held = code

	switch c.screen {
	case ScreenMenu:
		switch code {
		case codeArrowUp:
			c.menu.Prev()
		case codeArrowDown:
			c.menu.Next()
		}
	case ScreenHome:
		if code == codeBackspace && c.input != "" {
			r := []rune(c.input)
			c.input = string(r[:len(r)-1])
		}
	}
	c.version++
}

// KeyUp handles a key release. key is the produced character, if any.
func (c *Calculator) KeyUp(code, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if code == c.held {
		c.held = ""
	}
	if c.interp == nil {
		return
	}

	switch c.screen {
	case ScreenMenu:
		if isEnter(code) {
			c.run = ModeRun
		} else if n, ok := menuDigit(code); ok && n >= 1 && n <= len(c.menu.Labels()) {
			c.menu.SetCurrentIndex(n - 1)
			c.run = ModeRun
		}
	case ScreenHome:
		if n, ok := c.keys.Code(code); ok {
			c.interp.SetLastKey(n)
		}
		if c.run == ModeInput && len([]rune(key)) == 1 {
			c.input += key
		}
		if isEnter(code) && (c.run == ModePause || c.run == ModeInput) {
			c.interp.SetInput(c.input)
			c.input = ""
			c.run = ModeRun
		}
	}
	c.version++
}

func isEnter(code string) bool {
	return code == codeEnter || code == codeNumpadEnter
}

// menuDigit extracts N from DigitN or NumpadN.
func menuDigit(code string) (int, bool) {
	for _, prefix := range []string{"Digit", "Numpad"} {
		if rest, ok := strings.CutPrefix(code, prefix); ok {
			n, err := strconv.Atoi(rest)
			return n, err == nil
		}
	}
	return 0, false
}

// Snapshot is everything a renderer needs to draw one frame.
type Snapshot struct {
	Version    uint64   `json:"version"`
	Program    string   `json:"program"`
	Run        string   `json:"run"`
	Screen     string   `json:"screen"`
	Lines      []string `json:"lines"`
	CursorRow  int      `json:"cursorRow"`
	CursorCol  int      `json:"cursorCol"`
	ShowCursor bool     `json:"showCursor"`
	Input      string   `json:"input,omitempty"`
	MenuTitle  string   `json:"menuTitle,omitempty"`
	MenuLabels []string `json:"menuLabels,omitempty"`
	MenuIndex  int      `json:"menuIndex"`
	Error      string   `json:"error,omitempty"`
}

// Snapshot returns the current frame. Typed input is drawn over the home
// screen after the cursor.
func (c *Calculator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, col := c.home.Cursor()
	lines, endRow, endCol := c.home.Overlay(row, col, c.input)
	snap := Snapshot{
		Version:    c.version,
		Program:    c.program,
		Run:        c.run.String(),
		Screen:     c.screen.String(),
		Lines:      lines,
		CursorRow:  endRow,
		CursorCol:  endCol,
		ShowCursor: c.run == ModeInput,
		Input:      c.input,
		MenuTitle:  c.menu.Title(),
		MenuLabels: c.menu.Labels(),
		MenuIndex:  c.menu.CurrentIndex(),
	}
	if c.err != nil {
		snap.Error = c.err.Error()
	}
	return snap
}

// Version increases whenever the calculator state may have changed.
func (c *Calculator) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Mode returns the run and screen modes.
func (c *Calculator) Mode() (RunMode, ScreenMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run, c.screen
}

// Err returns the error that halted the program, if any.
func (c *Calculator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
