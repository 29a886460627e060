// Package screen provides the calculator's home screen and menu screen, the
// two display collaborators driven by the BASIC interpreter.
package screen

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/antibyte/retrocalc/pkg/tibasic"
)

const (
	Rows = 8
	Cols = 16

	ellipsis = "..."
	blank    = " "
)

// Home is the 8x16 character grid. Each cell holds one glyph; the cell to
// the right of a double-width glyph holds "" so rows always span Cols cells.
type Home struct {
	cells [Rows][Cols]string

	// position after the last Display, 0-based
	curRow, curCol int
}

var _ tibasic.Screen = (*Home)(nil)

// NewHome returns a cleared home screen.
func NewHome() *Home {
	h := &Home{}
	h.Clear()
	return h
}

// Clear blanks every cell and homes the cursor.
func (h *Home) Clear() {
	for r := range h.cells {
		h.clearRow(r)
	}
	h.curRow, h.curCol = 0, 0
}

func (h *Home) clearRow(r int) {
	for c := range h.cells[r] {
		h.cells[r][c] = blank
	}
}

// Display writes v on the first blank row: strings left aligned, everything
// else right aligned. Writing the bottom row scrolls the grid up by one.
func (h *Home) Display(v tibasic.Value) {
	text := v.String()
	var line string
	switch {
	case runewidth.StringWidth(text) > Cols:
		line = runewidth.Truncate(text, Cols, ellipsis)
	case v.Kind() == tibasic.KindString:
		line = runewidth.FillRight(text, Cols)
	default:
		line = runewidth.FillLeft(text, Cols)
	}

	row := h.firstBlankRow()
	if row < 0 {
		h.scroll()
		row = Rows - 1
	}
	h.write(row, 0, line)
	h.curRow = row
	h.curCol = min(runewidth.StringWidth(strings.TrimRight(line, blank)), Cols)

	if row == Rows-1 {
		h.scroll()
	}
}

// Output overwrites cells starting at the 1-based row and col. Text running
// past the right edge is clipped; positions outside the grid are ignored.
func (h *Home) Output(row, col int, v tibasic.Value) {
	if row < 1 || row > Rows || col < 1 || col > Cols {
		return
	}
	h.write(row-1, col-1, v.String())
}

func (h *Home) write(row, col int, text string) {
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > Cols {
			return
		}
		h.breakWide(row, col)
		h.cells[row][col] = string(r)
		if w == 2 {
			h.breakWide(row, col+1)
			h.cells[row][col+1] = ""
		}
		col += w
	}
}

// breakWide blanks the other half of a double-width glyph about to be
// partially overwritten at (row, col).
func (h *Home) breakWide(row, col int) {
	cell := h.cells[row][col]
	if cell == "" && col > 0 {
		h.cells[row][col-1] = blank
		return
	}
	if col+1 < Cols && runewidth.StringWidth(cell) == 2 {
		h.cells[row][col+1] = blank
	}
}

func (h *Home) firstBlankRow() int {
	for r := range h.cells {
		if h.rowBlank(r) {
			return r
		}
	}
	return -1
}

func (h *Home) rowBlank(r int) bool {
	for _, c := range h.cells[r] {
		if c != blank {
			return false
		}
	}
	return true
}

func (h *Home) scroll() {
	copy(h.cells[:], h.cells[1:])
	h.clearRow(Rows - 1)
	if h.curRow > 0 {
		h.curRow--
	} else {
		h.curCol = 0
	}
}

// Overlay draws text from the 0-based (row, col), wrapping at the right
// edge, on a copy of the grid. It returns the copy's lines and the cell
// after the last drawn glyph. Text running off the bottom is dropped.
func (h *Home) Overlay(row, col int, text string) (lines []string, endRow, endCol int) {
	cp := *h
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > Cols {
			row, col = row+1, 0
		}
		if row >= Rows {
			break
		}
		cp.write(row, col, string(r))
		col += w
	}
	return cp.Lines(), row, col
}

// Lines returns the grid as Rows strings of Cols cells each.
func (h *Home) Lines() []string {
	lines := make([]string, Rows)
	for r := range h.cells {
		lines[r] = strings.Join(h.cells[r][:], "")
	}
	return lines
}

// String joins the lines with newlines.
func (h *Home) String() string {
	return strings.Join(h.Lines(), "\n")
}

// Cursor returns the 0-based cell after the most recently displayed text.
func (h *Home) Cursor() (row, col int) {
	return h.curRow, h.curCol
}
