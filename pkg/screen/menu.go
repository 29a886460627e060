package screen

import (
	"github.com/mattn/go-runewidth"

	"github.com/antibyte/retrocalc/pkg/tibasic"
)

const (
	titleWidth = Cols
	labelWidth = Cols - 2
)

// Menu holds the title, option labels and highlighted index of a Menu
// statement.
type Menu struct {
	title  string
	labels []string
	index  int
}

var _ tibasic.Menu = (*Menu)(nil)

// NewMenu returns an empty menu.
func NewMenu() *Menu {
	return &Menu{}
}

// SetTitleAndOptions replaces the menu contents and selects the first option.
func (m *Menu) SetTitleAndOptions(title string, options []string) {
	m.title = runewidth.Truncate(title, titleWidth, "")
	m.labels = make([]string, len(options))
	for i, o := range options {
		m.labels[i] = runewidth.Truncate(o, labelWidth, "")
	}
	m.index = 0
}

func (m *Menu) Title() string { return m.title }

// Labels returns a copy of the option labels.
func (m *Menu) Labels() []string {
	return append([]string(nil), m.labels...)
}

func (m *Menu) CurrentIndex() int { return m.index }

// SetCurrentIndex selects option i, clamped to the available options.
func (m *Menu) SetCurrentIndex(i int) {
	if len(m.labels) == 0 {
		m.index = 0
		return
	}
	m.index = max(0, min(i, len(m.labels)-1))
}

// Next moves the selection down, wrapping to the top.
func (m *Menu) Next() {
	if n := len(m.labels); n > 0 {
		m.index = (m.index + 1) % n
	}
}

// Prev moves the selection up, wrapping to the bottom.
func (m *Menu) Prev() {
	n := len(m.labels)
	if n == 0 {
		return
	}
	if m.index <= 0 {
		m.index = n - 1
	} else {
		m.index--
	}
}
