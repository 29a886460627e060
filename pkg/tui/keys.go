package tui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	Quit key.Binding
	Help key.Binding
}

var defaultKeys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("f1", "toggle help"),
	),
}

// calculator keys, listed in the help view
var calcHelp = []key.Binding{
	key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "menu selection")),
	key.NewBinding(key.WithKeys("left", "right"), key.WithHelp("←/→", "getKey arrows")),
	key.NewBinding(key.WithKeys("0", "9"), key.WithHelp("0-9", "digits, menu choice")),
	key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit, resume")),
	key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "edit input")),
}

var punctuationCodes = map[rune]string{
	'.': "Period",
	',': "Comma",
	'-': "Minus",
	'=': "Equal",
	'/': "Slash",
	';': "Semicolon",
	'\'': "Quote",
	'[': "BracketLeft",
	']': "BracketRight",
}

// translateKey maps a terminal key to a browser style key code and the
// text it produces.
func translateKey(msg tea.KeyMsg) (code, text string, ok bool) {
	switch msg.Type {
	case tea.KeyUp:
		return "ArrowUp", "", true
	case tea.KeyDown:
		return "ArrowDown", "", true
	case tea.KeyLeft:
		return "ArrowLeft", "", true
	case tea.KeyRight:
		return "ArrowRight", "", true
	case tea.KeyEnter:
		return "Enter", "", true
	case tea.KeyBackspace:
		return "Backspace", "", true
	case tea.KeySpace:
		return "Space", " ", true
	case tea.KeyRunes:
		if len(msg.Runes) != 1 || msg.Alt {
			return "", "", false
		}
		r := msg.Runes[0]
		text = string(r)
		switch {
		case r >= '0' && r <= '9':
			return "Digit" + text, text, true
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			return "Key" + strings.ToUpper(text), text, true
		}
		if c, found := punctuationCodes[r]; found {
			return c, text, true
		}
		return "Unidentified", text, true
	}
	return "", "", false
}
