package calculator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// KeyMap translates physical key codes (DOM KeyboardEvent.code names such as
// "ArrowLeft" or "Digit5") to the calculator's getKey numbers.
type KeyMap map[string]int

var defaultKeys = KeyMap{
	"ArrowLeft":  24,
	"ArrowUp":    25,
	"ArrowRight": 26,
	"ArrowDown":  34,
	"Enter":      105,
	"Digit0":     102,
	"Digit1":     92,
	"Digit2":     93,
	"Digit3":     94,
	"Digit4":     82,
	"Digit5":     83,
	"Digit6":     84,
	"Digit7":     72,
	"Digit8":     73,
	"Digit9":     74,
}

// DefaultKeyMap returns a fresh copy of the built-in key map, including the
// numeric keypad aliases of the digit and Enter keys.
func DefaultKeyMap() KeyMap {
	km := make(KeyMap, 2*len(defaultKeys))
	for code, n := range defaultKeys {
		km[code] = n
		if digit, ok := strings.CutPrefix(code, "Digit"); ok {
			km["Numpad"+digit] = n
		}
	}
	km["NumpadEnter"] = defaultKeys["Enter"]
	return km
}

// Code returns the getKey number for a key code.
func (km KeyMap) Code(code string) (int, bool) {
	n, ok := km[code]
	return n, ok
}

type keyMapFile struct {
	Keys map[string]int `toml:"keys"`
}

// ParseKeyMap reads a TOML document with a [keys] table and layers it over
// the defaults. A value of 0 removes a mapping.
func ParseKeyMap(data []byte) (KeyMap, error) {
	km := DefaultKeyMap()
	if len(data) == 0 {
		return km, nil
	}

	var payload keyMapFile
	if err := toml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse key map: %w", err)
	}
	for code, n := range payload.Keys {
		switch {
		case strings.TrimSpace(code) == "":
			return nil, errors.New("key map: empty key code")
		case n < 0:
			return nil, fmt.Errorf("key map: %s has negative key number %d", code, n)
		case n == 0:
			delete(km, code)
		default:
			km[code] = n
		}
	}
	return km, nil
}

// LoadKeyMap reads a key map file. An empty path or a missing file yields
// the defaults.
func LoadKeyMap(path string) (KeyMap, error) {
	if path == "" {
		return DefaultKeyMap(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultKeyMap(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key map %s: %w", path, err)
	}
	return ParseKeyMap(data)
}
