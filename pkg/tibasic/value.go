package tibasic

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindFunc:
		return "function"
	default:
		return "null"
	}
}

// Builtin is a library function bound into the variable namespace.
type Builtin struct {
	Name string
	Fn   func(args []Value) Value
}

// Value is a dynamically typed BASIC value. The zero Value is Null.
type Value struct {
	kind Kind
	num  float64
	str  string
	fn   *Builtin
}

func Null() Value { return Value{} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Func(b *Builtin) Value { return Value{kind: KindFunc, fn: b} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) Builtin() *Builtin { return v.fn }

func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool}
}

// Num converts v to a number the way the dialect's arithmetic does.
func (v Value) Num() float64 {
	switch v.kind {
	case KindNumber, KindBool:
		return v.num
	case KindString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return n
	case KindFunc:
		return math.NaN()
	default:
		return 0
	}
}

// Truthy reports the boolean interpretation of v.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindBool:
		return v.num != 0
	case KindString:
		return v.str != ""
	case KindFunc:
		return true
	default:
		return false
	}
}

// Equal compares raw values without coercion.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber, KindBool:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindFunc:
		return v.fn == o.fn
	default:
		return true
	}
}

// String renders v for display.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindFunc:
		return v.fn.Name
	default:
		return FormatNumber(v.Num())
	}
}

// FormatNumber prints integers without a fraction and everything else in
// the shortest form that round-trips.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e21 || abs < 1e-6 {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// ParseInput converts raw user input into a value: "..." becomes a string,
// anything else is read as a number.
func ParseInput(raw string) Value {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return String(s[1 : len(s)-1])
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number(math.NaN())
	}
	return Number(n)
}
