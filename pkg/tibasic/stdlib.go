package tibasic

import (
	"math"
	"math/rand"
)

// arg returns the numeric form of args[i], NaN when missing.
func arg(args []Value, i int) float64 {
	if i >= len(args) {
		return math.NaN()
	}
	return args[i].Num()
}

func unary(name string, fn func(float64) float64) *Builtin {
	return &Builtin{Name: name, Fn: func(args []Value) Value {
		return Number(fn(arg(args, 0)))
	}}
}

// StandardLibrary returns the builtin function table. random draws from rng.
func StandardLibrary(rng *rand.Rand) map[string]*Builtin {
	lib := map[string]*Builtin{
		"sin":    unary("sin", math.Sin),
		"cos":    unary("cos", math.Cos),
		"tan":    unary("tan", math.Tan),
		"arcsin": unary("arcsin", math.Asin),
		"arccos": unary("arccos", math.Acos),
		"arctan": unary("arctan", math.Atan),
		"log":    unary("log", math.Log10),
		"ln":     unary("ln", math.Log),
		"sqrt":   unary("sqrt", math.Sqrt),
	}
	lib["random"] = &Builtin{Name: "random", Fn: func(args []Value) Value {
		lo, hi := arg(args, 0), arg(args, 1)
		return Number(lo + rng.Float64()*(hi-lo))
	}}
	return lib
}

// initialBindings is the namespace every interpreter starts with.
func initialBindings(rng *rand.Rand) map[string]Value {
	vars := map[string]Value{
		"True":  Bool(true),
		"False": Bool(false),
		"Null":  Null(),
		"Pi":    Number(math.Pi),
		"e":     Number(math.E),
	}
	for name, fn := range StandardLibrary(rng) {
		vars[name] = Func(fn)
	}
	return vars
}
