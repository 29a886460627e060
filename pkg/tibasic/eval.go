package tibasic

import (
	"math"

	"github.com/antibyte/retrocalc/pkg/logger"
)

// getKeyName is the read-once key register.
const getKeyName = "getKey"

func (in *Interpreter) eval(x Expr) Value {
	switch x := x.(type) {
	case *NumberLit:
		return Number(x.Value)
	case *StringLit:
		return String(x.Value)
	case *Ident:
		return in.lookup(x.Name)
	case *BinaryExpr:
		return in.evalBinary(x)
	case *CallExpr:
		return in.evalCall(x)
	}
	return Null()
}

func (in *Interpreter) lookup(name string) Value {
	if name == getKeyName {
		key := in.lastKey
		in.lastKey = 0
		return Number(float64(key))
	}
	v, ok := in.vars[name]
	if !ok {
		// first use of a variable binds it to zero
		v = Number(0)
		in.vars[name] = v
	}
	return v
}

func (in *Interpreter) evalBinary(x *BinaryExpr) Value {
	if x.Op == OpAssign {
		v := in.eval(x.Left)
		in.vars[x.Right.(*Ident).Name] = v
		return v
	}

	l := in.eval(x.Left)
	r := in.eval(x.Right)
	switch x.Op {
	case OpAdd:
		return Number(l.Num() + r.Num())
	case OpSub:
		return Number(l.Num() - r.Num())
	case OpMul:
		return Number(l.Num() * r.Num())
	case OpDiv:
		return Number(l.Num() / r.Num())
	case OpMod:
		return Number(math.Mod(l.Num(), r.Num()))
	case OpAnd:
		return Bool(l.Truthy() && r.Truthy())
	case OpOr:
		return Bool(l.Truthy() || r.Truthy())
	case OpEq:
		return Bool(l.Equal(r))
	case OpNe:
		return Bool(!l.Equal(r))
	case OpGt:
		return Bool(l.Num() > r.Num())
	case OpLt:
		return Bool(l.Num() < r.Num())
	case OpGe:
		return Bool(l.Num() >= r.Num())
	case OpLe:
		return Bool(l.Num() <= r.Num())
	}
	return Null()
}

func (in *Interpreter) evalCall(x *CallExpr) Value {
	target := in.eval(x.Target)
	args := make([]Value, len(x.Args))
	for i, a := range x.Args {
		args[i] = in.eval(a)
	}
	fn := target.Builtin()
	if target.Kind() != KindFunc || fn == nil {
		logger.Debug(logger.AreaInterpreter, "[%s] line %d: call of non-function %s value", in.sessionID, x.Line(), target.Kind())
		return Null()
	}
	return fn.Fn(args)
}
