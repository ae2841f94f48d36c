package evaluator

import (
	"math"
	"strings"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/object"
)

var mathBuiltins = map[string]BuiltinFunction{
	"+": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		return foldNumbers("+", args, object.NewInteger(0), addNumbers)
	},
	"*": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		return foldNumbers("*", args, object.NewInteger(1), mulNumbers)
	},
	"-": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if len(args) == 0 {
			return nil, serrors.New("ARITY-0002", map[string]any{"Name": "-", "Expected": 1, "Got": 0})
		}
		if len(args) == 1 {
			return subNumbers("-", object.NewInteger(0), args[0])
		}
		return foldNumbers("-", args[1:], args[0], subNumbers)
	},
	"/": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if len(args) == 0 {
			return nil, serrors.New("ARITY-0002", map[string]any{"Name": "/", "Expected": 1, "Got": 0})
		}
		if len(args) == 1 {
			return divNumbers("/", object.NewInteger(1), args[0])
		}
		return foldNumbers("/", args[1:], args[0], divNumbers)
	},
	"mod": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("mod", args, 2); err != nil {
			return nil, err
		}
		return modNumbers(args[0], args[1])
	},
	"min": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		return pickNumber("min", args, func(a, b float64) bool { return a < b })
	},
	"max": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		return pickNumber("max", args, func(a, b float64) bool { return a > b })
	},
	"abs": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("abs", args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case *object.Integer:
			if v.Value < 0 {
				return object.NewInteger(-v.Value), nil
			}
			return v, nil
		case *object.Float:
			return object.NewFloat(math.Abs(v.Value)), nil
		}
		return nil, typeError("abs", "a number", args[0])
	},
	"floor":   roundingBuiltin("floor", math.Floor),
	"ceiling": roundingBuiltin("ceiling", math.Ceil),
	"round":   roundingBuiltin("round", math.Round),
	"sqrt": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("sqrt", args, 1); err != nil {
			return nil, err
		}
		f, ok := object.ToFloat(args[0])
		if !ok {
			return nil, typeError("sqrt", "a number", args[0])
		}
		return object.NewFloat(math.Sqrt(f)), nil
	},

	"=":  builtinEqual,
	"==": builtinEqual,
	"/=": builtinNotEqual,
	"!=": builtinNotEqual,
	"<":  comparisonBuiltin("<", func(c int) bool { return c < 0 }),
	">":  comparisonBuiltin(">", func(c int) bool { return c > 0 }),
	"<=": comparisonBuiltin("<=", func(c int) bool { return c <= 0 }),
	">=": comparisonBuiltin(">=", func(c int) bool { return c >= 0 }),
}

func foldNumbers(name string, args []object.Object, acc object.Object,
	op func(string, object.Object, object.Object) (object.Object, error)) (object.Object, error) {
	if !object.IsNumber(acc) {
		return nil, typeError(name, "numbers", acc)
	}
	for _, a := range args {
		var err error
		acc, err = op(name, acc, a)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// numericPair classifies two operands: both integers, or at least one
// float.
func numericPair(name string, a, b object.Object) (ai, bi int64, af, bf float64, isInt bool, err error) {
	x, xok := a.(*object.Integer)
	y, yok := b.(*object.Integer)
	if xok && yok {
		return x.Value, y.Value, 0, 0, true, nil
	}
	var ok bool
	if af, ok = object.ToFloat(a); !ok {
		return 0, 0, 0, 0, false, typeError(name, "numbers", a)
	}
	if bf, ok = object.ToFloat(b); !ok {
		return 0, 0, 0, 0, false, typeError(name, "numbers", b)
	}
	return 0, 0, af, bf, false, nil
}

func addNumbers(name string, a, b object.Object) (object.Object, error) {
	ai, bi, af, bf, isInt, err := numericPair(name, a, b)
	if err != nil {
		return nil, err
	}
	if isInt {
		return object.NewInteger(ai + bi), nil
	}
	return object.NewFloat(af + bf), nil
}

func subNumbers(name string, a, b object.Object) (object.Object, error) {
	ai, bi, af, bf, isInt, err := numericPair(name, a, b)
	if err != nil {
		return nil, err
	}
	if isInt {
		return object.NewInteger(ai - bi), nil
	}
	return object.NewFloat(af - bf), nil
}

func mulNumbers(name string, a, b object.Object) (object.Object, error) {
	ai, bi, af, bf, isInt, err := numericPair(name, a, b)
	if err != nil {
		return nil, err
	}
	if isInt {
		return object.NewInteger(ai * bi), nil
	}
	return object.NewFloat(af * bf), nil
}

// divNumbers keeps integer results when the division is exact.
func divNumbers(name string, a, b object.Object) (object.Object, error) {
	ai, bi, af, bf, isInt, err := numericPair(name, a, b)
	if err != nil {
		return nil, err
	}
	if isInt {
		if bi == 0 {
			return nil, serrors.New("OP-0001", nil)
		}
		if ai%bi == 0 {
			return object.NewInteger(ai / bi), nil
		}
		return object.NewFloat(float64(ai) / float64(bi)), nil
	}
	if bf == 0 {
		return nil, serrors.New("OP-0001", nil)
	}
	return object.NewFloat(af / bf), nil
}

// modNumbers takes the sign of the divisor.
func modNumbers(a, b object.Object) (object.Object, error) {
	ai, bi, af, bf, isInt, err := numericPair("mod", a, b)
	if err != nil {
		return nil, err
	}
	if isInt {
		if bi == 0 {
			return nil, serrors.New("OP-0001", nil)
		}
		m := ai % bi
		if m != 0 && (m < 0) != (bi < 0) {
			m += bi
		}
		return object.NewInteger(m), nil
	}
	if bf == 0 {
		return nil, serrors.New("OP-0001", nil)
	}
	m := math.Mod(af, bf)
	if m != 0 && (m < 0) != (bf < 0) {
		m += bf
	}
	return object.NewFloat(m), nil
}

func pickNumber(name string, args []object.Object, better func(a, b float64) bool) (object.Object, error) {
	if len(args) == 0 {
		return nil, serrors.New("ARITY-0002", map[string]any{"Name": name, "Expected": 1, "Got": 0})
	}
	best := args[0]
	bestF, ok := object.ToFloat(best)
	if !ok {
		return nil, typeError(name, "numbers", best)
	}
	for _, a := range args[1:] {
		f, ok := object.ToFloat(a)
		if !ok {
			return nil, typeError(name, "numbers", a)
		}
		if better(f, bestF) {
			best, bestF = a, f
		}
	}
	return best, nil
}

func roundingBuiltin(name string, fn func(float64) float64) BuiltinFunction {
	return func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case *object.Integer:
			return v, nil
		case *object.Float:
			return object.NewInteger(int64(fn(v.Value))), nil
		}
		return nil, typeError(name, "a number", args[0])
	}
}

func builtinEqual(_ *Evaluator, args []object.Object) (object.Object, error) {
	for i := 1; i < len(args); i++ {
		if !object.Equal(args[i-1], args[i]) {
			return object.NIL, nil
		}
	}
	return object.TRUE, nil
}

func builtinNotEqual(_ *Evaluator, args []object.Object) (object.Object, error) {
	if err := checkArgs("/=", args, 2); err != nil {
		return nil, err
	}
	return object.Bool(!object.Equal(args[0], args[1])), nil
}

// compare orders two numbers or two strings.
func compare(name string, a, b object.Object) (int, error) {
	if af, ok := object.ToFloat(a); ok {
		bf, ok := object.ToFloat(b)
		if !ok {
			return 0, typeError(name, "a number", b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		}
		return 0, nil
	}
	as, ok := a.(*object.String)
	if !ok {
		return 0, typeError(name, "numbers or strings", a)
	}
	bs, ok := b.(*object.String)
	if !ok {
		return 0, typeError(name, "a string", b)
	}
	return strings.Compare(as.Value, bs.Value), nil
}

func compareLess(name string, a, b object.Object) (bool, error) {
	c, err := compare(name, a, b)
	return c < 0, err
}

func comparisonBuiltin(name string, test func(int) bool) BuiltinFunction {
	return func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if len(args) < 1 {
			return nil, serrors.New("ARITY-0002", map[string]any{"Name": name, "Expected": 1, "Got": 0})
		}
		for i := 1; i < len(args); i++ {
			c, err := compare(name, args[i-1], args[i])
			if err != nil {
				return nil, err
			}
			if !test(c) {
				return object.NIL, nil
			}
		}
		return object.TRUE, nil
	}
}
