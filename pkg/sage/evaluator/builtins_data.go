package evaluator

import (
	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/object"
)

// Predicates answer t or nil, never an explicit false.
var predicateBuiltins = map[string]BuiltinFunction{
	"not":      predicate("not", func(o object.Object) bool { return !object.IsTruthy(o) }),
	"null?":    predicate("null?", object.IsNil),
	"nil?":     predicate("nil?", object.IsNil),
	"empty?":   builtinEmptyP,
	"number?":  predicate("number?", object.IsNumber),
	"integer?": typePredicate("integer?", object.INTEGER_OBJ),
	"float?":   typePredicate("float?", object.FLOAT_OBJ),
	"string?":  typePredicate("string?", object.STRING_OBJ),
	"symbol?":  typePredicate("symbol?", object.SYMBOL_OBJ),
	"keyword?": typePredicate("keyword?", object.KEYWORD_OBJ),
	"vector?":  typePredicate("vector?", object.VECTOR_OBJ),
	"map?":     typePredicate("map?", object.MAPPING_OBJ),
	"list?": predicate("list?", func(o object.Object) bool {
		_, isList := o.(*object.List)
		return isList || object.IsNil(o)
	}),
	"fn?": predicate("fn?", func(o object.Object) bool {
		switch v := o.(type) {
		case *Closure, *Builtin:
			return true
		case *object.HostRef:
			_, ok := hostCallable(v.Value)
			return ok
		}
		return false
	}),
	"zero?": numberPredicate("zero?", func(f float64) bool { return f == 0 }),
	"pos?":  numberPredicate("pos?", func(f float64) bool { return f > 0 }),
	"neg?":  numberPredicate("neg?", func(f float64) bool { return f < 0 }),
	"even?": parityPredicate("even?", 0),
	"odd?":  parityPredicate("odd?", 1),
	"eq": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("eq", args, 2); err != nil {
			return nil, err
		}
		return object.Bool(identical(args[0], args[1])), nil
	},
	"equal": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("equal", args, 2); err != nil {
			return nil, err
		}
		return object.Bool(object.Equal(args[0], args[1])), nil
	},
}

func predicate(name string, test func(object.Object) bool) BuiltinFunction {
	return func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		return object.Bool(test(args[0])), nil
	}
}

func typePredicate(name string, t object.ObjectType) BuiltinFunction {
	return predicate(name, func(o object.Object) bool { return o.Type() == t })
}

func numberPredicate(name string, test func(float64) bool) BuiltinFunction {
	return func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		f, ok := object.ToFloat(args[0])
		if !ok {
			return nil, typeError(name, "a number", args[0])
		}
		return object.Bool(test(f)), nil
	}
}

func parityPredicate(name string, rem int64) BuiltinFunction {
	return func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		n, err := toInt(name, args[0])
		if err != nil {
			return nil, err
		}
		r := n % 2
		if r < 0 {
			r = -r
		}
		return object.Bool(r == rem), nil
	}
}

func builtinEmptyP(_ *Evaluator, args []object.Object) (object.Object, error) {
	if err := checkArgs("empty?", args, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case *object.String:
		return object.Bool(v.Value == ""), nil
	case *object.Mapping:
		return object.Bool(v.Len() == 0), nil
	}
	elems, ok := object.Elements(args[0])
	if !ok {
		return nil, typeError("empty?", "a sequence", args[0])
	}
	return object.Bool(len(elems) == 0), nil
}

// identical is object identity, except that numbers, strings and booleans
// of the same type compare by value.
func identical(a, b object.Object) bool {
	if a == b {
		return true
	}
	if object.IsNil(a) && object.IsNil(b) {
		return true
	}
	switch av := a.(type) {
	case *object.Integer:
		bv, ok := b.(*object.Integer)
		return ok && av.Value == bv.Value
	case *object.Float:
		bv, ok := b.(*object.Float)
		return ok && av.Value == bv.Value
	case *object.String:
		bv, ok := b.(*object.String)
		return ok && av.Value == bv.Value
	case *object.Boolean:
		bv, ok := b.(*object.Boolean)
		return ok && av.Value == bv.Value
	}
	return false
}

var mappingBuiltins = map[string]BuiltinFunction{
	"new-map": builtinNewMap,
	"get": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgRange("get", args, 2, 3); err != nil {
			return nil, err
		}
		var fallback object.Object = object.NIL
		if len(args) == 3 {
			fallback = args[2]
		}
		switch c := args[0].(type) {
		case *object.Mapping:
			if v, ok := c.Get(args[1]); ok {
				return v, nil
			}
			return fallback, nil
		case *object.Nil:
			return fallback, nil
		}
		elems, ok := object.Elements(args[0])
		if !ok {
			return nil, typeError("get", "a mapping or sequence", args[0])
		}
		i, err := toInt("get", args[1])
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= int64(len(elems)) {
			return fallback, nil
		}
		return elems[i], nil
	},
	"assoc": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if len(args) < 3 || len(args)%2 != 1 {
			return nil, malformed("assoc", "expected (assoc map key value ...)")
		}
		m, err := mappingArg("assoc", args[0])
		if err != nil {
			return nil, err
		}
		out := m.Copy()
		for i := 1; i < len(args); i += 2 {
			if !out.Set(args[i], args[i+1]) {
				return nil, typeError("assoc", "a keyword, string or number key", args[i])
			}
		}
		return out, nil
	},
	"dissoc": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if len(args) < 1 {
			return nil, serrors.New("ARITY-0002", map[string]any{"Name": "dissoc", "Expected": 1, "Got": 0})
		}
		m, err := mappingArg("dissoc", args[0])
		if err != nil {
			return nil, err
		}
		out := m.Copy()
		for _, k := range args[1:] {
			out.Delete(k)
		}
		return out, nil
	},
	"keys": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("keys", args, 1); err != nil {
			return nil, err
		}
		m, err := mappingArg("keys", args[0])
		if err != nil {
			return nil, err
		}
		return object.NewList(m.Keys()...), nil
	},
	"values": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("values", args, 1); err != nil {
			return nil, err
		}
		m, err := mappingArg("values", args[0])
		if err != nil {
			return nil, err
		}
		return object.NewList(m.Values()...), nil
	},
	"contains?": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("contains?", args, 2); err != nil {
			return nil, err
		}
		if m, ok := args[0].(*object.Mapping); ok {
			_, found := m.Get(args[1])
			return object.Bool(found), nil
		}
		elems, err := iterable("contains?", args[0])
		if err != nil {
			return nil, err
		}
		for _, e := range elems {
			if object.Equal(e, args[1]) {
				return object.TRUE, nil
			}
		}
		return object.NIL, nil
	},
}

func mappingArg(fn string, o object.Object) (*object.Mapping, error) {
	switch v := o.(type) {
	case *object.Mapping:
		return v, nil
	case *object.Nil:
		return object.NewMapping(), nil
	}
	return nil, typeError(fn, "a mapping", o)
}

// builtinNewMap builds a mapping from (key value) pairs. Later pairs
// replace earlier ones with the same key.
func builtinNewMap(_ *Evaluator, args []object.Object) (object.Object, error) {
	m := object.NewMapping()
	for _, a := range args {
		pair, ok := object.Elements(a)
		if !ok || len(pair) != 2 {
			return nil, typeError("new-map", "(key value) pairs", a)
		}
		if !m.Set(pair[0], pair[1]) {
			return nil, typeError("new-map", "a keyword, string or number key", pair[0])
		}
	}
	return m, nil
}
