package evaluator

import (
	"sort"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/object"
)

// specialForm receives its operands unevaluated.
type specialForm func(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error)

var specialForms map[*object.Symbol]specialForm

var (
	symRest  = object.Intern("&rest")
	symQuote = object.Intern("quote")
)

func init() {
	forms := map[string]specialForm{
		"quote":   evalQuote,
		"if":      evalIf,
		"let":     evalLet,
		"let*":    evalLet,
		"setq":    evalSetq,
		"def":     evalDef,
		"fn":      evalFn,
		"lambda":  evalFn,
		"defn":    evalDefn,
		"defun":   evalDefn,
		"doseq":   evalDoseq,
		"dotimes": evalDotimes,
		"while":   evalWhile,
		"return":  evalReturn,
		"load":    evalLoad,
		"progn":   evalProgn,
		"do":      evalProgn,
		"cond":    evalCond,
		"when":    evalWhen,
		"unless":  evalUnless,
		"and":     evalAnd,
		"or":      evalOr,
		"bound?":  evalBoundP,
	}
	specialForms = make(map[*object.Symbol]specialForm, len(forms))
	for name, f := range forms {
		specialForms[object.Intern(name)] = f
	}
}

// IsSpecialForm reports whether name is handled by the evaluator itself.
func IsSpecialForm(name string) bool {
	_, ok := specialForms[object.Intern(name)]
	return ok
}

// SpecialForms returns the names of every special form, sorted.
func SpecialForms() []string {
	names := make([]string, 0, len(specialForms))
	for sym := range specialForms {
		names = append(names, sym.Name)
	}
	sort.Strings(names)
	return names
}

func malformed(name, detail string) error {
	return serrors.New("ARITY-0003", map[string]any{"Name": name, "Detail": detail})
}

func evalQuote(_ *Evaluator, args []object.Object, _ *Environment) (object.Object, error) {
	if len(args) != 1 {
		return nil, serrors.New("ARITY-0001", map[string]any{"Name": "quote", "Expected": 1, "Got": len(args)})
	}
	return args[0], nil
}

func evalIf(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, malformed("if", "expected (if test then [else])")
	}
	cond, err := ev.Eval(args[0], env)
	if err != nil || isReturn(cond) {
		return cond, err
	}
	if object.IsTruthy(cond) {
		return ev.Eval(args[1], env)
	}
	if len(args) == 3 {
		return ev.Eval(args[2], env)
	}
	return object.NIL, nil
}

// evalLet accepts bindings as a list of (name value) pairs, bare names
// bound to nil, or a flat vector [name value ...]. Each binding sees the
// ones before it.
func evalLet(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) < 1 {
		return nil, malformed("let", "missing binding list")
	}
	pairs, err := letPairs(args[0])
	if err != nil {
		return nil, err
	}

	frame := NewEnclosedEnvironment(env)
	for _, p := range pairs {
		v, err := ev.Eval(p.value, frame)
		if err != nil || isReturn(v) {
			return v, err
		}
		frame.Set(p.name, v)
	}
	return ev.evalBody(args[1:], frame)
}

type binding struct {
	name  *object.Symbol
	value object.Object
}

func letPairs(spec object.Object) ([]binding, error) {
	switch s := spec.(type) {
	case *object.Nil:
		return nil, nil
	case *object.Vector:
		if len(s.Elements)%2 != 0 {
			return nil, malformed("let", "binding vector needs name/value pairs")
		}
		var out []binding
		for i := 0; i < len(s.Elements); i += 2 {
			sym, ok := s.Elements[i].(*object.Symbol)
			if !ok {
				return nil, malformed("let", "binding name must be a symbol, got "+s.Elements[i].Inspect())
			}
			out = append(out, binding{sym, s.Elements[i+1]})
		}
		return out, nil
	case *object.List:
		var out []binding
		for _, b := range s.Elements {
			switch bv := b.(type) {
			case *object.Symbol:
				out = append(out, binding{bv, object.NIL})
			case *object.List:
				sym, ok := bv.Elements[0].(*object.Symbol)
				if !ok || len(bv.Elements) > 2 {
					return nil, malformed("let", "expected (name value), got "+bv.Inspect())
				}
				var val object.Object = object.NIL
				if len(bv.Elements) == 2 {
					val = bv.Elements[1]
				}
				out = append(out, binding{sym, val})
			default:
				return nil, malformed("let", "expected (name value), got "+b.Inspect())
			}
		}
		return out, nil
	}
	return nil, malformed("let", "binding list must be a list or vector")
}

// evalSetq assigns one or more name/value pairs and returns the last value.
func evalSetq(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, malformed("setq", "expected (setq name value ...)")
	}
	var result object.Object = object.NIL
	for i := 0; i < len(args); i += 2 {
		sym, ok := args[i].(*object.Symbol)
		if !ok {
			return nil, serrors.New("TYPE-0001", map[string]any{
				"Function": "setq", "Expected": "a symbol", "Got": object.TypeName(args[i]),
			})
		}
		v, err := ev.Eval(args[i+1], env)
		if err != nil || isReturn(v) {
			return v, err
		}
		result = env.Update(sym, v)
	}
	return result, nil
}

func evalDef(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) != 2 {
		return nil, malformed("def", "expected (def name value)")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return nil, serrors.New("TYPE-0001", map[string]any{
			"Function": "def", "Expected": "a symbol", "Got": object.TypeName(args[0]),
		})
	}
	v, err := ev.Eval(args[1], env)
	if err != nil || isReturn(v) {
		return v, err
	}
	env.Set(sym, v)
	return sym, nil
}

func evalFn(_ *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) < 1 {
		return nil, malformed("fn", "missing parameter list")
	}
	return makeClosure("fn", "", args[0], args[1:], env)
}

func evalDefn(_ *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) < 2 {
		return nil, malformed("defn", "expected (defn name [params] body...)")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return nil, serrors.New("TYPE-0001", map[string]any{
			"Function": "defn", "Expected": "a symbol", "Got": object.TypeName(args[0]),
		})
	}
	c, err := makeClosure("defn", sym.Name, args[1], args[2:], env)
	if err != nil {
		return nil, err
	}
	env.Set(sym, c)
	return sym, nil
}

func makeClosure(form, name string, params object.Object, body []object.Object, env *Environment) (*Closure, error) {
	elems, ok := object.Elements(params)
	if !ok {
		return nil, malformed(form, "parameter list must be a list or vector")
	}
	c := &Closure{Name: name, Body: body, Env: env}
	for i := 0; i < len(elems); i++ {
		sym, ok := elems[i].(*object.Symbol)
		if !ok {
			return nil, serrors.New("TYPE-0003", map[string]any{"Function": form, "Got": elems[i].Inspect()})
		}
		if sym == symRest {
			if i != len(elems)-2 {
				return nil, malformed(form, "&rest must be followed by exactly one name")
			}
			rest, ok := elems[i+1].(*object.Symbol)
			if !ok {
				return nil, serrors.New("TYPE-0003", map[string]any{"Function": form, "Got": elems[i+1].Inspect()})
			}
			c.Rest = rest
			break
		}
		c.Params = append(c.Params, sym)
	}
	return c, nil
}

// evalDoseq binds the loop variable in a fresh frame for every element.
func evalDoseq(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) < 1 {
		return nil, malformed("doseq", "expected (doseq (var seq) body...)")
	}
	spec, ok := object.Elements(args[0])
	if !ok || len(spec) != 2 {
		return nil, malformed("doseq", "expected (var seq)")
	}
	sym, ok := spec[0].(*object.Symbol)
	if !ok {
		return nil, malformed("doseq", "loop variable must be a symbol")
	}

	seqVal, err := ev.Eval(spec[1], env)
	if err != nil || isReturn(seqVal) {
		return seqVal, err
	}
	items, err := iterable("doseq", seqVal)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if err := ev.checkContext(); err != nil {
			return nil, err
		}
		frame := NewEnclosedEnvironment(env)
		frame.Set(sym, item)
		v, err := ev.evalBody(args[1:], frame)
		if err != nil || isReturn(v) {
			return v, err
		}
	}
	return object.NIL, nil
}

func evalDotimes(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) < 1 {
		return nil, malformed("dotimes", "expected (dotimes (var n) body...)")
	}
	spec, ok := object.Elements(args[0])
	if !ok || len(spec) != 2 {
		return nil, malformed("dotimes", "expected (var n)")
	}
	sym, ok := spec[0].(*object.Symbol)
	if !ok {
		return nil, malformed("dotimes", "loop variable must be a symbol")
	}
	nVal, err := ev.Eval(spec[1], env)
	if err != nil || isReturn(nVal) {
		return nVal, err
	}
	n, ok := nVal.(*object.Integer)
	if !ok {
		return nil, typeError("dotimes", "an integer", nVal)
	}

	for i := int64(0); i < n.Value; i++ {
		if err := ev.checkContext(); err != nil {
			return nil, err
		}
		frame := NewEnclosedEnvironment(env)
		frame.Set(sym, object.NewInteger(i))
		v, err := ev.evalBody(args[1:], frame)
		if err != nil || isReturn(v) {
			return v, err
		}
	}
	return object.NIL, nil
}

func evalWhile(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) < 1 {
		return nil, malformed("while", "missing test")
	}
	for {
		if err := ev.checkContext(); err != nil {
			return nil, err
		}
		cond, err := ev.Eval(args[0], env)
		if err != nil || isReturn(cond) {
			return cond, err
		}
		if !object.IsTruthy(cond) {
			return object.NIL, nil
		}
		v, err := ev.evalBody(args[1:], env)
		if err != nil || isReturn(v) {
			return v, err
		}
	}
}

func evalReturn(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) > 1 {
		return nil, malformed("return", "expected (return [value])")
	}
	if len(args) == 0 {
		return &ReturnValue{Value: object.NIL}, nil
	}
	v, err := ev.Eval(args[0], env)
	if err != nil || isReturn(v) {
		return v, err
	}
	return &ReturnValue{Value: v}, nil
}

func evalLoad(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) != 1 {
		return nil, serrors.New("ARITY-0001", map[string]any{"Name": "load", "Expected": 1, "Got": len(args)})
	}
	target, err := ev.Eval(args[0], env)
	if err != nil || isReturn(target) {
		return target, err
	}
	loader := ev.Loader
	if loader == nil {
		loader = &Loader{}
	}
	if err := loader.Load(ev, target, env); err != nil {
		return nil, err
	}
	return object.TRUE, nil
}

func evalProgn(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	return ev.evalBody(args, env)
}

// evalCond picks the first clause whose test is truthy. A clause with no
// body yields the test value.
func evalCond(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	for _, clause := range args {
		c, ok := clause.(*object.List)
		if !ok {
			return nil, malformed("cond", "each clause must be (test body...)")
		}
		test, err := ev.Eval(c.Elements[0], env)
		if err != nil || isReturn(test) {
			return test, err
		}
		if !object.IsTruthy(test) {
			continue
		}
		if len(c.Elements) == 1 {
			return test, nil
		}
		return ev.evalBody(c.Elements[1:], env)
	}
	return object.NIL, nil
}

func evalWhen(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	return evalConditional(ev, "when", true, args, env)
}

func evalUnless(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	return evalConditional(ev, "unless", false, args, env)
}

func evalConditional(ev *Evaluator, name string, want bool, args []object.Object, env *Environment) (object.Object, error) {
	if len(args) < 1 {
		return nil, malformed(name, "missing test")
	}
	test, err := ev.Eval(args[0], env)
	if err != nil || isReturn(test) {
		return test, err
	}
	if object.IsTruthy(test) != want {
		return object.NIL, nil
	}
	return ev.evalBody(args[1:], env)
}

// evalAnd returns nil at the first falsy operand, otherwise the last value.
func evalAnd(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	var result object.Object = object.TRUE
	for _, a := range args {
		v, err := ev.Eval(a, env)
		if err != nil || isReturn(v) {
			return v, err
		}
		if !object.IsTruthy(v) {
			return object.NIL, nil
		}
		result = v
	}
	return result, nil
}

// evalOr returns the first truthy operand, or nil.
func evalOr(ev *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	for _, a := range args {
		v, err := ev.Eval(a, env)
		if err != nil || isReturn(v) {
			return v, err
		}
		if object.IsTruthy(v) {
			return v, nil
		}
	}
	return object.NIL, nil
}

// evalBoundP checks its operands without evaluating them, so an unbound
// name is never an error. Quoted names are accepted too.
func evalBoundP(_ *Evaluator, args []object.Object, env *Environment) (object.Object, error) {
	for _, a := range args {
		if l, ok := a.(*object.List); ok && len(l.Elements) == 2 && l.Elements[0] == symQuote {
			a = l.Elements[1]
		}
		sym, ok := a.(*object.Symbol)
		if !ok {
			return nil, serrors.New("TYPE-0001", map[string]any{
				"Function": "bound?", "Expected": "symbols", "Got": object.TypeName(a),
			})
		}
		if !env.IsBound(sym) {
			return object.NIL, nil
		}
	}
	return object.TRUE, nil
}
