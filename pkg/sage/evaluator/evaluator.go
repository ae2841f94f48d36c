// Package evaluator implements the tree-walking interpreter: environments,
// special forms, builtin functions, the host bridge and the module loader.
package evaluator

import (
	"context"
	stderrors "errors"
	"strings"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/object"
)

// DefaultMaxDepth bounds nested function application.
const DefaultMaxDepth = 10000

// Closure is a user-defined function.
type Closure struct {
	Name   string // empty for anonymous functions
	Params []*object.Symbol
	Rest   *object.Symbol // bound to the remaining arguments, or nil
	Body   []object.Object
	Env    *Environment
}

func (c *Closure) Type() object.ObjectType { return object.CLOSURE_OBJ }
func (c *Closure) Inspect() string {
	name := c.Name
	if name == "" {
		name = "lambda"
	}
	params := make([]string, 0, len(c.Params)+2)
	for _, p := range c.Params {
		params = append(params, p.Name)
	}
	if c.Rest != nil {
		params = append(params, "&rest", c.Rest.Name)
	}
	return "#<fn " + name + " [" + strings.Join(params, " ") + "]>"
}

func (c *Closure) displayName() string {
	if c.Name == "" {
		return "lambda"
	}
	return c.Name
}

// BuiltinFunction implements a builtin. Arguments are already evaluated.
type BuiltinFunction func(ev *Evaluator, args []object.Object) (object.Object, error)

// Builtin is a function implemented in Go.
type Builtin struct {
	Name string
	Fn   BuiltinFunction
}

func (b *Builtin) Type() object.ObjectType { return object.BUILTIN_OBJ }
func (b *Builtin) Inspect() string          { return "#<builtin " + b.Name + ">" }

// ReturnValue carries the value of a `return` form out through every
// enclosing form up to the top-level sequence.
type ReturnValue struct {
	Value object.Object
}

func (rv *ReturnValue) Type() object.ObjectType { return object.RETURN_OBJ }
func (rv *ReturnValue) Inspect() string          { return rv.Value.Inspect() }

func isReturn(o object.Object) bool {
	_, ok := o.(*ReturnValue)
	return ok
}

// Evaluator holds the state of one evaluation. It is not safe for
// concurrent use; independent evaluations each need their own Evaluator.
type Evaluator struct {
	ctx      context.Context
	Out      Logger
	Host     HostRegistry
	Loader   *Loader
	MaxDepth int

	depth int
	loads []string
}

// New creates an evaluator bound to ctx. Cancelling ctx aborts evaluation
// at the next function application or loop iteration.
func New(ctx context.Context) *Evaluator {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Evaluator{
		ctx:      ctx,
		Out:      DefaultLogger,
		MaxDepth: DefaultMaxDepth,
	}
}

// Context returns the context the evaluator was created with.
func (ev *Evaluator) Context() context.Context { return ev.ctx }

// Run evaluates top-level forms in order. A `return` stops the sequence
// and yields its value; otherwise the value of the last form is returned,
// or nil when there are no forms.
func (ev *Evaluator) Run(forms []object.Object, env *Environment) (object.Object, error) {
	result, err := ev.evalBody(forms, env)
	if err != nil {
		return nil, err
	}
	if rv, ok := result.(*ReturnValue); ok {
		return rv.Value, nil
	}
	return result, nil
}

// Eval evaluates a single form. The result may be a *ReturnValue, which
// callers must pass on unchanged.
func (ev *Evaluator) Eval(node object.Object, env *Environment) (object.Object, error) {
	switch n := node.(type) {
	case *object.Symbol:
		return ev.evalSymbol(n, env)
	case *object.List:
		return ev.evalList(n, env)
	case *object.Vector:
		elems, err := ev.evalArgs(n.Elements, env)
		if err != nil {
			return returnOrErr(err)
		}
		return &object.Vector{Elements: elems}, nil
	case nil:
		return object.NIL, nil
	}
	return node, nil
}

func (ev *Evaluator) evalSymbol(sym *object.Symbol, env *Environment) (object.Object, error) {
	if v, ok := env.Get(sym); ok {
		return v, nil
	}
	if name, ok := hostName(sym.Name); ok {
		op, err := ev.resolveHost(name)
		if err != nil {
			return nil, err
		}
		return &object.HostRef{Value: op}, nil
	}
	return nil, serrors.NewUnboundSymbol(sym.Name, env.AllSymbols())
}

func (ev *Evaluator) evalList(list *object.List, env *Environment) (object.Object, error) {
	result, err := ev.evalCall(list, env)
	if err != nil {
		return nil, withPosition(err, list)
	}
	return result, nil
}

func (ev *Evaluator) evalCall(list *object.List, env *Environment) (object.Object, error) {
	head := list.Elements[0]
	operands := list.Elements[1:]

	if sym, ok := head.(*object.Symbol); ok {
		if sf, ok := specialForms[sym]; ok {
			return sf(ev, operands, env)
		}
		if name, ok := hostName(sym.Name); ok && !isBuiltinName(sym.Name) {
			op, err := ev.resolveHost(name)
			if err != nil {
				return nil, err
			}
			args, err := ev.evalArgs(operands, env)
			if err != nil {
				return returnOrErr(err)
			}
			return ev.invokeHost(op, args, env)
		}
	}

	fn, err := ev.Eval(head, env)
	if err != nil || isReturn(fn) {
		return fn, err
	}
	args, err := ev.evalArgs(operands, env)
	if err != nil {
		return returnOrErr(err)
	}
	return ev.apply(fn, args, env)
}

// evalArgs evaluates forms left to right. A `return` met on the way is
// reported as a *pendingReturn error; returnOrErr turns it back into the
// *ReturnValue result.
func (ev *Evaluator) evalArgs(forms []object.Object, env *Environment) ([]object.Object, error) {
	out := make([]object.Object, 0, len(forms))
	for _, f := range forms {
		v, err := ev.Eval(f, env)
		if err != nil {
			return nil, err
		}
		if isReturn(v) {
			return nil, &pendingReturn{v.(*ReturnValue)}
		}
		out = append(out, v)
	}
	return out, nil
}

// pendingReturn lets evalArgs report a `return` without widening its
// signature. It never escapes the package.
type pendingReturn struct {
	rv *ReturnValue
}

func (p *pendingReturn) Error() string { return "return outside of evaluation" }

func returnOrErr(err error) (object.Object, error) {
	var pr *pendingReturn
	if stderrors.As(err, &pr) {
		return pr.rv, nil
	}
	return nil, err
}

// evalBody evaluates forms in sequence and returns the last value, or the
// first *ReturnValue produced.
func (ev *Evaluator) evalBody(forms []object.Object, env *Environment) (object.Object, error) {
	var result object.Object = object.NIL
	for _, f := range forms {
		v, err := ev.Eval(f, env)
		if err != nil {
			return nil, err
		}
		if isReturn(v) {
			return v, nil
		}
		result = v
	}
	return result, nil
}

// Apply calls fn with already evaluated arguments. Builtins that take
// functions use it to call back into the language.
func (ev *Evaluator) Apply(fn object.Object, args []object.Object) (object.Object, error) {
	return ev.apply(fn, args, nil)
}

func (ev *Evaluator) apply(fn object.Object, args []object.Object, env *Environment) (object.Object, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, serrors.Wrap("STATE-0001", err, nil)
	}
	ev.depth++
	defer func() { ev.depth-- }()
	if ev.MaxDepth > 0 && ev.depth > ev.MaxDepth {
		return nil, serrors.New("STATE-0002", map[string]any{"Limit": ev.MaxDepth})
	}

	switch f := fn.(type) {
	case *Closure:
		frame, err := bindParams(f, args)
		if err != nil {
			return nil, err
		}
		return ev.evalBody(f.Body, frame)
	case *Builtin:
		return f.Fn(ev, args)
	case *object.HostRef:
		if op, ok := hostCallable(f.Value); ok {
			if env == nil {
				env = NewEnvironment()
			}
			return ev.invokeHost(op, args, env)
		}
	}
	return nil, serrors.New("TYPE-0002", map[string]any{"Type": object.TypeName(fn)})
}

func bindParams(c *Closure, args []object.Object) (*Environment, error) {
	n := len(c.Params)
	if c.Rest == nil && len(args) != n {
		return nil, serrors.New("ARITY-0001", map[string]any{
			"Name": c.displayName(), "Expected": n, "Got": len(args),
		})
	}
	if c.Rest != nil && len(args) < n {
		return nil, serrors.New("ARITY-0002", map[string]any{
			"Name": c.displayName(), "Expected": n, "Got": len(args),
		})
	}
	frame := NewEnclosedEnvironment(c.Env)
	for i, p := range c.Params {
		frame.Set(p, args[i])
	}
	if c.Rest != nil {
		frame.Set(c.Rest, object.NewList(append([]object.Object(nil), args[n:]...)...))
	}
	return frame, nil
}

// callFunction is Apply for builtins: a `return` inside fn stops the
// builtin and is handed back as its result.
func (ev *Evaluator) callFunction(fn object.Object, args ...object.Object) (object.Object, bool, error) {
	v, err := ev.apply(fn, args, nil)
	if err != nil {
		return nil, false, err
	}
	return v, isReturn(v), nil
}

// checkContext reports cancellation inside loops that do not apply
// functions.
func (ev *Evaluator) checkContext() error {
	if err := ev.ctx.Err(); err != nil {
		return serrors.Wrap("STATE-0001", err, nil)
	}
	return nil
}

// withPosition attaches the position of list to errors that have none.
func withPosition(err error, list *object.List) error {
	var se *serrors.SageError
	if !stderrors.As(err, &se) || se.HasPosition() || list.Line == 0 {
		return err
	}
	return se.WithPosition(list.Line, list.Column)
}
