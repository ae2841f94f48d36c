package evaluator

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/object"
)

// HostPrefix marks a symbol as the name of a host operation.
const HostPrefix = "/"

// ScriptMethod is an ordinary host callable. Arguments arrive as plain Go
// values (see ToGo).
type ScriptMethod func(ctx context.Context, args []any) (any, error)

// BlockFilter is a host callable that also sees the calling scope and can
// write to the evaluation output.
type BlockFilter func(ctx context.Context, bc *BlockContext, args []any) (any, error)

// HostOperation is one named entry of a host registry. Exactly one of
// Method and Block is set.
type HostOperation struct {
	Name   string
	Method ScriptMethod
	Block  BlockFilter
}

func (op *HostOperation) String() string { return "#<host " + HostPrefix + op.Name + ">" }

// HostRegistry resolves host operation names, without the prefix.
type HostRegistry interface {
	Resolve(name string) (*HostOperation, bool)
	Names() []string
}

// Future is a pending host result. The evaluator blocks on Await before
// continuing with the next form.
type Future interface {
	Await(ctx context.Context) (any, error)
}

// Callback is how a closure passed to the host is presented. It shares
// the evaluator's state, so it must be called synchronously from within
// the host call that received it, or from its Future's Await. Calls are
// serialized, and calls made after the host call returned fail with
// HOST-0003.
type Callback func(args ...any) (any, error)

// BlockContext gives block filters access to the calling scope.
type BlockContext struct {
	ev  *Evaluator
	env *Environment
}

// Lookup returns the value bound to name in the calling scope.
func (bc *BlockContext) Lookup(name string) (any, bool) {
	v, ok := bc.env.GetName(name)
	if !ok {
		return nil, false
	}
	return ToGo(v), true
}

// Bind sets name in the calling frame.
func (bc *BlockContext) Bind(name string, value any) {
	bc.env.SetName(name, FromGo(value))
}

// Write emits text to the evaluation output without a newline.
func (bc *BlockContext) Write(s string) {
	bc.ev.Out.Log(s)
}

// WriteLine emits text followed by a newline.
func (bc *BlockContext) WriteLine(s string) {
	bc.ev.Out.LogLine(s)
}

// Symbols lists the names visible from the calling scope.
func (bc *BlockContext) Symbols() []string {
	return bc.env.AllSymbols()
}

func hostName(name string) (string, bool) {
	if len(name) > len(HostPrefix) && strings.HasPrefix(name, HostPrefix) {
		return name[len(HostPrefix):], true
	}
	return "", false
}

// isBuiltinName reports whether name is a builtin that happens to carry
// the host prefix, such as "/=".
func isBuiltinName(name string) bool {
	_, ok := builtins[name]
	return ok
}

// hostCallable returns the operation a host reference can be called as.
// Besides registry entries, hosts may hand back plain callables.
func hostCallable(v any) (*HostOperation, bool) {
	switch f := v.(type) {
	case *HostOperation:
		return f, true
	case ScriptMethod:
		return &HostOperation{Name: "(anonymous)", Method: f}, true
	case BlockFilter:
		return &HostOperation{Name: "(anonymous)", Block: f}, true
	case Callback:
		return &HostOperation{Name: "(anonymous)", Method: func(_ context.Context, args []any) (any, error) {
			return f(args...)
		}}, true
	}
	return nil, false
}

func (ev *Evaluator) resolveHost(name string) (*HostOperation, error) {
	if ev.Host == nil {
		return nil, serrors.NewHostNotFound(name, nil)
	}
	op, ok := ev.Host.Resolve(name)
	if !ok || op == nil {
		return nil, serrors.NewHostNotFound(name, ev.Host.Names())
	}
	return op, nil
}

// invokeHost marshals args, calls op, waits for asynchronous results and
// converts the answer back.
func (ev *Evaluator) invokeHost(op *HostOperation, args []object.Object, env *Environment) (object.Object, error) {
	call := &hostCall{ev: ev, name: op.Name}
	defer call.close()
	goArgs := make([]any, len(args))
	for i, a := range args {
		goArgs[i] = call.toGo(a)
	}

	var result any
	var err error
	switch {
	case op.Block != nil:
		result, err = op.Block(ev.ctx, &BlockContext{ev: ev, env: env}, goArgs)
	case op.Method != nil:
		result, err = op.Method(ev.ctx, goArgs)
	default:
		return nil, serrors.NewHostNotFound(op.Name, nil)
	}
	if err == nil {
		if fut, ok := result.(Future); ok {
			result, err = fut.Await(ev.ctx)
		}
	}
	if err != nil {
		if ctxErr := ev.ctx.Err(); ctxErr != nil {
			return nil, serrors.Wrap("STATE-0001", ctxErr, nil)
		}
		var se *serrors.SageError
		if stderrors.As(err, &se) && se.Code == "HOST-0003" {
			return nil, se
		}
		return nil, serrors.Wrap("HOST-0002", err, map[string]any{"Name": op.Name})
	}
	return FromGo(result), nil
}

// hostCall is one in-flight host invocation. Callbacks it hands out hold
// mu while they run, so the evaluator never runs on two goroutines at once.
type hostCall struct {
	ev     *Evaluator
	name   string
	mu     sync.Mutex
	closed bool
}

func (c *hostCall) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *hostCall) toGo(o object.Object) any {
	switch o.(type) {
	case *Closure, *Builtin:
		return c.callback(o)
	}
	return ToGo(o)
}

func (c *hostCall) callback(fn object.Object) Callback {
	return func(args ...any) (any, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return nil, serrors.New("HOST-0003", map[string]any{"Name": c.name})
		}
		objs := make([]object.Object, len(args))
		for i, a := range args {
			objs[i] = FromGo(a)
		}
		v, err := c.ev.apply(fn, objs, nil)
		if err != nil {
			return nil, err
		}
		if rv, ok := v.(*ReturnValue); ok {
			v = rv.Value
		}
		return ToGo(v), nil
	}
}

// ToGo converts a value to plain Go data: nil, bool, int64, float64,
// string, []any and map[string]any. Symbols and keywords become their
// names; host references yield the wrapped value.
func ToGo(o object.Object) any {
	switch v := o.(type) {
	case nil, *object.Nil:
		return nil
	case *object.Boolean:
		return v.Value
	case *object.Integer:
		return v.Value
	case *object.Float:
		return v.Value
	case *object.String:
		return v.Value
	case *object.Symbol:
		return v.Name
	case *object.Keyword:
		return v.Name
	case *object.List:
		return sliceToGo(v.Elements)
	case *object.Vector:
		return sliceToGo(v.Elements)
	case *object.Mapping:
		out := make(map[string]any, v.Len())
		keys, values := v.Keys(), v.Values()
		for i, k := range keys {
			out[object.KeyString(k)] = ToGo(values[i])
		}
		return out
	case *object.HostRef:
		return v.Value
	}
	return o
}

func sliceToGo(elems []object.Object) []any {
	out := make([]any, len(elems))
	for i, e := range elems {
		out[i] = ToGo(e)
	}
	return out
}

// FromGo converts a host value into a language value. Maps get keyword
// keys in sorted order; false becomes nil; anything unrecognised is
// wrapped in a HostRef.
func FromGo(v any) object.Object {
	switch x := v.(type) {
	case nil:
		return object.NIL
	case object.Object:
		return x
	case bool:
		return object.Bool(x)
	case int:
		return object.NewInteger(int64(x))
	case int8:
		return object.NewInteger(int64(x))
	case int16:
		return object.NewInteger(int64(x))
	case int32:
		return object.NewInteger(int64(x))
	case int64:
		return object.NewInteger(x)
	case uint:
		return object.NewInteger(int64(x))
	case uint8:
		return object.NewInteger(int64(x))
	case uint16:
		return object.NewInteger(int64(x))
	case uint32:
		return object.NewInteger(int64(x))
	case uint64:
		return object.NewInteger(int64(x))
	case float32:
		return object.NewFloat(float64(x))
	case float64:
		return object.NewFloat(x)
	case string:
		return object.NewString(x)
	case []byte:
		return object.NewString(string(x))
	case []any:
		return listFromGo(len(x), func(i int) any { return x[i] })
	case []string:
		return listFromGo(len(x), func(i int) any { return x[i] })
	case []map[string]any:
		return listFromGo(len(x), func(i int) any { return x[i] })
	case map[string]any:
		m := object.NewMapping()
		for _, k := range object.SortedKeys(x) {
			m.Set(object.InternKeyword(k), FromGo(x[k]))
		}
		return m
	case map[string]string:
		m := object.NewMapping()
		for _, k := range object.SortedKeys(x) {
			m.Set(object.InternKeyword(k), object.NewString(x[k]))
		}
		return m
	case *HostOperation:
		return &object.HostRef{Value: x}
	case fmt.Stringer, error:
		return &object.HostRef{Value: x}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		return listFromGo(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	}
	return &object.HostRef{Value: v}
}

func listFromGo(n int, at func(int) any) object.Object {
	elems := make([]object.Object, n)
	for i := 0; i < n; i++ {
		elems[i] = FromGo(at(i))
	}
	return object.NewList(elems...)
}

// MapRegistry is a simple HostRegistry backed by a map.
type MapRegistry map[string]*HostOperation

func (m MapRegistry) Resolve(name string) (*HostOperation, bool) {
	op, ok := m[name]
	return op, ok
}

func (m MapRegistry) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
