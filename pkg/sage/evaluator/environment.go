package evaluator

import (
	"sort"

	"github.com/sambeau/sage/pkg/sage/object"
)

// Environment is one frame of a lexical scope chain. Frames are shared by
// reference: closures keep the frame they were created in alive.
type Environment struct {
	store map[*object.Symbol]object.Object
	outer *Environment
}

// NewEnvironment creates an empty root frame.
func NewEnvironment() *Environment {
	return &Environment{store: make(map[*object.Symbol]object.Object)}
}

// NewEnclosedEnvironment creates a frame whose lookups fall back to outer.
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.outer = outer
	return env
}

// NewRootEnvironment creates a root frame holding every builtin function.
// Each call gets its own copy so that redefining a builtin in one
// evaluation never leaks into another.
func NewRootEnvironment() *Environment {
	env := NewEnvironment()
	for name, b := range builtins {
		env.store[object.Intern(name)] = b
	}
	return env
}

// Get retrieves a value, walking outward from this frame.
func (e *Environment) Get(sym *object.Symbol) (object.Object, bool) {
	for env := e; env != nil; env = env.outer {
		if v, ok := env.store[sym]; ok {
			return v, true
		}
	}
	return nil, false
}

// GetName is Get by name.
func (e *Environment) GetName(name string) (object.Object, bool) {
	return e.Get(object.Intern(name))
}

// Set binds sym in this frame.
func (e *Environment) Set(sym *object.Symbol, val object.Object) object.Object {
	e.store[sym] = val
	return val
}

// SetName is Set by name.
func (e *Environment) SetName(name string, val object.Object) object.Object {
	return e.Set(object.Intern(name), val)
}

// Update assigns to the nearest frame that already binds sym. If no frame
// does, sym is defined in this frame.
func (e *Environment) Update(sym *object.Symbol, val object.Object) object.Object {
	for env := e; env != nil; env = env.outer {
		if _, ok := env.store[sym]; ok {
			env.store[sym] = val
			return val
		}
	}
	e.store[sym] = val
	return val
}

// IsBound reports whether sym is bound anywhere in the chain.
func (e *Environment) IsBound(sym *object.Symbol) bool {
	_, ok := e.Get(sym)
	return ok
}

// Outer returns the enclosing frame, or nil for a root frame.
func (e *Environment) Outer() *Environment { return e.outer }

// Root returns the outermost frame of the chain.
func (e *Environment) Root() *Environment {
	env := e
	for env.outer != nil {
		env = env.outer
	}
	return env
}

// AllSymbols returns the names bound anywhere in the chain, sorted. It is
// used for "did you mean" suggestions and REPL completion.
func (e *Environment) AllSymbols() []string {
	seen := make(map[string]bool)
	var result []string
	for env := e; env != nil; env = env.outer {
		for sym := range env.store {
			if !seen[sym.Name] {
				seen[sym.Name] = true
				result = append(result, sym.Name)
			}
		}
	}
	sort.Strings(result)
	return result
}

// UserBindings returns the bindings of this frame that are not the
// builtin installed by NewRootEnvironment.
func (e *Environment) UserBindings() map[string]object.Object {
	out := make(map[string]object.Object)
	for sym, v := range e.store {
		if b, ok := builtins[sym.Name]; ok && object.Object(b) == v {
			continue
		}
		out[sym.Name] = v
	}
	return out
}

// snapshot copies the bindings of this frame only.
func (e *Environment) snapshot() map[*object.Symbol]object.Object {
	out := make(map[*object.Symbol]object.Object, len(e.store))
	for k, v := range e.store {
		out[k] = v
	}
	return out
}

// changedSince lists the names bound in this frame that were added or
// rebound after before was taken.
func (e *Environment) changedSince(before map[*object.Symbol]object.Object) []string {
	var names []string
	for sym, v := range e.store {
		if old, ok := before[sym]; !ok || old != v {
			names = append(names, sym.Name)
		}
	}
	sort.Strings(names)
	return names
}
