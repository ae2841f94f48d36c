// Package object defines the runtime values of the Sage language.
//
// Code and data share one representation: the reader produces Objects and
// the evaluator consumes them. Closures and builtins live in the evaluator
// package because they carry an Environment.
package object

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ObjectType names the variant of an Object.
type ObjectType string

const (
	NIL_OBJ     = "NIL"
	BOOLEAN_OBJ = "BOOLEAN"
	INTEGER_OBJ = "INTEGER"
	FLOAT_OBJ   = "FLOAT"
	STRING_OBJ  = "STRING"
	SYMBOL_OBJ  = "SYMBOL"
	KEYWORD_OBJ = "KEYWORD"
	LIST_OBJ    = "LIST"
	VECTOR_OBJ  = "VECTOR"
	MAPPING_OBJ = "MAPPING"
	CLOSURE_OBJ = "CLOSURE"
	BUILTIN_OBJ = "BUILTIN"
	HOSTREF_OBJ = "HOSTREF"
	RETURN_OBJ  = "RETURN_VALUE"
)

// Object represents all values in the language.
type Object interface {
	Type() ObjectType
	// Inspect returns the readable representation: strings are quoted.
	Inspect() string
}

// Nil is the empty list and the false value.
type Nil struct{}

func (n *Nil) Type() ObjectType { return NIL_OBJ }
func (n *Nil) Inspect() string  { return "nil" }

// Boolean is only ever produced as TRUE by the language itself; predicates
// answer TRUE or NIL. FALSE exists so host values survive a round trip.
type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string {
	if b.Value {
		return "t"
	}
	return "false"
}

// Integer represents integer numbers.
type Integer struct {
	Value int64
}

func (i *Integer) Type() ObjectType { return INTEGER_OBJ }
func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }

// Float represents floating-point numbers.
type Float struct {
	Value float64
}

func (f *Float) Type() ObjectType { return FLOAT_OBJ }
func (f *Float) Inspect() string {
	s := strconv.FormatFloat(f.Value, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eENI") {
		s += ".0"
	}
	return s
}

// String represents string values.
type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return strconv.Quote(s.Value) }

// Symbol is an interned name. Two symbols with the same name are the same
// pointer, so symbols compare with ==.
type Symbol struct {
	Name string
}

func (s *Symbol) Type() ObjectType { return SYMBOL_OBJ }
func (s *Symbol) Inspect() string  { return s.Name }

// Keyword is an interned, self-evaluating name. Name excludes the colon.
type Keyword struct {
	Name string
}

func (k *Keyword) Type() ObjectType { return KEYWORD_OBJ }
func (k *Keyword) Inspect() string  { return ":" + k.Name }

// List is an ordered sequence used both as data and as code. Lists read
// from source remember the position of their opening parenthesis.
type List struct {
	Elements []Object
	Line     int
	Column   int
}

func (l *List) Type() ObjectType { return LIST_OBJ }
func (l *List) Inspect() string {
	return "(" + inspectAll(l.Elements) + ")"
}

// Vector is an ordered sequence written with square brackets.
type Vector struct {
	Elements []Object
}

func (v *Vector) Type() ObjectType { return VECTOR_OBJ }
func (v *Vector) Inspect() string {
	return "[" + inspectAll(v.Elements) + "]"
}

// HostRef is an opaque handle to a host-provided object or callable.
type HostRef struct {
	Value any
}

func (h *HostRef) Type() ObjectType { return HOSTREF_OBJ }
func (h *HostRef) Inspect() string {
	switch v := h.Value.(type) {
	case fmt.Stringer:
		return v.String()
	case nil:
		return "#<host nil>"
	}
	return fmt.Sprint(h.Value)
}

// Global constants
var (
	NIL   = &Nil{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

var (
	symbolsMu sync.Mutex
	symbols   = make(map[string]*Symbol)
	keywords  = make(map[string]*Keyword)
)

// Intern returns the unique Symbol with the given name.
func Intern(name string) *Symbol {
	symbolsMu.Lock()
	defer symbolsMu.Unlock()
	if s, ok := symbols[name]; ok {
		return s
	}
	s := &Symbol{Name: name}
	symbols[name] = s
	return s
}

// InternKeyword returns the unique Keyword with the given name. A leading
// colon is accepted and ignored.
func InternKeyword(name string) *Keyword {
	name = strings.TrimPrefix(name, ":")
	symbolsMu.Lock()
	defer symbolsMu.Unlock()
	if k, ok := keywords[name]; ok {
		return k
	}
	k := &Keyword{Name: name}
	keywords[name] = k
	return k
}

// NewList returns a list of elems, or NIL when elems is empty.
func NewList(elems ...Object) Object {
	if len(elems) == 0 {
		return NIL
	}
	return &List{Elements: elems}
}

// NewString wraps s.
func NewString(s string) *String { return &String{Value: s} }

// NewInteger wraps i.
func NewInteger(i int64) *Integer { return &Integer{Value: i} }

// NewFloat wraps f.
func NewFloat(f float64) *Float { return &Float{Value: f} }

// Bool converts a Go bool to TRUE or NIL.
func Bool(b bool) Object {
	if b {
		return TRUE
	}
	return NIL
}

// IsTruthy reports whether o counts as true: everything except NIL and an
// explicit false.
func IsTruthy(o Object) bool {
	switch v := o.(type) {
	case nil, *Nil:
		return false
	case *Boolean:
		return v.Value
	}
	return true
}

// IsNil reports whether o is the nil value.
func IsNil(o Object) bool {
	_, ok := o.(*Nil)
	return ok || o == nil
}

// Elements returns the items of a sequence value. NIL is the empty sequence.
func Elements(o Object) ([]Object, bool) {
	switch v := o.(type) {
	case *Nil:
		return nil, true
	case *List:
		return v.Elements, true
	case *Vector:
		return v.Elements, true
	}
	return nil, false
}

// Display returns the printed form used by output builtins: strings are
// written raw, everything else uses Inspect.
func Display(o Object) string {
	switch v := o.(type) {
	case nil:
		return "nil"
	case *String:
		return v.Value
	}
	return o.Inspect()
}

func inspectAll(elems []Object) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		if e == nil {
			parts[i] = "nil"
			continue
		}
		parts[i] = e.Inspect()
	}
	return strings.Join(parts, " ")
}

// Equal compares two values structurally. Numbers compare across the
// numeric tower, mappings compare by key set regardless of order.
func Equal(a, b Object) bool {
	if a == b {
		return true
	}
	if IsNil(a) || IsNil(b) {
		return IsNil(a) && IsNil(b)
	}

	if an, ok := ToFloat(a); ok {
		if bn, ok := ToFloat(b); ok {
			return an == bn
		}
		return false
	}

	switch av := a.(type) {
	case *Boolean:
		bv, ok := b.(*Boolean)
		return ok && av.Value == bv.Value
	case *String:
		bv, ok := b.(*String)
		return ok && av.Value == bv.Value
	case *List:
		bv, ok := b.(*List)
		return ok && equalSlices(av.Elements, bv.Elements)
	case *Vector:
		bv, ok := b.(*Vector)
		return ok && equalSlices(av.Elements, bv.Elements)
	case *Mapping:
		bv, ok := b.(*Mapping)
		return ok && av.equal(bv)
	case *HostRef:
		bv, ok := b.(*HostRef)
		if !ok {
			return false
		}
		if eq, ok := av.Value.(interface{ Equal(any) bool }); ok {
			return eq.Equal(bv.Value)
		}
		return hostValuesEqual(av.Value, bv.Value)
	}
	return false
}

func hostValuesEqual(a, b any) (eq bool) {
	// Uncomparable host values (slices, maps) are never equal.
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func equalSlices(a, b []Object) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// ToFloat returns the numeric value of o as a float64.
func ToFloat(o Object) (float64, bool) {
	switch v := o.(type) {
	case *Integer:
		return float64(v.Value), true
	case *Float:
		return v.Value, true
	}
	return 0, false
}

// IsNumber reports whether o is an Integer or Float.
func IsNumber(o Object) bool {
	_, ok := ToFloat(o)
	return ok
}

// TypeName returns a lowercase type name for error messages.
func TypeName(o Object) string {
	if o == nil {
		return "nil"
	}
	return strings.ToLower(string(o.Type()))
}

// SortedKeys returns the keys of m in lexical order, for deterministic
// conversion of Go maps.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
