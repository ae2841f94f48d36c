package evaluator

import (
	"reflect"
	"testing"

	"github.com/sambeau/sage/pkg/sage/object"
)

func TestEnvironmentScoping(t *testing.T) {
	root := NewEnvironment()
	root.SetName("x", object.NewInteger(1))
	inner := NewEnclosedEnvironment(root)
	inner.SetName("y", object.NewInteger(2))

	if v, ok := inner.GetName("x"); !ok || v.Inspect() != "1" {
		t.Errorf("inner lookup of outer binding failed")
	}
	if _, ok := root.GetName("y"); ok {
		t.Errorf("outer frame sees inner binding")
	}

	inner.Update(object.Intern("x"), object.NewInteger(5))
	if v, _ := root.GetName("x"); v.Inspect() != "5" {
		t.Errorf("Update did not assign the outer binding: %s", v.Inspect())
	}

	inner.Update(object.Intern("z"), object.NewInteger(9))
	if _, ok := root.GetName("z"); ok {
		t.Errorf("Update of an unbound name should define it locally")
	}

	if inner.Root() != root || inner.Outer() != root || root.Outer() != nil {
		t.Errorf("frame links are wrong")
	}
	if got := inner.AllSymbols(); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Errorf("AllSymbols = %v", got)
	}
}

func TestRootEnvironmentHasBuiltins(t *testing.T) {
	env := NewRootEnvironment()
	for _, name := range []string{"car", "mapcan", "new-map", "println", "even?"} {
		if v, ok := env.GetName(name); !ok {
			t.Errorf("%s missing", name)
		} else if _, isBuiltin := v.(*Builtin); !isBuiltin {
			t.Errorf("%s is %T", name, v)
		}
	}
	if len(Builtins()) != len(env.AllSymbols()) {
		t.Errorf("root frame has %d names, want %d", len(env.AllSymbols()), len(Builtins()))
	}
}

func TestChangedSince(t *testing.T) {
	env := NewEnvironment()
	env.SetName("kept", object.NewInteger(1))
	env.SetName("rebound", object.NewInteger(1))
	before := env.snapshot()

	env.SetName("rebound", object.NewInteger(2))
	env.SetName("added", object.TRUE)

	if got := env.changedSince(before); !reflect.DeepEqual(got, []string{"added", "rebound"}) {
		t.Errorf("changedSince = %v", got)
	}
}

func TestUserBindings(t *testing.T) {
	env := NewRootEnvironment()
	env.SetName("answer", object.NewInteger(42))
	env.SetName("car", object.NewString("shadowed"))

	got := env.UserBindings()
	if len(got) != 2 || got["answer"].Inspect() != "42" || got["car"].Inspect() != `"shadowed"` {
		t.Errorf("UserBindings = %v", got)
	}
}

func TestSpecialFormsListed(t *testing.T) {
	names := SpecialForms()
	for _, name := range names {
		if !IsSpecialForm(name) {
			t.Errorf("%s listed but not a special form", name)
		}
	}
	if len(names) == 0 || names[0] != "and" {
		t.Errorf("SpecialForms() = %v", names)
	}
}
