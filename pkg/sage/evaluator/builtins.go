package evaluator

import (
	"sort"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/object"
)

var builtins map[string]*Builtin

func init() {
	builtins = make(map[string]*Builtin)
	for _, table := range []map[string]BuiltinFunction{
		listBuiltins,
		predicateBuiltins,
		mathBuiltins,
		mappingBuiltins,
		stringBuiltins,
		outputBuiltins,
	} {
		for name, fn := range table {
			builtins[name] = &Builtin{Name: name, Fn: fn}
		}
	}
}

// Builtins returns the names of every builtin function, sorted.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func typeError(fn, expected string, got object.Object) error {
	return serrors.New("TYPE-0001", map[string]any{
		"Function": fn, "Expected": expected, "Got": object.TypeName(got),
	})
}

func checkArgs(name string, args []object.Object, n int) error {
	if len(args) != n {
		return serrors.New("ARITY-0001", map[string]any{"Name": name, "Expected": n, "Got": len(args)})
	}
	return nil
}

func checkArgRange(name string, args []object.Object, min, max int) error {
	if len(args) < min {
		return serrors.New("ARITY-0002", map[string]any{"Name": name, "Expected": min, "Got": len(args)})
	}
	if len(args) > max {
		return serrors.New("ARITY-0001", map[string]any{"Name": name, "Expected": max, "Got": len(args)})
	}
	return nil
}

// iterable returns the elements a sequence function walks over. Mappings
// yield (key value) entries and strings yield one-character strings.
func iterable(fn string, o object.Object) ([]object.Object, error) {
	if elems, ok := object.Elements(o); ok {
		return elems, nil
	}
	switch v := o.(type) {
	case *object.Mapping:
		return v.Entries(), nil
	case *object.String:
		runes := []rune(v.Value)
		out := make([]object.Object, len(runes))
		for i, r := range runes {
			out[i] = object.NewString(string(r))
		}
		return out, nil
	}
	return nil, typeError(fn, "a sequence", o)
}

func toInt(fn string, o object.Object) (int64, error) {
	i, ok := o.(*object.Integer)
	if !ok {
		return 0, typeError(fn, "an integer", o)
	}
	return i.Value, nil
}

var listBuiltins = map[string]BuiltinFunction{
	"list": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		return object.NewList(append([]object.Object(nil), args...)...), nil
	},
	"vector": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		return &object.Vector{Elements: append([]object.Object{}, args...)}, nil
	},
	"cons": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("cons", args, 2); err != nil {
			return nil, err
		}
		tail, ok := object.Elements(args[1])
		if !ok {
			return nil, typeError("cons", "a list", args[1])
		}
		return object.NewList(append([]object.Object{args[0]}, tail...)...), nil
	},
	"car":    builtinFirst,
	"first":  builtinFirst,
	"cdr":    builtinRest,
	"rest":   builtinRest,
	"second": builtinNthOf(1, "second"),
	"last": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("last", args, 1); err != nil {
			return nil, err
		}
		elems, err := iterable("last", args[0])
		if err != nil || len(elems) == 0 {
			return object.NIL, err
		}
		return elems[len(elems)-1], nil
	},
	"nth": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("nth", args, 2); err != nil {
			return nil, err
		}
		elems, err := iterable("nth", args[0])
		if err != nil {
			return nil, err
		}
		i, err := toInt("nth", args[1])
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= int64(len(elems)) {
			return object.NIL, nil
		}
		return elems[i], nil
	},
	"length": builtinLength,
	"count":  builtinLength,
	"append": builtinAppend,
	"concat": builtinAppend,
	"reverse": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("reverse", args, 1); err != nil {
			return nil, err
		}
		if s, ok := args[0].(*object.String); ok {
			runes := []rune(s.Value)
			for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
				runes[i], runes[j] = runes[j], runes[i]
			}
			return object.NewString(string(runes)), nil
		}
		elems, err := iterable("reverse", args[0])
		if err != nil {
			return nil, err
		}
		out := make([]object.Object, len(elems))
		for i, e := range elems {
			out[len(elems)-1-i] = e
		}
		if _, ok := args[0].(*object.Vector); ok {
			return &object.Vector{Elements: out}, nil
		}
		return object.NewList(out...), nil
	},
	"range": builtinRange,
	"map":   builtinMap,
	"filter": func(ev *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("filter", args, 2); err != nil {
			return nil, err
		}
		elems, err := iterable("filter", args[1])
		if err != nil {
			return nil, err
		}
		var out []object.Object
		for _, e := range elems {
			keep, ret, err := ev.callFunction(args[0], e)
			if err != nil || ret {
				return keep, err
			}
			if object.IsTruthy(keep) {
				out = append(out, e)
			}
		}
		return object.NewList(out...), nil
	},
	"mapcan": builtinMapcan,
	"reduce": builtinReduce,
	"apply": func(ev *Evaluator, args []object.Object) (object.Object, error) {
		if len(args) < 2 {
			return nil, serrors.New("ARITY-0002", map[string]any{"Name": "apply", "Expected": 2, "Got": len(args)})
		}
		spread, ok := object.Elements(args[len(args)-1])
		if !ok {
			return nil, typeError("apply", "a list as last argument", args[len(args)-1])
		}
		callArgs := append(append([]object.Object{}, args[1:len(args)-1]...), spread...)
		return ev.apply(args[0], callArgs, nil)
	},
	"sort": builtinSort,
	"identity": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("identity", args, 1); err != nil {
			return nil, err
		}
		return args[0], nil
	},
}

func builtinFirst(_ *Evaluator, args []object.Object) (object.Object, error) {
	if err := checkArgs("first", args, 1); err != nil {
		return nil, err
	}
	elems, err := iterable("first", args[0])
	if err != nil || len(elems) == 0 {
		return object.NIL, err
	}
	return elems[0], nil
}

func builtinRest(_ *Evaluator, args []object.Object) (object.Object, error) {
	if err := checkArgs("rest", args, 1); err != nil {
		return nil, err
	}
	elems, err := iterable("rest", args[0])
	if err != nil || len(elems) < 2 {
		return object.NIL, err
	}
	return object.NewList(elems[1:]...), nil
}

func builtinNthOf(i int, name string) BuiltinFunction {
	return func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		elems, err := iterable(name, args[0])
		if err != nil || len(elems) <= i {
			return object.NIL, err
		}
		return elems[i], nil
	}
}

func builtinLength(_ *Evaluator, args []object.Object) (object.Object, error) {
	if err := checkArgs("length", args, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case *object.String:
		return object.NewInteger(int64(len([]rune(v.Value)))), nil
	case *object.Mapping:
		return object.NewInteger(int64(v.Len())), nil
	}
	elems, ok := object.Elements(args[0])
	if !ok {
		return nil, typeError("length", "a sequence", args[0])
	}
	return object.NewInteger(int64(len(elems))), nil
}

// builtinAppend joins sequences into a list. When every argument is a
// string the result is a string.
func builtinAppend(_ *Evaluator, args []object.Object) (object.Object, error) {
	allStrings := len(args) > 0
	for _, a := range args {
		if _, ok := a.(*object.String); !ok {
			allStrings = false
			break
		}
	}
	if allStrings {
		s := ""
		for _, a := range args {
			s += a.(*object.String).Value
		}
		return object.NewString(s), nil
	}

	var out []object.Object
	for _, a := range args {
		elems, ok := object.Elements(a)
		if !ok {
			return nil, typeError("append", "lists", a)
		}
		out = append(out, elems...)
	}
	return object.NewList(out...), nil
}

// builtinRange produces integers: (range n) is 0..n-1, (range a b) is
// a..b-1 and (range a b step) counts by step.
func builtinRange(_ *Evaluator, args []object.Object) (object.Object, error) {
	if err := checkArgRange("range", args, 1, 3); err != nil {
		return nil, err
	}
	nums := make([]int64, len(args))
	for i, a := range args {
		n, err := toInt("range", a)
		if err != nil {
			return nil, err
		}
		nums[i] = n
	}

	var start, end, step int64 = 0, nums[0], 1
	if len(nums) >= 2 {
		start, end = nums[0], nums[1]
	}
	if len(nums) == 3 {
		step = nums[2]
	}
	if step == 0 {
		return nil, serrors.New("OP-0002", map[string]any{"Function": "range", "Detail": "step must not be zero"})
	}

	var out []object.Object
	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		out = append(out, object.NewInteger(i))
	}
	return object.NewList(out...), nil
}

// builtinMap applies f across one or more sequences, stopping at the
// shortest.
func builtinMap(ev *Evaluator, args []object.Object) (object.Object, error) {
	if len(args) < 2 {
		return nil, serrors.New("ARITY-0002", map[string]any{"Name": "map", "Expected": 2, "Got": len(args)})
	}
	seqs := make([][]object.Object, len(args)-1)
	n := -1
	for i, a := range args[1:] {
		elems, err := iterable("map", a)
		if err != nil {
			return nil, err
		}
		seqs[i] = elems
		if n < 0 || len(elems) < n {
			n = len(elems)
		}
	}

	out := make([]object.Object, 0, n)
	for i := 0; i < n; i++ {
		callArgs := make([]object.Object, len(seqs))
		for j, s := range seqs {
			callArgs[j] = s[i]
		}
		v, err := ev.apply(args[0], callArgs, nil)
		if err != nil || isReturn(v) {
			return v, err
		}
		out = append(out, v)
	}
	return object.NewList(out...), nil
}

// builtinMapcan applies f and splices list results together. Nil results
// are dropped; any other value is kept as a single element.
func builtinMapcan(ev *Evaluator, args []object.Object) (object.Object, error) {
	if err := checkArgs("mapcan", args, 2); err != nil {
		return nil, err
	}
	elems, err := iterable("mapcan", args[1])
	if err != nil {
		return nil, err
	}
	var out []object.Object
	for _, e := range elems {
		v, ret, err := ev.callFunction(args[0], e)
		if err != nil || ret {
			return v, err
		}
		if parts, ok := object.Elements(v); ok {
			out = append(out, parts...)
			continue
		}
		out = append(out, v)
	}
	return object.NewList(out...), nil
}

// builtinReduce folds left: (reduce f init seq) or (reduce f seq).
func builtinReduce(ev *Evaluator, args []object.Object) (object.Object, error) {
	if err := checkArgRange("reduce", args, 2, 3); err != nil {
		return nil, err
	}
	elems, err := iterable("reduce", args[len(args)-1])
	if err != nil {
		return nil, err
	}
	var acc object.Object
	if len(args) == 3 {
		acc = args[1]
	} else {
		if len(elems) == 0 {
			return ev.apply(args[0], nil, nil)
		}
		acc, elems = elems[0], elems[1:]
	}
	for _, e := range elems {
		v, ret, err := ev.callFunction(args[0], acc, e)
		if err != nil || ret {
			return v, err
		}
		acc = v
	}
	return acc, nil
}

// builtinSort returns a sorted list. Without a predicate numbers and
// strings sort ascending; with one, (pred a b) answers "a before b".
func builtinSort(ev *Evaluator, args []object.Object) (object.Object, error) {
	if err := checkArgRange("sort", args, 1, 2); err != nil {
		return nil, err
	}
	elems, err := iterable("sort", args[0])
	if err != nil {
		return nil, err
	}
	out := append([]object.Object(nil), elems...)

	var sortErr error
	var ret object.Object
	sort.SliceStable(out, func(i, j int) bool {
		if sortErr != nil || ret != nil {
			return false
		}
		if len(args) == 2 {
			v, isRet, err := ev.callFunction(args[1], out[i], out[j])
			if err != nil {
				sortErr = err
				return false
			}
			if isRet {
				ret = v
				return false
			}
			return object.IsTruthy(v)
		}
		less, err := compareLess("sort", out[i], out[j])
		if err != nil {
			sortErr = err
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}
	if ret != nil {
		return ret, nil
	}
	return object.NewList(out...), nil
}
