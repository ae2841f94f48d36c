package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/sage/pkg/sage/object"
)

var stringBuiltins = map[string]BuiltinFunction{
	"str": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(object.Display(a))
		}
		return object.NewString(sb.String()), nil
	},
	"format":   builtinFormat,
	"sprintf":  builtinSprintf,
	"upcase":   stringTransform("upcase", strings.ToUpper),
	"downcase": stringTransform("downcase", strings.ToLower),
	"trim":     stringTransform("trim", strings.TrimSpace),
	"join":     builtinJoin,
	"split": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgRange("split", args, 1, 2); err != nil {
			return nil, err
		}
		s, ok := args[0].(*object.String)
		if !ok {
			return nil, typeError("split", "a string", args[0])
		}
		var parts []string
		if len(args) == 1 {
			parts = strings.Fields(s.Value)
		} else {
			sep, ok := args[1].(*object.String)
			if !ok {
				return nil, typeError("split", "a string separator", args[1])
			}
			parts = strings.Split(s.Value, sep.Value)
		}
		out := make([]object.Object, len(parts))
		for i, p := range parts {
			out[i] = object.NewString(p)
		}
		return object.NewList(out...), nil
	},
	"repr": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("repr", args, 1); err != nil {
			return nil, err
		}
		return object.NewString(args[0].Inspect()), nil
	},
	"type-of": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("type-of", args, 1); err != nil {
			return nil, err
		}
		return object.InternKeyword(object.TypeName(args[0])), nil
	},
	"symbol": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("symbol", args, 1); err != nil {
			return nil, err
		}
		return object.Intern(object.KeyString(args[0])), nil
	},
	"keyword": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("keyword", args, 1); err != nil {
			return nil, err
		}
		return object.InternKeyword(object.KeyString(args[0])), nil
	},
	"to-string": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("to-string", args, 1); err != nil {
			return nil, err
		}
		return object.NewString(object.Display(args[0])), nil
	},
	"to-number": func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs("to-number", args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case *object.Integer, *object.Float:
			return v, nil
		case *object.String:
			s := strings.TrimSpace(v.Value)
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return object.NewInteger(i), nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return object.NewFloat(f), nil
			}
		}
		return object.NIL, nil
	},
}

var outputBuiltins = map[string]BuiltinFunction{
	"print": func(ev *Evaluator, args []object.Object) (object.Object, error) {
		ev.Out.Log(displayAll(args)...)
		return object.NIL, nil
	},
	"println": func(ev *Evaluator, args []object.Object) (object.Object, error) {
		ev.Out.LogLine(displayAll(args)...)
		return object.NIL, nil
	},
	"prin1": func(ev *Evaluator, args []object.Object) (object.Object, error) {
		values := make([]any, len(args))
		for i, a := range args {
			values[i] = a.Inspect()
		}
		ev.Out.Log(values...)
		return object.NIL, nil
	},
}

func displayAll(args []object.Object) []any {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = object.Display(a)
	}
	return values
}

func stringTransform(name string, fn func(string) string) BuiltinFunction {
	return func(_ *Evaluator, args []object.Object) (object.Object, error) {
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		s, ok := args[0].(*object.String)
		if !ok {
			return nil, typeError(name, "a string", args[0])
		}
		return object.NewString(fn(s.Value)), nil
	}
}

// builtinJoin accepts (join seq [sep]) or (join sep seq).
func builtinJoin(_ *Evaluator, args []object.Object) (object.Object, error) {
	if err := checkArgRange("join", args, 1, 2); err != nil {
		return nil, err
	}
	seq, sepArg := args[0], object.Object(object.NewString(""))
	if len(args) == 2 {
		sepArg = args[1]
		if _, isStr := args[0].(*object.String); isStr {
			seq, sepArg = args[1], args[0]
		}
	}
	sep, ok := sepArg.(*object.String)
	if !ok {
		return nil, typeError("join", "a string separator", sepArg)
	}
	elems, ok := object.Elements(seq)
	if !ok {
		return nil, typeError("join", "a list", seq)
	}
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = object.Display(e)
	}
	return object.NewString(strings.Join(parts, sep.Value)), nil
}

// builtinFormat understands the tilde directives ~a (display), ~s
// (readable), ~d (integer), ~Nf (float with N decimals), ~% (newline) and
// ~~ (a tilde).
func builtinFormat(_ *Evaluator, args []object.Object) (object.Object, error) {
	if len(args) < 1 {
		return nil, checkArgRange("format", args, 1, 1)
	}
	tmpl, ok := args[0].(*object.String)
	if !ok {
		return nil, typeError("format", "a format string", args[0])
	}
	rest := args[1:]
	next := func() (object.Object, error) {
		if len(rest) == 0 {
			return nil, malformed("format", "not enough arguments for "+strconv.Quote(tmpl.Value))
		}
		v := rest[0]
		rest = rest[1:]
		return v, nil
	}

	var sb strings.Builder
	runes := []rune(tmpl.Value)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '~' || i+1 >= len(runes) {
			sb.WriteRune(runes[i])
			continue
		}
		i++
		digits := ""
		for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
			digits += string(runes[i])
			i++
		}
		if i >= len(runes) {
			sb.WriteString("~" + digits)
			break
		}
		switch runes[i] {
		case 'a', 'A':
			v, err := next()
			if err != nil {
				return nil, err
			}
			sb.WriteString(object.Display(v))
		case 's', 'S':
			v, err := next()
			if err != nil {
				return nil, err
			}
			sb.WriteString(v.Inspect())
		case 'd', 'D':
			v, err := next()
			if err != nil {
				return nil, err
			}
			f, ok := object.ToFloat(v)
			if !ok {
				return nil, typeError("format ~d", "a number", v)
			}
			sb.WriteString(strconv.FormatInt(int64(f), 10))
		case 'f', 'F':
			v, err := next()
			if err != nil {
				return nil, err
			}
			f, ok := object.ToFloat(v)
			if !ok {
				return nil, typeError("format ~f", "a number", v)
			}
			prec := -1
			if digits != "" {
				prec, _ = strconv.Atoi(digits)
			}
			sb.WriteString(strconv.FormatFloat(f, 'f', prec, 64))
		case '%':
			sb.WriteByte('\n')
		case '~':
			sb.WriteByte('~')
		default:
			sb.WriteRune('~')
			sb.WriteString(digits)
			sb.WriteRune(runes[i])
		}
	}
	return object.NewString(sb.String()), nil
}

// builtinSprintf formats with Go verbs after converting arguments to plain
// Go values.
func builtinSprintf(_ *Evaluator, args []object.Object) (object.Object, error) {
	if len(args) < 1 {
		return nil, checkArgRange("sprintf", args, 1, 1)
	}
	tmpl, ok := args[0].(*object.String)
	if !ok {
		return nil, typeError("sprintf", "a format string", args[0])
	}
	values := make([]any, len(args)-1)
	for i, a := range args[1:] {
		values[i] = ToGo(a)
	}
	return object.NewString(fmt.Sprintf(tmpl.Value, values...)), nil
}
