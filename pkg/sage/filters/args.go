package filters

import (
	"fmt"
	"strconv"
	"strings"
)

func wantArgs(name string, args []any, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		switch {
		case min == max:
			return fmt.Errorf("/%s takes %d argument(s), got %d", name, min, len(args))
		case max < 0:
			return fmt.Errorf("/%s takes at least %d argument(s), got %d", name, min, len(args))
		}
		return fmt.Errorf("/%s takes %d to %d arguments, got %d", name, min, max, len(args))
	}
	return nil
}

func stringArg(name string, args []any, i int) (string, error) {
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("/%s: argument %d must be a string, got %s", name, i+1, describe(args[i]))
	}
	return s, nil
}

func optionalString(args []any, i int, fallback string) string {
	if i < len(args) {
		if s, ok := args[i].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func numberArg(name string, args []any, i int) (float64, error) {
	switch v := args[i].(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("/%s: argument %d must be a number, got %s", name, i+1, describe(args[i]))
}

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

// text renders a value the way print would.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = text(e)
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprint(v)
}
