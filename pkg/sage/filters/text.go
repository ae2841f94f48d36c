package filters

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

func registerText(r *Registry, cfg Config) {
	r.Register("upper", stringMethod("upper", strings.ToUpper))
	r.Register("lower", stringMethod("lower", strings.ToLower))
	r.Register("trim", stringMethod("trim", strings.TrimSpace))

	r.Register("join", func(_ context.Context, args []any) (any, error) {
		if err := wantArgs("join", args, 1, 2); err != nil {
			return nil, err
		}
		items, ok := args[0].([]any)
		if !ok && args[0] != nil {
			return nil, fmt.Errorf("/join: first argument must be a list, got %s", describe(args[0]))
		}
		sep := optionalString(args, 1, "")
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = text(item)
		}
		return strings.Join(parts, sep), nil
	})

	r.Register("title", func(_ context.Context, args []any) (any, error) {
		if err := wantArgs("title", args, 1, 2); err != nil {
			return nil, err
		}
		s, err := stringArg("title", args, 0)
		if err != nil {
			return nil, err
		}
		tag := localeTag(optionalString(args, 1, cfg.Locale))
		return cases.Title(tag).String(s), nil
	})

	r.Register("format-number", func(_ context.Context, args []any) (any, error) {
		if err := wantArgs("format-number", args, 1, 2); err != nil {
			return nil, err
		}
		p := message.NewPrinter(localeTag(optionalString(args, 1, cfg.Locale)))
		switch v := args[0].(type) {
		case int64:
			return p.Sprintf("%v", number.Decimal(v)), nil
		case float64:
			return p.Sprintf("%v", number.Decimal(v)), nil
		}
		f, err := numberArg("format-number", args, 0)
		if err != nil {
			return nil, err
		}
		return p.Sprintf("%v", number.Decimal(f)), nil
	})
}

func stringMethod(name string, fn func(string) string) func(context.Context, []any) (any, error) {
	return func(_ context.Context, args []any) (any, error) {
		if err := wantArgs(name, args, 1, 1); err != nil {
			return nil, err
		}
		s, err := stringArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}

// localeTag accepts "en_GB", "en-GB" or "en". Unknown locales fall back
// to English.
func localeTag(locale string) language.Tag {
	if locale == "" {
		return language.English
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.English
	}
	return tag
}
