package filters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
)

// dateStyles are the named layouts /date-format accepts besides Go
// reference layouts.
var dateStyles = map[string]string{
	"iso":    "2006-01-02",
	"short":  "02/01/2006",
	"medium": "2 Jan 2006",
	"long":   "2 January 2006",
	"full":   "Monday, 2 January 2006",
}

var usDateStyles = map[string]string{
	"short":  "1/2/2006",
	"medium": "Jan 2, 2006",
	"long":   "January 2, 2006",
	"full":   "Monday, January 2, 2006",
}

func registerDates(r *Registry, cfg Config) {
	r.Register("date", func(_ context.Context, args []any) (any, error) {
		if err := wantArgs("date", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return time.Now(), nil
		}
		return toTime("date", args[0])
	})

	r.Register("date-format", func(_ context.Context, args []any) (any, error) {
		if err := wantArgs("date-format", args, 1, 3); err != nil {
			return nil, err
		}
		t, err := toTime("date-format", args[0])
		if err != nil {
			return nil, err
		}
		locale := mondayLocale(optionalString(args, 2, cfg.Locale))
		layout := dateLayout(optionalString(args, 1, "long"), locale)
		return monday.Format(t, layout, locale), nil
	})
}

func toTime(name string, v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case int64:
		return time.Unix(x, 0).UTC(), nil
	case string:
		t, err := dateparse.ParseAny(strings.TrimSpace(x))
		if err != nil {
			return time.Time{}, fmt.Errorf("/%s: cannot read %q as a date", name, x)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("/%s: expected a date, got %s", name, describe(v))
}

func dateLayout(style string, locale monday.Locale) string {
	if locale == monday.LocaleEnUS {
		if layout, ok := usDateStyles[style]; ok {
			return layout
		}
	}
	if layout, ok := dateStyles[style]; ok {
		return layout
	}
	return style
}

// mondayLocale maps "de", "de_DE" or "de-DE" to a supported locale,
// falling back to US English.
func mondayLocale(locale string) monday.Locale {
	if locale == "" {
		return monday.LocaleEnUS
	}
	norm := strings.ReplaceAll(locale, "-", "_")
	lang, region, _ := strings.Cut(norm, "_")
	lang = strings.ToLower(lang)
	region = strings.ToUpper(region)

	if lang == "en" && region == "" {
		return monday.LocaleEnUS
	}
	if region == "" {
		region = strings.ToUpper(lang)
	}

	supported := monday.ListLocales()
	want := monday.Locale(lang + "_" + region)
	for _, l := range supported {
		if l == want {
			return l
		}
	}
	for _, l := range supported {
		if strings.HasPrefix(string(l), lang+"_") {
			return l
		}
	}
	return monday.LocaleEnUS
}
