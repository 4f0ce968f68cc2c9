package table

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const currencyPrefix = "RM "

// Lookup walks a dotted path ("employees.full_name") through nested records.
func (r Record) Lookup(path string) (any, bool) {
	var current any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

// Text returns the scalar at path as display text, or "" when absent.
func (r Record) Text(path string) string {
	value, ok := r.Lookup(path)
	if !ok {
		return ""
	}
	return scalarText(value)
}

func asObject(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case Record:
		return v, true
	case map[string]any:
		return v, true
	default:
		return nil, false
	}
}

func scalarText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func orPlaceholder(value string) string {
	if value == "" {
		return Placeholder
	}
	return value
}

func Field(path string) Accessor {
	return func(r Record) string {
		return orPlaceholder(r.Text(path))
	}
}

// FirstOf returns the first non-blank field among paths.
func FirstOf(paths ...string) Accessor {
	return func(r Record) string {
		for _, path := range paths {
			if value := r.Text(path); value != "" {
				return value
			}
		}
		return Placeholder
	}
}

func Const(value string) Accessor {
	return func(Record) string { return orPlaceholder(value) }
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// Date normalizes timestamps to YYYY-MM-DD. Unparseable values pass through.
func Date(path string) Accessor {
	return func(r Record) string {
		raw := r.Text(path)
		if raw == "" {
			return Placeholder
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed.Format("2006-01-02")
			}
		}
		return raw
	}
}

var clockLayouts = []string{"15:04", "15:04:05", time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// Clock normalizes times and timestamps to HH:MM, reading the first
// non-blank of paths.
func Clock(paths ...string) Accessor {
	return func(r Record) string {
		raw := ""
		for _, path := range paths {
			if raw = r.Text(path); raw != "" {
				break
			}
		}
		if raw == "" {
			return Placeholder
		}
		for _, layout := range clockLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed.Format("15:04")
			}
		}
		return raw
	}
}

// Money renders a ringgit amount: "RM 1,234.50".
func Money(path string) Accessor {
	return func(r Record) string {
		raw := r.Text(path)
		if raw == "" {
			return Placeholder
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return Placeholder
		}
		return FormatMoney(amount)
	}
}

func FormatMoney(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(digit)
	}
	return sign + currencyPrefix + grouped.String() + "." + frac
}

func Days(path string) Accessor {
	return func(r Record) string {
		raw := r.Text(path)
		if raw == "" {
			return Placeholder
		}
		if raw == "1" {
			return "1 day"
		}
		return raw + " days"
	}
}

// Status lower-cases status words so they line up with the badge classes.
func Status(path string) Accessor {
	return func(r Record) string {
		return orPlaceholder(strings.ToLower(r.Text(path)))
	}
}
