// Package validation collects field violations as machine readable codes.
package validation

import (
	"strings"
	"time"
)

// Violations maps a field name to a violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Translate returns a copy of v whose codes went through tr.
func (v Violations) Translate(tr func(code string) string) map[string]string {
	out := make(map[string]string, len(v))
	for field, code := range v {
		out[field] = tr(code)
	}
	return out
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 {
		v[field] = "must_be_positive"
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

func RangeInt(field string, val, minVal, maxVal int, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

// Date parses value with layout. Empty values are valid and yield nil.
func Date(field, value, layout string, v Violations) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		v[field] = "invalid_date"
		return nil
	}
	return &t
}

// OneOf flags value when it is not one of allowed.
func OneOf(field, value, code string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = code
}
