package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"alloc-validator/internal/common"
	"alloc-validator/internal/entity"
)

// ErrNotNumeric is returned in strict mode when an int field cannot be parsed.
var ErrNotNumeric = errors.New("value is not numeric")

// Coercer converts raw input values into the Go type of a canonical field.
type Coercer struct {
	// Strict makes unparseable numbers an error instead of 0.
	Strict bool
}

// Coerce converts raw into the typed value expected by entity.Entity.Set for spec.
// The result is a string, *int or []string.
func (c Coercer) Coerce(spec entity.FieldSpec, raw any) (any, error) {
	switch spec.Type {
	case entity.FieldText:
		return Text(raw), nil
	case entity.FieldInt:
		return c.Int(raw)
	case entity.FieldList:
		return List(raw), nil
	case entity.FieldJSON:
		return JSONText(raw), nil
	default:
		return nil, fmt.Errorf("field %s: unsupported type %s", spec.Name, spec.Type)
	}
}

// Int converts raw into an optional integer. Blank input yields nil.
func (c Coercer) Int(raw any) (*int, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case int:
		return entity.IntPtr(v), nil
	case int64:
		return entity.IntPtr(int(v)), nil
	case float64:
		if c.Strict && v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: %v", ErrNotNumeric, v)
		}

		return entity.IntPtr(int(v)), nil
	case *int:
		if v == nil {
			return nil, nil
		}

		return entity.IntPtr(*v), nil
	}

	s := Text(raw)
	if s == "" {
		return nil, nil
	}

	n, err := ParseInt(s)
	if err != nil {
		if c.Strict {
			return nil, err
		}

		return entity.IntPtr(0), nil
	}

	return entity.IntPtr(n), nil
}

// ParseInt parses an integer, accepting integral decimals such as "3.0".
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)

	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}

	return int(f), nil
}

// Text renders raw as trimmed text.
func Text(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// List converts raw into a list of trimmed, non-empty items.
// Text is split on commas; text that holds a JSON array is decoded first.
func List(raw any) []string {
	var items []string

	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		items = v
	case []any:
		items = common.Map(v, Text)
	default:
		s := Text(raw)
		if arr, ok := jsonArray(s); ok {
			items = common.Map(arr, Text)
		} else {
			items = strings.Split(s, ",")
		}
	}

	return SplitList(strings.Join(items, ","))
}

// SplitList splits comma-separated text, trimming items and dropping empties.
func SplitList(s string) []string {
	return common.Filter(common.Map(strings.Split(s, ","), strings.TrimSpace), func(item string) bool {
		return item != ""
	})
}

// JoinList renders a list the way SplitList reads it back.
func JoinList(items []string) string {
	return strings.Join(items, ", ")
}

// JSONText renders raw as JSON text. Strings are kept verbatim (trimmed) so
// malformed JSON survives for the validator to report.
func JSONText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return Text(raw)
		}

		return string(data)
	default:
		return Text(raw)
	}
}

func jsonArray(s string) ([]any, bool) {
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}

	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return nil, false
	}

	return arr, true
}
