package resource

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Properties is a property bag as returned by the array. Nested objects
// are map[string]any and lists are []any.
type Properties map[string]any

// Lookup resolves a dotted path such as "pool.name".
func (p Properties) Lookup(path string) (any, bool) {
	var cur any = map[string]any(p)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// String returns the value at path as a string, "" when absent.
func (p Properties) String(path string) string {
	v, ok := p.Lookup(path)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Int returns the value at path as an int64. Absent values and values
// that are not numeric report false.
func (p Properties) Int(path string) (int64, bool) {
	v, ok := p.Lookup(path)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case uint64:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Bool returns the value at path as a bool, false when absent.
func (p Properties) Bool(path string) bool {
	v, ok := p.Lookup(path)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Object returns the nested object at path.
func (p Properties) Object(path string) (Properties, bool) {
	v, ok := p.Lookup(path)
	if !ok {
		return nil, false
	}
	m, ok := asMap(v)
	return Properties(m), ok
}

// Objects returns the list of nested objects at path. Non-object entries
// are skipped.
func (p Properties) Objects(path string) []Properties {
	v, ok := p.Lookup(path)
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]map[string]any); ok {
			out := make([]Properties, 0, len(typed))
			for _, m := range typed {
				out = append(out, Properties(m))
			}
			return out
		}
		return nil
	}
	out := make([]Properties, 0, len(list))
	for _, item := range list {
		if m, ok := asMap(item); ok {
			out = append(out, Properties(m))
		}
	}
	return out
}

// RefID returns the id of the nested reference at path, e.g.
// RefID("storageResource") for {"storageResource": {"id": "res_1"}}.
func (p Properties) RefID(path string) string {
	return p.String(path + ".id")
}

// RefIDs returns the ids of a list of references.
func (p Properties) RefIDs(path string) []string {
	objs := p.Objects(path)
	ids := make([]string, 0, len(objs))
	for _, o := range objs {
		if id := o.String("id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Properties:
		return t, true
	}
	return nil, false
}
