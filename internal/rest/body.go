package rest

import (
	"fmt"
	"reflect"
)

// Identifier is anything that references a remote object by ID. Request
// bodies encode identifiers as {"id": ...}.
type Identifier interface {
	ID() string
}

// Ref is a bare identifier.
type Ref string

// ID returns the referenced object id.
func (r Ref) ID() string { return string(r) }

// Body is a request payload. An absent key leaves the remote value
// unchanged; a present empty list clears it.
type Body map[string]any

// MakeBody builds a Body from alternating key/value pairs. Unset values
// (nil, nil pointers, empty strings, empty lists and empty nested bodies)
// are dropped.
func MakeBody(kv ...any) Body {
	return makeBody(false, kv)
}

// MakeBodyAllowEmpty is MakeBody but keeps empty lists and bodies, so a
// caller can express "clear all".
func MakeBodyAllowEmpty(kv ...any) Body {
	return makeBody(true, kv)
}

func makeBody(allowEmpty bool, kv []any) Body {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("rest: odd number of body arguments: %d", len(kv)))
	}
	b := Body{}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("rest: body key %v is not a string", kv[i]))
		}
		if v, keep := Normalize(kv[i+1], allowEmpty); keep {
			b[key] = v
		}
	}
	return b
}

// Set stores value under key after normalization, keeping empty lists.
func (b Body) Set(key string, value any) Body {
	if v, keep := Normalize(value, true); keep {
		b[key] = v
	}
	return b
}

// Merge copies other into b.
func (b Body) Merge(other Body) Body {
	for k, v := range other {
		b[k] = v
	}
	return b
}

// Normalize converts v into its wire form and reports whether it should be
// sent at all.
func Normalize(v any, allowEmpty bool) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch t := v.(type) {
	case Identifier:
		if isNilPointer(v) {
			return nil, false
		}
		return map[string]any{"id": t.ID()}, true
	case Body:
		return normalizeMap(map[string]any(t), allowEmpty)
	case map[string]any:
		return normalizeMap(t, allowEmpty)
	case string:
		return t, t != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, false
		}
		return Normalize(rv.Elem().Interface(), allowEmpty)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, false
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if item, keep := Normalize(rv.Index(i).Interface(), allowEmpty); keep {
				out = append(out, item)
			}
		}
		if len(out) == 0 && !allowEmpty {
			return nil, false
		}
		return out, true
	}
	return v, true
}

func normalizeMap(m map[string]any, allowEmpty bool) (any, bool) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nv, keep := Normalize(v, allowEmpty); keep {
			out[k] = nv
		}
	}
	if len(out) == 0 && !allowEmpty {
		return nil, false
	}
	return out, true
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
