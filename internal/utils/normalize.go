package utils

import (
	"fmt"
	"reflect"
	"strings"
)

// CycleMarker replaces a value that refers back to one of its ancestors.
const CycleMarker = "<cycle>"

// Normalize converts an arbitrary value into a plain tree of map[string]any,
// []any and scalars. Structs become maps of their exported fields (keyed by
// json tag when present), fmt.Stringer structs become their string form,
// anything else that is not a container or scalar becomes fmt.Sprint output.
// It never panics; a failure yields an empty map.
func Normalize(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = map[string]any{}
		}
	}()
	n := &normalizer{visiting: make(map[visitKey]bool)}
	return n.value(reflect.ValueOf(v))
}

type visitKey struct {
	ptr uintptr
	typ reflect.Type
}

type normalizer struct {
	visiting map[visitKey]bool
}

var stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

// enter marks a reference-typed value as on the current path. It returns
// false when the value is already being expanded.
func (n *normalizer) enter(v reflect.Value) (visitKey, bool) {
	key := visitKey{ptr: v.Pointer(), typ: v.Type()}
	if key.ptr == 0 {
		return key, true
	}
	if n.visiting[key] {
		return key, false
	}
	n.visiting[key] = true
	return key, true
}

func (n *normalizer) leave(key visitKey) {
	delete(n.visiting, key)
}

func (n *normalizer) value(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return n.value(v.Elem())

	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		if v.Type().Implements(stringerType) && v.Elem().Kind() == reflect.Struct && v.CanInterface() {
			return v.Interface().(fmt.Stringer).String()
		}
		key, ok := n.enter(v)
		if !ok {
			return CycleMarker
		}
		defer n.leave(key)
		return n.value(v.Elem())

	case reflect.Struct:
		if v.Type().Implements(stringerType) && v.CanInterface() {
			return v.Interface().(fmt.Stringer).String()
		}
		return n.structValue(v)

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		key, ok := n.enter(v)
		if !ok {
			return CycleMarker
		}
		defer n.leave(key)
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(n.value(iter.Key()))] = n.value(iter.Value())
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return string(v.Bytes())
		}
		key, ok := n.enter(v)
		if !ok {
			return CycleMarker
		}
		defer n.leave(key)
		return n.list(v)

	case reflect.Array:
		return n.list(v)

	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}

	if v.CanInterface() {
		return fmt.Sprint(v.Interface())
	}
	return v.String()
}

func (n *normalizer) list(v reflect.Value) []any {
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = n.value(v.Index(i))
	}
	return out
}

func (n *normalizer) structValue(v reflect.Value) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out[name] = n.value(v.Field(i))
	}
	return out
}
