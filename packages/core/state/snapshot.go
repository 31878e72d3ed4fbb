// Package state holds per-extension private state and the client-wide shared
// state map.
//
// Private state is an immutable Snapshot swapped atomically by pure reducers;
// a committed snapshot is never mutated. Shared state is a plain last-writer-wins
// map: concurrent pipelines may interleave writes and no read-modify-write
// transaction is offered.
package state

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
)

// Snapshot is an immutable string-keyed value. Values are deep-copied on the
// way in and on the way out. Values Check rejects cannot be copied and are
// kept as opaque references; stores refuse to commit them.
type Snapshot struct {
	m map[string]any
}

// NewSnapshot copies m into a new snapshot. A nil map yields an empty snapshot.
func NewSnapshot(m map[string]any) Snapshot {
	return Snapshot{m: cloneMap(m)}
}

// Get returns a copy of the value stored under key.
func (s Snapshot) Get(key string) (any, bool) {
	v, ok := s.m[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// String returns the value under key if it is a string.
func (s Snapshot) String(key string) string {
	v, _ := s.m[key].(string)
	return v
}

// Int returns the value under key converted to int, or 0.
func (s Snapshot) Int(key string) int {
	switch v := s.m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Bool returns the value under key if it is a bool.
func (s Snapshot) Bool(key string) bool {
	v, _ := s.m[key].(bool)
	return v
}

// Time returns the value under key if it is a time.Time.
func (s Snapshot) Time(key string) time.Time {
	v, _ := s.m[key].(time.Time)
	return v
}

// Len returns the number of keys.
func (s Snapshot) Len() int {
	return len(s.m)
}

// Keys returns the keys sorted.
func (s Snapshot) Keys() []string {
	return sortedKeys(s.m)
}

// Map returns a deep copy of the snapshot contents.
func (s Snapshot) Map() map[string]any {
	return cloneMap(s.m)
}

// With returns a new snapshot with key set to value.
func (s Snapshot) With(key string, value any) Snapshot {
	m := cloneMap(s.m)
	m[key] = cloneValue(value)
	return Snapshot{m: m}
}

// WithAll returns a new snapshot with every entry of values set.
func (s Snapshot) WithAll(values map[string]any) Snapshot {
	m := cloneMap(s.m)
	for k, v := range values {
		m[k] = cloneValue(v)
	}
	return Snapshot{m: m}
}

// Without returns a new snapshot with key removed.
func (s Snapshot) Without(key string) Snapshot {
	m := cloneMap(s.m)
	delete(m, key)
	return Snapshot{m: m}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int, int64, float64, time.Time, time.Duration:
		return v
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []byte:
		return append([]byte(nil), val...)
	}
	if Check(v) != nil {
		return v
	}
	return deepcopy.Copy(v)
}

var timeType = reflect.TypeOf(time.Time{})

// Check reports whether v can be stored in a snapshot without sharing memory
// with the caller. Channels, funcs, unsafe pointers, cyclic values and structs
// with unexported fields (other than time.Time) are rejected.
func Check(v any) error {
	if v == nil {
		return nil
	}
	if err := checkValue(reflect.ValueOf(v), map[uintptr]bool{}); err != nil {
		return errs.Validation("state value of type %T cannot be copied: %v", v, err)
	}
	return nil
}

// CheckMap runs Check on every value of m.
func CheckMap(m map[string]any) error {
	for _, k := range sortedKeys(m) {
		if err := Check(m[k]); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	return nil
}

func checkValue(v reflect.Value, seen map[uintptr]bool) error {
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Errorf("%s values are not copyable", v.Kind())
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Kind() != reflect.Slice {
			ptr := v.Pointer()
			if seen[ptr] {
				return fmt.Errorf("cyclic %s", v.Type())
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkValue(v.Elem(), seen)
	case reflect.Array:
		if holdsReferences(v.Type().Elem()) {
			return fmt.Errorf("arrays of %s are not copyable", v.Type().Elem())
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			if err := checkValue(v.Index(i), seen); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkValue(iter.Key(), seen); err != nil {
				return err
			}
			if err := checkValue(iter.Value(), seen); err != nil {
				return err
			}
		}
	case reflect.Struct:
		if v.Type() == timeType {
			return nil
		}
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				return fmt.Errorf("%s has unexported field %s", v.Type(), v.Type().Field(i).Name)
			}
			if err := checkValue(v.Field(i), seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func holdsReferences(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Ptr, reflect.Interface, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return holdsReferences(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsReferences(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
