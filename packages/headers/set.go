package headers

import (
	"sort"
	"strings"
)

// Set is a header collection keyed by the author's casing.
type Set map[string][]string

// FromMap builds a Set from single-valued headers.
func FromMap(m map[string]string) Set {
	s := make(Set, len(m))
	for k, v := range m {
		s[k] = []string{v}
	}
	return s
}

// Lookup finds a header case-insensitively and returns the stored key.
func (s Set) Lookup(name string) (string, []string, bool) {
	if v, ok := s[name]; ok {
		return name, v, true
	}
	for k, v := range s {
		if strings.EqualFold(k, name) {
			return k, v, true
		}
	}
	return "", nil, false
}

// Get returns the first value for name, or "" if it is absent.
func (s Set) Get(name string) string {
	_, v, ok := s.Lookup(name)
	if !ok || len(v) == 0 {
		return ""
	}
	return v[0]
}

// Values returns every value for name.
func (s Set) Values(name string) []string {
	_, v, _ := s.Lookup(name)
	return v
}

// Has reports whether name is present under any casing.
func (s Set) Has(name string) bool {
	_, _, ok := s.Lookup(name)
	return ok
}

// Put replaces every casing variant of name with a single value.
func (s Set) Put(name, value string) {
	s.Del(name)
	s[name] = []string{value}
}

// Add appends a value, reusing the existing casing when the header is present.
func (s Set) Add(name, value string) {
	if k, v, ok := s.Lookup(name); ok {
		s[k] = append(v, value)
		return
	}
	s[name] = []string{value}
}

// Del removes every casing variant of name.
func (s Set) Del(name string) {
	for k := range s {
		if strings.EqualFold(k, name) {
			delete(s, k)
		}
	}
}

// Clone returns a deep copy.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Names returns the header names sorted.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Flatten joins multi-valued headers with ", ".
func (s Set) Flatten() map[string]string {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

// Equal compares two sets exactly, including casing and value order.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		ov, ok := other[k]
		if !ok || len(ov) != len(v) {
			return false
		}
		for i := range v {
			if v[i] != ov[i] {
				return false
			}
		}
	}
	return true
}
