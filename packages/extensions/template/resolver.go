package template

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Lookup finds a variable by name.
type Lookup func(name string) (any, bool)

// UnresolvedError lists the placeholders a strict resolve could not fill.
type UnresolvedError struct {
	Names []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved template variables: %s", strings.Join(e.Names, ", "))
}

// Resolver expands {{...}} placeholders:
//   - {{$NAME}} reads the process environment
//   - {{fn(args)}} calls a template function
//   - {{name}} consults each lookup in order
//
// Unresolved placeholders are left in place.
type Resolver struct {
	funcs   *Functions
	lookups []Lookup
}

// NewResolver returns a resolver consulting lookups in order.
func NewResolver(funcs *Functions, lookups ...Lookup) *Resolver {
	if funcs == nil {
		funcs = NewFunctions(nil)
	}
	return &Resolver{funcs: funcs, lookups: lookups}
}

// MapLookup looks names up in m.
func MapLookup(m map[string]string) Lookup {
	return func(name string) (any, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// Resolve expands input and reports the placeholders left unresolved.
func (r *Resolver) Resolve(input string) (string, []string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil, nil
	}

	var (
		unresolved []string
		firstErr   error
	)
	out := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		if name, ok := strings.CutPrefix(expr, "$"); ok {
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			unresolved = append(unresolved, expr)
			return match
		}

		if strings.Contains(expr, "(") {
			result, ok, err := r.funcs.Call(expr)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if ok && err == nil {
				return result
			}
			unresolved = append(unresolved, expr)
			return match
		}

		for _, lookup := range r.lookups {
			if val, ok := lookup(expr); ok {
				return fmt.Sprintf("%v", val)
			}
		}
		unresolved = append(unresolved, expr)
		return match
	})
	return out, unresolved, firstErr
}

// ResolveStrict is Resolve returning an UnresolvedError when any
// placeholder is left.
func (r *Resolver) ResolveStrict(input string) (string, error) {
	out, unresolved, err := r.Resolve(input)
	if err != nil {
		return "", err
	}
	if len(unresolved) > 0 {
		return "", &UnresolvedError{Names: unresolved}
	}
	return out, nil
}
