// Package schema validates decoded response bodies against a JSON schema.
package schema

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
)

const (
	Name     = "schema"
	Priority = 0
)

// ValidationError lists the schema violations of one response.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Violations, "; "))
}

// Validator checks documents against a compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the schema in data.
func NewValidator(data []byte) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// LoadValidator reads and compiles the schema file at path.
func LoadValidator(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return NewValidator(data)
}

// Validate checks a decoded document.
func (v *Validator) Validate(document any) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &ValidationError{Violations: violations}
}

// New returns an extension validating every JSON response against v.
// Non-JSON responses are skipped. A critical extension also stops the
// remaining onResponse handlers of an invalid response.
func New(v *Validator, critical bool) extension.Extension {
	return extension.Extension{
		Name:     Name,
		Priority: Priority,
		Critical: critical,
		InitialState: map[string]any{
			"validated": 0,
			"invalid":   0,
		},
		Hooks: extension.Hooks{
			OnResponse: func(_ context.Context, args extension.OnResponseArgs, ec *extension.Context) error {
				if !args.Response.IsJSON() || args.Data == nil {
					return nil
				}

				err := v.Validate(args.Data)
				if serr := ec.SetState(func(prev state.Snapshot) (state.Snapshot, error) {
					next := prev.With("validated", prev.Int("validated")+1)
					if err != nil {
						next = next.With("invalid", prev.Int("invalid")+1)
					}
					return next, nil
				}); serr != nil {
					return serr
				}
				return err
			},
		},
	}
}
