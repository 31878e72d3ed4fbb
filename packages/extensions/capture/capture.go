// Package capture copies values out of successful responses into the shared
// state, so later calls and other extensions can use them.
package capture

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
	"github.com/abdul-hamid-achik/hookline/packages/http"
)

const (
	Name     = "capture"
	Priority = 0
)

// Source selects where a rule reads from.
type Source string

const (
	SourceBody     Source = "body"
	SourceHeader   Source = "header"
	SourceStatus   Source = "status"
	SourceDuration Source = "duration"
)

// Rule stores the value found at Path under Name.
type Rule struct {
	Name   string
	Source Source

	// Path is a gjson path for body rules and a header name for header rules.
	// An empty body path captures the whole body.
	Path string
}

// RulesFromConfig converts configured capture rules.
func RulesFromConfig(rules []config.CaptureRule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Header != "" {
			out = append(out, Rule{Name: r.Name, Source: SourceHeader, Path: r.Header})
			continue
		}
		out = append(out, Rule{Name: r.Name, Source: SourceBody, Path: r.Path})
	}
	return out
}

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if resp.IsJSON() {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

func (e *Extractor) Extract(rule Rule) (any, bool) {
	switch rule.Source {
	case SourceBody, "":
		return e.extractFromBody(rule.Path)
	case SourceHeader:
		return e.extractFromHeader(rule.Path)
	case SourceStatus:
		return e.response.StatusCode, true
	case SourceDuration:
		return e.response.DurationMs(), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// ExtractAll applies every rule and returns the values found by name.
func ExtractAll(resp *http.Response, rules []Rule) map[string]any {
	extractor := NewExtractor(resp)
	results := make(map[string]any)

	for _, r := range rules {
		if value, ok := extractor.Extract(r); ok {
			results[r.Name] = value
		}
	}

	return results
}

// New returns the capture extension. Captured names of the last call are
// kept in the extension state under "captured".
func New(rules ...Rule) extension.Extension {
	return extension.Extension{
		Name:     Name,
		Priority: Priority,
		Hooks: extension.Hooks{
			AfterSuccess: func(_ context.Context, args extension.AfterSuccessArgs, ec *extension.Context) error {
				values := ExtractAll(args.Response, rules)
				names := make([]any, 0, len(values))
				for _, r := range rules {
					v, ok := values[r.Name]
					if !ok {
						continue
					}
					ec.SetSharedState(r.Name, v)
					names = append(names, r.Name)
				}
				if len(names) < len(rules) {
					ec.Logger().Debug().
						Str("call", args.Call.ID).
						Str("captured", joinNames(names)).
						Msg("some captures found nothing")
				}
				return ec.SetState(func(prev state.Snapshot) (state.Snapshot, error) {
					return prev.With("captured", names), nil
				})
			},
		},
	}
}

func joinNames(names []any) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i], _ = n.(string)
	}
	return strings.Join(parts, ",")
}
