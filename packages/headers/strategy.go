package headers

import (
	"fmt"
	"strings"
)

// Strategy selects how a header present on both sides is reconciled.
type Strategy int

const (
	StrategyOverride Strategy = iota
	StrategyMultiValue
	StrategyMerge
)

func (s Strategy) String() string {
	switch s {
	case StrategyMultiValue:
		return "multiValue"
	case StrategyMerge:
		return "merge"
	default:
		return "override"
	}
}

// ParseStrategy accepts the names used in configuration files.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "override", "replace":
		return StrategyOverride, nil
	case "multivalue", "multi-value", "multi_value", "append":
		return StrategyMultiValue, nil
	case "merge":
		return StrategyMerge, nil
	default:
		return StrategyOverride, fmt.Errorf("unknown header strategy: %q", name)
	}
}

// classification maps lower-cased header names to their strategy.
// Names starting with "accept" are always merged.
var classification = map[string]Strategy{
	"authorization":       StrategyOverride,
	"proxy-authorization": StrategyOverride,
	"content-type":        StrategyOverride,
	"content-length":      StrategyOverride,
	"host":                StrategyOverride,
	"user-agent":          StrategyOverride,
	"if-match":            StrategyOverride,
	"if-modified-since":   StrategyOverride,

	"set-cookie":         StrategyMultiValue,
	"www-authenticate":   StrategyMultiValue,
	"proxy-authenticate": StrategyMultiValue,
	"link":               StrategyMultiValue,
	"warning":            StrategyMultiValue,

	"cookie":          StrategyMerge,
	"cache-control":   StrategyMerge,
	"pragma":          StrategyMerge,
	"vary":            StrategyMerge,
	"via":             StrategyMerge,
	"if-none-match":   StrategyMerge,
	"te":              StrategyMerge,
	"forwarded":       StrategyMerge,
	"x-forwarded-for": StrategyMerge,
}

// StrategyFor resolves the default strategy for a header name.
func StrategyFor(name string) Strategy {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "accept") {
		return StrategyMerge
	}
	if s, ok := classification[lower]; ok {
		return s
	}
	return StrategyOverride
}
