package headers

import (
	"sort"
	"strconv"
	"strings"
)

// Merger merges header sets using the classification table plus optional
// per-header overrides. The zero value uses the table only.
type Merger struct {
	overrides map[string]Strategy
}

// NewMerger copies the overrides, keyed case-insensitively.
func NewMerger(overrides map[string]Strategy) Merger {
	if len(overrides) == 0 {
		return Merger{}
	}
	m := Merger{overrides: make(map[string]Strategy, len(overrides))}
	for name, s := range overrides {
		m.overrides[strings.ToLower(name)] = s
	}
	return m
}

// StrategyFor resolves the strategy for name, preferring overrides.
func (m Merger) StrategyFor(name string) Strategy {
	if s, ok := m.overrides[strings.ToLower(name)]; ok {
		return s
	}
	return StrategyFor(name)
}

// Merge combines base and incoming using the default classification table.
func Merge(base, incoming Set) Set {
	return Merger{}.Merge(base, incoming)
}

type entry struct {
	name   string
	values []string
}

// Merge returns a new Set holding every header of base and incoming. Headers
// defined on both sides are reconciled with the strategy for their name; the
// incoming casing wins.
func (m Merger) Merge(base, incoming Set) Set {
	b := fold(base)
	in := fold(incoming)

	keys := make([]string, 0, len(b)+len(in))
	for k := range b {
		keys = append(keys, k)
	}
	for k := range in {
		if _, ok := b[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make(Set, len(keys))
	for _, key := range keys {
		be, inBase := b[key]
		ie, inIncoming := in[key]
		switch {
		case inBase && !inIncoming:
			out[be.name] = append([]string(nil), be.values...)
		case !inBase && inIncoming:
			out[ie.name] = append([]string(nil), ie.values...)
		default:
			out[ie.name] = m.combine(key, be.values, ie.values)
		}
	}
	return out
}

func (m Merger) combine(key string, base, incoming []string) []string {
	switch m.StrategyFor(key) {
	case StrategyMultiValue:
		values := make([]string, 0, len(base)+len(incoming))
		values = append(values, base...)
		return append(values, incoming...)
	case StrategyMerge:
		switch {
		case key == "cookie":
			return []string{mergeCookies(strings.Join(base, "; "), strings.Join(incoming, "; "))}
		case strings.HasPrefix(key, "accept"):
			return []string{mergeQualityList(strings.Join(base, ", "), strings.Join(incoming, ", "))}
		default:
			return []string{mergeList(strings.Join(base, ", "), strings.Join(incoming, ", "))}
		}
	default:
		return append([]string(nil), incoming...)
	}
}

// fold groups a set by lower-cased name. Keys are visited in sorted order so
// that two casings of one header fold deterministically.
func fold(s Set) map[string]entry {
	out := make(map[string]entry, len(s))
	for _, name := range s.Names() {
		key := strings.ToLower(name)
		e, ok := out[key]
		if !ok {
			e.name = name
		}
		e.values = append(e.values, s[name]...)
		out[key] = e
	}
	return out
}

func mergeCookies(base, incoming string) string {
	var order []string
	values := make(map[string]string)
	for _, raw := range []string{base, incoming} {
		for _, pair := range strings.Split(raw, ";") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			k, v, found := strings.Cut(pair, "=")
			k = strings.TrimSpace(k)
			if !found || k == "" {
				continue
			}
			if _, seen := values[k]; !seen {
				order = append(order, k)
			}
			values[k] = strings.TrimSpace(v)
		}
	}
	pairs := make([]string, len(order))
	for i, k := range order {
		pairs[i] = k + "=" + values[k]
	}
	return strings.Join(pairs, "; ")
}

type qualityItem struct {
	key     string
	raw     string
	quality float64
}

func parseQualityList(raw string) []qualityItem {
	var items []qualityItem
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		params := strings.Split(part, ";")
		key := strings.ToLower(strings.TrimSpace(params[0]))
		if key == "" {
			continue
		}
		items = append(items, qualityItem{key: key, raw: part, quality: parseQuality(params[1:])})
	}
	return items
}

func parseQuality(params []string) float64 {
	for _, p := range params {
		name, value, found := strings.Cut(strings.TrimSpace(p), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 1.0
		}
		return q
	}
	return 1.0
}

// mergeQualityList unions two Accept-style lists by value. An incoming item
// replaces the base item in place; the result is stably sorted by descending
// quality.
func mergeQualityList(base, incoming string) string {
	var items []qualityItem
	index := make(map[string]int)
	for _, raw := range []string{base, incoming} {
		for _, item := range parseQualityList(raw) {
			if i, ok := index[item.key]; ok {
				items[i] = item
				continue
			}
			index[item.key] = len(items)
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].quality > items[j].quality
	})
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.raw
	}
	return strings.Join(parts, ", ")
}

func mergeList(base, incoming string) string {
	var parts []string
	seen := make(map[string]bool)
	for _, raw := range []string{base, incoming} {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			key := strings.ToLower(part)
			if seen[key] {
				continue
			}
			seen[key] = true
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}
