// Package headers reconciles two independently authored header sets.
//
// Each header family is merged with its own strategy:
//   - override: the incoming value replaces the base value (Authorization, Content-Type)
//   - multiValue: both values are kept as separate entries (Set-Cookie)
//   - merge: the values are combined into one (Cookie pairs, quality-weighted Accept
//     lists, comma-separated lists such as Cache-Control)
//
// Merging is pure and deterministic: it never reads ambient state and never mutates its
// arguments.
package headers
