// Package output renders call results, errors, call history and metrics
// summaries for the terminal.
//
// Two formats are available:
//   - console: colored, human-readable output with pretty-printed JSON bodies
//   - json: one machine-readable JSON document per call
package output
