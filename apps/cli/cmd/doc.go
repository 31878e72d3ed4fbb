// Package cmd implements the hookline CLI commands using Cobra.
//
// Available commands:
//   - request (and get, post, put, patch, delete, head): send one call
//     through the configured extensions
//   - extensions: list the configured extensions in execution order
//   - history: show calls recorded by the history extension
//   - validate: check a configuration file without sending anything
//   - init: write a starter hookline.yaml
//   - version: show hookline version information
//
// Every flag that has an environment variable fallback names it in its
// help text (HOOKLINE_*).
package cmd
