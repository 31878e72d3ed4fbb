// Package config handles configuration loading and management for hookline.
//
// It provides functionality for:
//   - Loading configuration from .hookline.yaml or .hookline.json files
//   - Loading .env files and expanding ${VAR} references
//   - Default configuration values and merging of overrides
//   - Watching a configuration file for changes
package config
