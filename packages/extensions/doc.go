// Package extensions holds the built-in hookline extensions. Each
// subpackage exposes a constructor returning an extension.Extension, and
// FromConfig assembles the ones enabled in a configuration.
package extensions
