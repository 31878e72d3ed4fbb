// Package extension provides the extension model of hookline: extension
// descriptors with typed lifecycle hooks, the per-extension Context, the
// Registry that owns them and the Scheduler that runs one hook across every
// registered extension in priority order.
package extension
