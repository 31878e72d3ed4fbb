// Package pipeline runs HTTP calls through the extension lifecycle.
//
// A Client owns an extension registry and scheduler. Every call merges the
// client and call headers, then runs beforeRequest, onRequest, the transport,
// beforeResponse, body decoding, the status check, onResponse and
// afterSuccess. Any failure is routed to onError instead. afterRequest always
// runs last.
package pipeline
