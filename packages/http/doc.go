// Package http provides the collaborators the request pipeline drives:
//
//   - Transport: sends a finalized Request over net/http and returns a Response
//   - Codec: decodes a response body according to its declared content type
//   - URLBuilder: joins a base URL, an endpoint and query parameters
//   - Cassette: records and replays HTTP interactions for offline runs
//
// Transport failures caused by context cancellation wrap ErrAborted so callers
// can tell an abort apart from a network failure.
package http
