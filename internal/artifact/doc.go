// Package artifact talks to the versioned artifact store models are fetched
// from and keeps a local journal of what was fetched when.
//
//   - client.go: HTTP client for the path+timestamp addressed store
//     (Fetch downloads a blob, Headers reads its metadata).
//   - journal.go: sqlite-backed record of successful fetches, used to reuse
//     a still-valid local file instead of re-downloading.
//   - errors.go: FetchError and its predicate.
//
// The client never retries; a failed fetch is reported once and retry
// policy stays with the caller.
package artifact
