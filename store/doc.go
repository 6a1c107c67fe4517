// Package store persists the single bearer credential slot of a client process.
//
// # Backends
//
//   - [MemoryStore]: process-local, for tests and embedded use.
//   - [FileStore]: survives restarts; atomic replace via rename; optional
//     XChaCha20-Poly1305 sealing at rest; fsnotify-based change watching.
//   - [RedisStore]: shared slot keyed by prefix, TTL bound to the credential expiry.
//
// # Record encoding
//
// File and Redis backends store a compact versioned binary record (see [Encode]).
// New versions may add trailing fields but never reinterpret old ones.
//
// # What this package must NOT do
//
//   - Decode or validate the credential itself; expiry is a hint for TTLs only.
//   - Log or wrap the credential into errors.
//   - Hold more than one credential per store instance.
package store
