// Package audit dispatches session audit events asynchronously to a sink.
//
// # Components
//
//   - [Sink] receives events (channel, JSON lines, slog, no-op).
//   - [Dispatcher] is a buffered relay that either drops or blocks when full.
//     Metadata values under token, password, secret or code keys are redacted
//     before delivery.
//   - [Event] is the record: timestamp, type, user, role, request id, outcome.
//
// # What this package must NOT do
//
//   - Decide which events are emitted; the Client does that.
//   - Carry credentials. Events hold identifiers and sentinel error text only.
//   - Import goAuthClient or any sibling internal package.
package audit
