// Package middleware adapts a goAuthClient session to net/http.
//
// # Guards
//
//   - [RequireSession] redirects anonymous browser requests to the login route,
//     carrying the requested path as a safe "next" target.
//   - [RequireRole] additionally restricts a route to one role.
//
// Guards check the stored credential on every request, so an expired credential ends
// the session before the handler runs.
//
// # Transport
//
// [Transport] attaches the bearer credential to outgoing calls and reports a 401
// back to the session so the client drops a credential the authority no longer
// accepts.
//
// This package never decodes credentials or decides redirects itself; both are
// delegated to the client.
package middleware
