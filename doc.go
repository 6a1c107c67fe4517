// Package goAuthClient establishes and maintains an authenticated session against a
// remote authentication authority: password login with an optional second-factor
// challenge, silent rehydration of a persisted bearer credential, identity completion,
// safe post-login redirects and second-factor enrollment.
//
// [Client] is the single owner of session state. Callers read it through
// [Client.Session] and change it only through Client methods; no other component
// writes the user or the stored credential.
//
// # Architecture boundaries
//
// goAuthClient is the public surface. It exposes [Client], [Builder], [Config] and
// value types ([Session], [User], [SecondFactorChallenge], [BackupCodes]). The wire
// protocol lives in authority/, credential decoding in token/, persistence in store/
// and audit dispatch under internal/.
//
// # What this package must NOT do
//
//   - Log, audit or put into an error string a bearer credential or temp token.
//   - Verify credential signatures; the authority is the only trust root.
//   - Retry a failed authority call on its own.
package goAuthClient
