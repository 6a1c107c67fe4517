// Package authority is the HTTP/JSON transport to the remote authentication
// authority: login, second-factor verification, profile lookup and second-factor
// enrollment.
//
// Response shapes are decided once here. Login returns a [LoginOutcome] that is
// either [Authenticated] or [ChallengeIssued]; callers never inspect raw JSON.
// Every failure wraps exactly one of the package sentinel errors.
package authority
