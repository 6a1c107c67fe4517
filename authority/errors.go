package authority

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork reports a transport failure or timeout.
	ErrNetwork = errors.New("authority unreachable")
	// ErrInvalidCredentials reports a rejected email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSecondFactorRejected reports a rejected TOTP or backup code.
	ErrSecondFactorRejected = errors.New("second factor rejected")
	// ErrChallengeExpired reports a temp token the authority no longer accepts.
	ErrChallengeExpired = errors.New("second factor challenge expired")
	// ErrUnauthorized reports a bearer credential rejected with 401.
	ErrUnauthorized = errors.New("bearer credential rejected")
	// ErrServer reports a 5xx, an unexpected status or an unreadable body.
	ErrServer = errors.New("authority server error")
)

// challengeExpiredCodes are error codes some authorities send instead of 410.
var challengeExpiredCodes = map[string]struct{}{
	"challenge_expired":     {},
	"temp_token_expired":    {},
	"mfa_challenge_expired": {},
}

// APIError carries the HTTP status and the authority's error body.
// It wraps one of the package sentinels.
type APIError struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v: status %d (%s)", e.kind, e.Status, e.Code)
	}
	return fmt.Sprintf("%v: status %d", e.kind, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

type errorBody struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) code() string {
	if b.Code != "" {
		return b.Code
	}
	return b.Error
}
