package goAuthClient

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goAuthClient/authority"
	"github.com/MrEthical07/goAuthClient/store"
	"github.com/MrEthical07/goAuthClient/token"
)

var (
	// ErrInvalidCredentials is returned when the authority rejects an email/password pair.
	// It never distinguishes an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSecondFactorRejected is returned when the authority rejects a second-factor code.
	ErrSecondFactorRejected = errors.New("second factor rejected")
	// ErrBackupCodeRejected is returned for a rejected backup code. It wraps
	// ErrSecondFactorRejected.
	ErrBackupCodeRejected = fmt.Errorf("%w: backup code already used or invalid", ErrSecondFactorRejected)
	// ErrChallengeExpired is returned when the pending challenge is no longer usable.
	ErrChallengeExpired = errors.New("second factor challenge expired")
	// ErrChallengeAttemptsExceeded is returned when the local attempt cap ends a challenge.
	ErrChallengeAttemptsExceeded = errors.New("second factor attempts exceeded")
	// ErrMalformedToken is returned for a credential that cannot be decoded.
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpiredToken is returned for a credential whose expiry has passed.
	ErrExpiredToken = errors.New("expired token")
	// ErrNetworkUnavailable is returned for transport failures and timeouts.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrServerError is returned for 5xx responses and responses of unknown shape.
	ErrServerError = errors.New("server error")
	// ErrUnauthorized is returned when the authority rejects the bearer credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotAuthenticated is returned by operations that need an established session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrAlreadyAuthenticated is returned by SubmitCredentials while a session is live.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrNoChallenge is returned by SubmitSecondFactor without a matching pending challenge.
	ErrNoChallenge = errors.New("no pending second factor challenge")
	// ErrOperationInFlight is returned when an authentication operation is already running.
	ErrOperationInFlight = errors.New("authentication operation in flight")
	// ErrStaleResponse is returned when a response arrives after the session moved on.
	// The response has not been applied.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrTokenStoreUnavailable is returned when the credential slot cannot be read or written.
	ErrTokenStoreUnavailable = errors.New("token store unavailable")
	// ErrWatchUnsupported is returned by WatchTokenStore for stores without change notification.
	ErrWatchUnsupported = errors.New("token store does not support watching")
	// ErrClientNotReady is returned after Close or on a nil Client.
	ErrClientNotReady = errors.New("client not initialized")
)

func mapAuthorityError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, authority.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, authority.ErrChallengeExpired):
		return ErrChallengeExpired
	case errors.Is(err, authority.ErrSecondFactorRejected):
		return ErrSecondFactorRejected
	case errors.Is(err, authority.ErrUnauthorized):
		return ErrUnauthorized
	case errors.Is(err, authority.ErrNetwork):
		return fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrServerError, err)
	}
}

func mapDecodeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrExpired):
		return ErrExpiredToken
	default:
		return ErrMalformedToken
	}
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrTokenStoreUnavailable, store.ErrCorrupt)
	default:
		return fmt.Errorf("%w: %v", ErrTokenStoreUnavailable, err)
	}
}

// FailureReason returns a message suitable for showing to the person signing in.
// It never reveals whether an email is registered.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Incorrect email or password."
	case errors.Is(err, ErrBackupCodeRejected):
		return "Backup code already used or invalid."
	case errors.Is(err, ErrSecondFactorRejected):
		return "Invalid verification code."
	case errors.Is(err, ErrChallengeExpired):
		return "Your verification session expired. Please sign in again."
	case errors.Is(err, ErrChallengeAttemptsExceeded):
		return "Too many invalid codes. Please sign in again."
	case errors.Is(err, ErrNoChallenge):
		return "There is no pending verification. Please sign in again."
	case errors.Is(err, ErrNetworkUnavailable):
		return "Unable to reach the server. Check your connection and try again."
	case errors.Is(err, ErrServerError):
		return "The server could not complete the request. Please try again later."
	case errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrNotAuthenticated):
		return "Your session has ended. Please sign in again."
	case errors.Is(err, ErrAlreadyAuthenticated):
		return "You are already signed in."
	case errors.Is(err, ErrOperationInFlight):
		return "A request is already in progress."
	case errors.Is(err, ErrStaleResponse):
		return "The request was superseded by a newer one."
	case errors.Is(err, ErrTokenStoreUnavailable):
		return "Session storage is unavailable."
	default:
		return "Something went wrong. Please try again."
	}
}
