package goAuthClient

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/authority"
	"github.com/MrEthical07/goAuthClient/store"
	"github.com/MrEthical07/goAuthClient/token"
)

func TestMapAuthorityError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{authority.ErrInvalidCredentials, ErrInvalidCredentials},
		{authority.ErrChallengeExpired, ErrChallengeExpired},
		{authority.ErrSecondFactorRejected, ErrSecondFactorRejected},
		{authority.ErrUnauthorized, ErrUnauthorized},
		{fmt.Errorf("%w: dial tcp: connection refused", authority.ErrNetwork), ErrNetworkUnavailable},
		{authority.ErrServer, ErrServerError},
		{errors.New("surprise"), ErrServerError},
	}

	for _, tc := range tests {
		if got := mapAuthorityError(tc.in); !errors.Is(got, tc.want) {
			t.Fatalf("mapAuthorityError(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if mapAuthorityError(nil) != nil {
		t.Fatal("nil must map to nil")
	}
}

func TestMapDecodeAndStoreErrors(t *testing.T) {
	if _, err := token.Decode("garbage", time.Now()); !errors.Is(mapDecodeError(err), ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", mapDecodeError(err))
	}
	if err := mapStoreError(store.ErrCorrupt); !errors.Is(err, ErrTokenStoreUnavailable) || !errors.Is(err, store.ErrCorrupt) {
		t.Fatalf("expected corrupt store to keep both sentinels, got %v", err)
	}
	if err := mapStoreError(errors.New("disk full")); !errors.Is(err, ErrTokenStoreUnavailable) {
		t.Fatalf("expected ErrTokenStoreUnavailable, got %v", err)
	}
}

func TestFailureReasonIsDistinctPerCategory(t *testing.T) {
	errs := []error{
		ErrInvalidCredentials,
		ErrBackupCodeRejected,
		ErrSecondFactorRejected,
		ErrChallengeExpired,
		ErrChallengeAttemptsExceeded,
		ErrNetworkUnavailable,
		ErrServerError,
		ErrExpiredToken,
	}
	seen := map[string]error{}
	for _, err := range errs {
		reason := FailureReason(err)
		if reason == "" {
			t.Fatalf("empty reason for %v", err)
		}
		if prev, ok := seen[reason]; ok {
			t.Fatalf("%v and %v share reason %q", prev, err, reason)
		}
		seen[reason] = err
	}
	if FailureReason(nil) != "" {
		t.Fatal("nil error must have no reason")
	}
	wrapped := fmt.Errorf("%w: %w", ErrNetworkUnavailable, errors.New("timeout"))
	if FailureReason(wrapped) != FailureReason(ErrNetworkUnavailable) {
		t.Fatal("wrapped errors must keep their reason")
	}
}
