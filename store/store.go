package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable reports a backend I/O failure.
	ErrUnavailable = errors.New("token store unavailable")
	// ErrCorrupt reports a persisted record that cannot be decoded.
	ErrCorrupt = errors.New("token store record corrupt")
	// ErrEmptyToken is returned by Set for an empty credential.
	ErrEmptyToken = errors.New("empty token")
)

// TokenStore holds exactly one credential.
//
// Implementations must make Clear atomic with respect to concurrent Get: a reader
// observes either the previous credential or no credential, never a partial record.
type TokenStore interface {
	// Get returns the stored credential and true, or "" and false when the slot is empty.
	Get(ctx context.Context) (string, bool, error)
	// Set replaces the slot. expiresAt is advisory and may be used as a TTL.
	Set(ctx context.Context, token string, expiresAt time.Time) error
	// Clear empties the slot. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}

// Watchable is implemented by stores that can report changes made by other processes.
type Watchable interface {
	// Watch invokes onChange after the persisted slot changes, until ctx is done.
	Watch(ctx context.Context, onChange func()) error
}
