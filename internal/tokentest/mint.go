// Package tokentest mints signed access credentials for tests and local stubs.
package tokentest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var signingKey = []byte("goauthclient-test-signing-key-0123456789")

// Claims describes a credential to mint. Empty string fields are omitted from the
// payload so tests can build incomplete envelopes.
type Claims struct {
	Subject    string
	Email      string
	Role       string
	CustomerID string
	ExpiresAt  time.Time
	IssuedAt   time.Time
}

// Mint signs c with a fixed HS256 key.
func Mint(c Claims) string {
	payload := jwt.MapClaims{}
	if c.Subject != "" {
		payload["sub"] = c.Subject
	}
	if c.Email != "" {
		payload["email"] = c.Email
	}
	if c.Role != "" {
		payload["role"] = c.Role
	}
	if c.CustomerID != "" {
		payload["customerId"] = c.CustomerID
	}
	if !c.ExpiresAt.IsZero() {
		payload["exp"] = c.ExpiresAt.Unix()
	}
	if !c.IssuedAt.IsZero() {
		payload["iat"] = c.IssuedAt.Unix()
	}
	return MintMap(payload)
}

// MintMap signs an arbitrary claim set.
func MintMap(payload jwt.MapClaims) string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(signingKey)
	if err != nil {
		panic("tokentest: sign: " + err.Error())
	}
	return signed
}

// For mints a credential valid for ttl from now.
func For(subject, email, role, customerID string, ttl time.Duration) string {
	now := time.Now()
	return Mint(Claims{
		Subject:    subject,
		Email:      email,
		Role:       role,
		CustomerID: customerID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	})
}
