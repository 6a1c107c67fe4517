package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultMaxTokenBytes = 8 << 10

var (
	// ErrMalformed reports a credential that cannot be parsed into complete claims.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired reports a well-formed credential whose exp is not in the future.
	ErrExpired = errors.New("token expired")
)

// Reason classifies a decode failure.
type Reason uint8

const (
	// ReasonMalformed means the envelope or its claims could not be read.
	ReasonMalformed Reason = iota + 1
	// ReasonExpired means the claims were read but exp <= now.
	ReasonExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonMalformed:
		return "malformed"
	case ReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// DecodeError is the tagged failure returned by [Decode]. Detail never contains
// token material.
type DecodeError struct {
	Reason Reason
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return "token " + e.Reason.String()
	}
	return "token " + e.Reason.String() + ": " + e.Detail
}

// Is lets errors.Is match [ErrMalformed] and [ErrExpired].
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Reason == ReasonMalformed
	case ErrExpired:
		return e.Reason == ReasonExpired
	}
	return false
}

// Claims are the identity fields carried by an access credential.
type Claims struct {
	SubjectID  string
	Email      string
	Role       string
	CustomerID string
	ExpiresAt  time.Time
	IssuedAt   time.Time
}

// Expired reports whether the claims are no longer usable at now. Comparison is done
// in whole seconds, matching the numeric exp claim.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt.Unix() <= now.Unix()
}

type wireClaims struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	CustomerID  string `json:"customerId,omitempty"`
	CustomerID2 string `json:"customer_id,omitempty"`
	UserID      string `json:"userId,omitempty"`
	ID          string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// Config controls a [Decoder].
type Config struct {
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// MaxTokenBytes bounds the accepted credential length. Defaults to 8 KiB.
	MaxTokenBytes int
}

// Decoder parses credentials against a clock.
//
// A Decoder is immutable and safe for concurrent use.
type Decoder struct {
	clock    func() time.Time
	maxBytes int
	parser   *jwt.Parser
}

// NewDecoder returns a Decoder for cfg.
func NewDecoder(cfg Config) *Decoder {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MaxTokenBytes <= 0 {
		cfg.MaxTokenBytes = defaultMaxTokenBytes
	}
	return &Decoder{
		clock:    cfg.Clock,
		maxBytes: cfg.MaxTokenBytes,
		parser:   jwt.NewParser(jwt.WithoutClaimsValidation()),
	}
}

// Decode parses raw using the decoder's clock.
func (d *Decoder) Decode(raw string) (Claims, error) {
	return d.decodeAt(raw, d.clock())
}

// Decode parses raw and evaluates expiry against now. It never panics; every failure
// is a *DecodeError.
func Decode(raw string, now time.Time) (Claims, error) {
	return defaultDecoder.decodeAt(raw, now)
}

var defaultDecoder = NewDecoder(Config{})

func (d *Decoder) decodeAt(raw string, now time.Time) (claims Claims, err error) {
	defer func() {
		// decode paths fail closed
		if r := recover(); r != nil {
			claims = Claims{}
			err = malformed("parser panic")
		}
	}()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, malformed("empty")
	}
	if len(raw) > d.maxBytes {
		return Claims{}, malformed("too large")
	}
	if strings.Count(raw, ".") != 2 {
		return Claims{}, malformed("expected three segments")
	}

	wire := &wireClaims{}
	tok, _, perr := d.parser.ParseUnverified(raw, wire)
	if perr != nil {
		return Claims{}, malformed(parseDetail(perr))
	}
	if tok.Method == nil || tok.Method.Alg() == jwt.SigningMethodNone.Alg() {
		return Claims{}, malformed("unsigned envelope")
	}

	claims = Claims{
		SubjectID:  firstNonEmpty(wire.Subject, wire.UserID, wire.ID),
		Email:      strings.TrimSpace(wire.Email),
		Role:       strings.TrimSpace(wire.Role),
		CustomerID: firstNonEmpty(wire.CustomerID, wire.CustomerID2),
	}
	switch {
	case claims.SubjectID == "":
		return Claims{}, malformed("missing subject")
	case claims.Email == "":
		return Claims{}, malformed("missing email")
	case claims.Role == "":
		return Claims{}, malformed("missing role")
	case wire.ExpiresAt == nil:
		return Claims{}, malformed("missing exp")
	}

	claims.ExpiresAt = wire.ExpiresAt.Time.Truncate(time.Second)
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time.Truncate(time.Second)
	}
	if claims.Expired(now) {
		return Claims{}, &DecodeError{Reason: ReasonExpired}
	}
	return claims, nil
}

func malformed(detail string) error {
	return &DecodeError{Reason: ReasonMalformed, Detail: detail}
}

func parseDetail(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "envelope"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unknown algorithm"
	default:
		return "claims"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
