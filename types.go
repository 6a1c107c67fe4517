package goAuthClient

import (
	"log/slog"
	"strings"
	"time"
)

// Role is the account class carried in a credential. It decides the landing route.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// ParseRole matches s case-insensitively against the known roles.
func ParseRole(s string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(RoleAdmin):
		return RoleAdmin, true
	case string(RoleCustomer):
		return RoleCustomer, true
	default:
		return "", false
	}
}

// State is the position of the session state machine.
type State int

const (
	StateAnonymous State = iota
	StateRehydrating
	StateAwaitingSecondFactor
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateRehydrating:
		return "rehydrating"
	case StateAwaitingSecondFactor:
		return "awaiting_second_factor"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// User is the session-level identity built from credential claims and, when
// needed, the authority's profile.
type User struct {
	ID         string
	Email      string
	Role       Role
	CustomerID string
	Name       string
}

// SecondFactorChallenge is the pending second step of a login.
//
// TempToken only authorizes SubmitSecondFactor. It is redacted from slog output.
type SecondFactorChallenge struct {
	TempToken      string
	CandidateEmail string
	CandidateUser  User
	IssuedAt       time.Time
	Attempts       int
}

// LogValue implements slog.LogValuer.
func (c SecondFactorChallenge) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("candidate_email", c.CandidateEmail),
		slog.Time("issued_at", c.IssuedAt),
		slog.Int("attempts", c.Attempts),
		slog.String("temp_token", "[redacted]"),
	)
}

// Session is a point-in-time copy of the state machine.
type Session struct {
	State     State
	User      *User
	Challenge *SecondFactorChallenge
	// Loading is true while a stored credential is being rehydrated.
	Loading bool
}

// Authenticated reports whether the snapshot holds an established session.
func (s Session) Authenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

// LoginResult is returned by SubmitCredentials. When SecondFactorRequired is set the
// session is waiting for SubmitSecondFactor and User is nil.
type LoginResult struct {
	SecondFactorRequired bool
	User                 *User
	Challenge            *SecondFactorChallenge
}

// SecondFactorSubmission is one attempt at the pending challenge. An empty TempToken
// means the held challenge.
type SecondFactorSubmission struct {
	Code         string
	TempToken    string
	IsBackupCode bool
}

// LogValue implements slog.LogValuer.
func (s SecondFactorSubmission) LogValue() slog.Value {
	return slog.GroupValue(slog.Bool("backup_code", s.IsBackupCode))
}

// TOTPSetup is enrollment material relayed from the authority for display.
type TOTPSetup struct {
	Secret    string
	QRPayload string
}

// LogValue implements slog.LogValuer.
func (s TOTPSetup) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}

// StateChange describes one transition of the state machine.
type StateChange struct {
	From   State
	To     State
	Reason string
}

// StateListener observes transitions. It runs synchronously after the transition
// is applied, outside the client's lock.
type StateListener func(StateChange)
