package goAuthClient

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/goAuthClient/authority"
)

// SubmitCredentials runs the first login step.
//
// A direct success stores the credential and enters StateAuthenticated. When the
// account needs a second factor the challenge is held, the session enters
// StateAwaitingSecondFactor and the store is left untouched. On failure the session
// stays in StateAnonymous and the error is one of ErrInvalidCredentials,
// ErrNetworkUnavailable or ErrServerError.
//
// A pending challenge is discarded by a new submission.
func (c *Client) SubmitCredentials(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	epoch, err := c.begin(func() (StateChange, error) {
		switch c.state {
		case StateAuthenticated:
			return StateChange{}, ErrAlreadyAuthenticated
		case StateRehydrating:
			return StateChange{}, ErrOperationInFlight
		case StateAwaitingSecondFactor:
			c.challenge = nil
			return c.setStateLocked(StateAnonymous, "challenge_superseded"), nil
		}
		return StateChange{}, nil
	})
	if err != nil {
		return nil, err
	}
	defer c.end(epoch)

	start := time.Now()
	outcome, err := c.authority.Login(ctx, email, password)
	c.metrics.Observe(MetricAuthorityLatency, time.Since(start))
	if err != nil {
		mapped := mapAuthorityError(err)
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, auditLoginFailure, nil, false, mapped, nil)
		c.logger.InfoContext(ctx, "goAuthClient: login failed", slog.Any("error", mapped))
		if c.currentEpoch() != epoch {
			return nil, c.stale(ctx, "login")
		}
		return nil, mapped
	}

	switch o := outcome.(type) {
	case authority.Authenticated:
		user, err := c.establish(ctx, epoch, o.AccessToken, "login")
		if err != nil {
			if !errors.Is(err, ErrStaleResponse) {
				c.metrics.Inc(MetricLoginFailure)
				c.emitAudit(ctx, auditLoginFailure, nil, false, err, nil)
			}
			return nil, err
		}
		c.metrics.Inc(MetricLoginSuccess)
		c.emitAudit(ctx, auditLoginSuccess, user, true, nil, nil)
		return &LoginResult{User: user}, nil

	case authority.ChallengeIssued:
		return c.holdChallenge(ctx, epoch, email, o)

	default:
		c.metrics.Inc(MetricLoginFailure)
		return nil, ErrServerError
	}
}

func (c *Client) holdChallenge(ctx context.Context, epoch uint64, email string, o authority.ChallengeIssued) (*LoginResult, error) {
	candidate := User{
		ID:         o.User.ID,
		Email:      o.User.Email,
		CustomerID: o.User.CustomerID,
		Name:       o.User.Name,
	}
	if candidate.Email == "" {
		candidate.Email = email
	}
	if role, ok := ParseRole(o.User.Role); ok {
		candidate.Role = role
	}

	challenge := SecondFactorChallenge{
		TempToken:      o.TempToken,
		CandidateEmail: email,
		CandidateUser:  candidate,
		IssuedAt:       c.now(),
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil, c.stale(ctx, "login")
	}
	held := challenge
	c.challenge = &held
	c.user = nil
	change := c.setStateLocked(StateAwaitingSecondFactor, "second_factor_required")
	c.epoch++
	c.mu.Unlock()

	c.notify(change)
	c.metrics.Inc(MetricSecondFactorRequired)
	c.emitAudit(ctx, auditSecondFactorRequired, &candidate, true, nil, nil)
	c.logger.DebugContext(ctx, "goAuthClient: second factor required", slog.Any("challenge", challenge))
	return &LoginResult{SecondFactorRequired: true, Challenge: &challenge}, nil
}

// SubmitSecondFactor completes the pending challenge.
//
// On success the credential is stored, the challenge is discarded and the session
// enters StateAuthenticated. A rejected code keeps the challenge for another
// attempt and returns ErrSecondFactorRejected, or ErrBackupCodeRejected for a
// backup code. An expired challenge, or one that reached
// Config.SecondFactor.MaxAttempts or outlived Config.SecondFactor.ChallengeTTL,
// returns the session to StateAnonymous. Network and server failures keep the
// challenge.
func (c *Client) SubmitSecondFactor(ctx context.Context, sub SecondFactorSubmission) (*User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	var (
		tempToken   string
		candidate   User
		expiredHere bool
	)
	epoch, err := c.begin(func() (StateChange, error) {
		if c.state != StateAwaitingSecondFactor || c.challenge == nil {
			return StateChange{}, ErrNoChallenge
		}
		if sub.TempToken != "" && subtle.ConstantTimeCompare([]byte(sub.TempToken), []byte(c.challenge.TempToken)) != 1 {
			return StateChange{}, ErrNoChallenge
		}
		candidate = c.challenge.CandidateUser
		if !c.now().Before(c.challenge.IssuedAt.Add(c.config.SecondFactor.ChallengeTTL)) {
			expiredHere = true
			c.challenge = nil
			change := c.setStateLocked(StateAnonymous, "challenge_expired")
			c.epoch++
			return change, ErrChallengeExpired
		}
		tempToken = c.challenge.TempToken
		return StateChange{}, nil
	})
	if err != nil {
		if expiredHere {
			c.metrics.Inc(MetricChallengeExpired)
			c.emitAudit(ctx, auditChallengeExpired, &candidate, false, err, map[string]string{"source": "local"})
		}
		return nil, err
	}
	defer c.end(epoch)

	start := time.Now()
	raw, err := c.authority.VerifySecondFactor(ctx, authority.VerifyRequest{
		Code:         sub.Code,
		TempToken:    tempToken,
		IsBackupCode: sub.IsBackupCode,
	})
	c.metrics.Observe(MetricAuthorityLatency, time.Since(start))
	if err != nil {
		return nil, c.secondFactorFailed(ctx, epoch, sub, candidate, mapAuthorityError(err))
	}

	user, err := c.establish(ctx, epoch, raw, "second_factor_verified")
	if err != nil {
		if !errors.Is(err, ErrStaleResponse) {
			c.metrics.Inc(MetricSecondFactorFailure)
			c.emitAudit(ctx, auditSecondFactorFailure, &candidate, false, err, nil)
		}
		return nil, err
	}

	c.metrics.Inc(MetricSecondFactorSuccess)
	if sub.IsBackupCode {
		c.metrics.Inc(MetricBackupCodeUsed)
	}
	c.emitAudit(ctx, auditSecondFactorSuccess, user, true, nil, map[string]string{"backup_code": strconv.FormatBool(sub.IsBackupCode)})
	return user, nil
}

func (c *Client) secondFactorFailed(ctx context.Context, epoch uint64, sub SecondFactorSubmission, candidate User, mapped error) error {
	c.mu.Lock()
	if c.epoch != epoch || c.challenge == nil {
		c.mu.Unlock()
		return c.stale(ctx, "second_factor")
	}

	var (
		change   StateChange
		result   = mapped
		exceeded bool
		expired  bool
	)
	switch {
	case errors.Is(mapped, ErrChallengeExpired):
		expired = true
		c.challenge = nil
		change = c.setStateLocked(StateAnonymous, "challenge_expired")
		c.epoch++
	case errors.Is(mapped, ErrSecondFactorRejected):
		c.challenge.Attempts++
		if c.challenge.Attempts >= c.config.SecondFactor.MaxAttempts {
			exceeded = true
			c.challenge = nil
			change = c.setStateLocked(StateAnonymous, "challenge_attempts_exceeded")
			c.epoch++
			result = ErrChallengeAttemptsExceeded
		} else if sub.IsBackupCode {
			result = ErrBackupCodeRejected
		}
	}
	c.mu.Unlock()

	c.notify(change)

	meta := map[string]string{"backup_code": strconv.FormatBool(sub.IsBackupCode)}
	switch {
	case expired:
		c.metrics.Inc(MetricChallengeExpired)
		c.emitAudit(ctx, auditChallengeExpired, &candidate, false, result, map[string]string{"source": "authority"})
	case exceeded:
		c.metrics.Inc(MetricSecondFactorFailure)
		c.metrics.Inc(MetricChallengeAttemptsExceeded)
		c.emitAudit(ctx, auditSecondFactorFailure, &candidate, false, result, meta)
	default:
		c.metrics.Inc(MetricSecondFactorFailure)
		if sub.IsBackupCode && errors.Is(result, ErrBackupCodeRejected) {
			c.metrics.Inc(MetricBackupCodeRejected)
		}
		c.emitAudit(ctx, auditSecondFactorFailure, &candidate, false, result, meta)
	}
	c.logger.InfoContext(ctx, "goAuthClient: second factor failed",
		slog.Any("submission", sub),
		slog.Any("error", result),
	)
	return result
}

func (c *Client) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}
