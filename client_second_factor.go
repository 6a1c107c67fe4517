package goAuthClient

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// StartSetup asks the authority for enrollment material. The result is relayed for
// display and not kept by the client.
func (c *Client) StartSetup(ctx context.Context) (*TOTPSetup, error) {
	bearer, user, err := c.lifecycleBearer(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	setup, err := c.authority.StartSetup(ctx, bearer)
	c.metrics.Observe(MetricAuthorityLatency, time.Since(start))
	if err != nil {
		err = c.lifecycleFailed(ctx, bearer, err)
		c.emitAudit(ctx, auditSecondFactorSetup, user, false, err, nil)
		return nil, err
	}

	c.emitAudit(ctx, auditSecondFactorSetup, user, true, nil, nil)
	return &TOTPSetup{Secret: setup.Secret, QRPayload: setup.QRPayload}, nil
}

// VerifySetup activates the second factor with the first code from the
// authenticator app. The returned batch can be revealed exactly once; the authority
// never returns it again.
func (c *Client) VerifySetup(ctx context.Context, code string) (*BackupCodes, error) {
	bearer, user, err := c.lifecycleBearer(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	codes, err := c.authority.VerifySetup(ctx, bearer, code)
	c.metrics.Observe(MetricAuthorityLatency, time.Since(start))
	if err != nil {
		err = c.lifecycleFailed(ctx, bearer, err)
		c.emitAudit(ctx, auditSecondFactorEnrollFail, user, false, err, nil)
		return nil, err
	}
	if len(codes) == 0 {
		c.emitAudit(ctx, auditSecondFactorEnrollFail, user, false, ErrServerError, nil)
		return nil, ErrServerError
	}

	c.metrics.Inc(MetricSecondFactorEnrolled)
	c.emitAudit(ctx, auditSecondFactorEnrolled, user, true, nil, nil)
	return newBackupCodes(codes), nil
}

// Disable turns the second factor off for the signed-in account.
func (c *Client) Disable(ctx context.Context) error {
	bearer, user, err := c.lifecycleBearer(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	err = c.authority.Disable(ctx, bearer)
	c.metrics.Observe(MetricAuthorityLatency, time.Since(start))
	if err != nil {
		err = c.lifecycleFailed(ctx, bearer, err)
		c.emitAudit(ctx, auditSecondFactorDisableFail, user, false, err, nil)
		return err
	}

	c.metrics.Inc(MetricSecondFactorDisabled)
	c.emitAudit(ctx, auditSecondFactorDisabled, user, true, nil, nil)
	return nil
}

func (c *Client) lifecycleBearer(ctx context.Context) (string, *User, error) {
	bearer, err := c.AccessToken(ctx)
	if err != nil {
		return "", nil, err
	}
	s := c.Session()
	if !s.Authenticated() {
		return "", nil, ErrNotAuthenticated
	}
	return bearer, s.User, nil
}

func (c *Client) lifecycleFailed(ctx context.Context, bearer string, err error) error {
	mapped := mapAuthorityError(err)
	if errors.Is(mapped, ErrUnauthorized) {
		c.CredentialRejected(ctx, bearer)
	}
	c.logger.InfoContext(ctx, "goAuthClient: second factor lifecycle call failed", slog.Any("error", mapped))
	return mapped
}
