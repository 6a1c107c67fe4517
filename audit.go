package goAuthClient

import (
	"context"
	"io"
	"log/slog"

	"github.com/MrEthical07/goAuthClient/authority"
	"github.com/MrEthical07/goAuthClient/internal/audit"
)

// AuditEvent is one audit record. It never carries a credential.
type AuditEvent = audit.Event

// AuditSink receives audit events from the client's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs audit events through a slog.Logger.
type SlogSink = audit.SlogSink

// NewChannelSink returns a sink that buffers events in a channel of size buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging events through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}

// Audit event types.
const (
	auditLoginSuccess            = "login_success"
	auditLoginFailure            = "login_failure"
	auditSecondFactorRequired    = "second_factor_required"
	auditSecondFactorSuccess     = "second_factor_success"
	auditSecondFactorFailure     = "second_factor_failure"
	auditChallengeExpired        = "challenge_expired"
	auditChallengeCancelled      = "challenge_cancelled"
	auditRehydrateSuccess        = "rehydrate_success"
	auditRehydrateDiscarded      = "rehydrate_discarded"
	auditIdentityFallbackFailed  = "identity_fallback_failed"
	auditCredentialInvalidated   = "credential_invalidated"
	auditCredentialAdopted       = "credential_adopted"
	auditLogout                  = "logout"
	auditSecondFactorSetup       = "second_factor_setup_started"
	auditSecondFactorEnrolled    = "second_factor_enrolled"
	auditSecondFactorEnrollFail  = "second_factor_enroll_failure"
	auditSecondFactorDisabled    = "second_factor_disabled"
	auditSecondFactorDisableFail = "second_factor_disable_failure"
)

func (c *Client) emitAudit(ctx context.Context, eventType string, user *User, success bool, err error, metadata map[string]string) {
	if c == nil || c.audit == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	event := AuditEvent{
		Timestamp: c.now(),
		EventType: eventType,
		Success:   success,
		Metadata:  metadata,
	}
	if user != nil {
		event.UserID = user.ID
		event.Role = string(user.Role)
	}
	if id, ok := authority.RequestIDFromContext(ctx); ok {
		event.RequestID = id
	}
	if err != nil {
		event.Error = err.Error()
	}
	c.audit.Emit(ctx, event)
}

// AuditDropped is the number of audit events discarded because the buffer was full.
func (c *Client) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot copies the client's counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return c.metrics.Snapshot()
}
