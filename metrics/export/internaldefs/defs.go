package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// CounterDef names one client counter.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// HistogramDef names one client latency histogram.
type HistogramDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: goAuthClient.MetricLoginSuccess, Name: "goauth_client_login_success_total", Help: "Password logins that established a session directly."},
	{ID: goAuthClient.MetricLoginFailure, Name: "goauth_client_login_failure_total", Help: "Rejected or failed password logins."},
	{ID: goAuthClient.MetricSecondFactorRequired, Name: "goauth_client_second_factor_required_total", Help: "Logins answered with a second-factor challenge."},
	{ID: goAuthClient.MetricSecondFactorSuccess, Name: "goauth_client_second_factor_success_total", Help: "Completed second-factor challenges."},
	{ID: goAuthClient.MetricSecondFactorFailure, Name: "goauth_client_second_factor_failure_total", Help: "Rejected second-factor codes."},
	{ID: goAuthClient.MetricBackupCodeUsed, Name: "goauth_client_backup_code_used_total", Help: "Challenges completed with a backup code."},
	{ID: goAuthClient.MetricBackupCodeRejected, Name: "goauth_client_backup_code_rejected_total", Help: "Rejected backup codes."},
	{ID: goAuthClient.MetricChallengeExpired, Name: "goauth_client_challenge_expired_total", Help: "Challenges ended by expiry."},
	{ID: goAuthClient.MetricChallengeAttemptsExceeded, Name: "goauth_client_challenge_attempts_exceeded_total", Help: "Challenges ended by the attempt cap."},
	{ID: goAuthClient.MetricChallengeCancelled, Name: "goauth_client_challenge_cancelled_total", Help: "Challenges discarded by the user."},
	{ID: goAuthClient.MetricRehydrateSuccess, Name: "goauth_client_rehydrate_success_total", Help: "Boots that restored a stored session."},
	{ID: goAuthClient.MetricRehydrateDiscarded, Name: "goauth_client_rehydrate_discarded_total", Help: "Boots that discarded a malformed or expired credential."},
	{ID: goAuthClient.MetricIdentityFallback, Name: "goauth_client_identity_fallback_total", Help: "Profile lookups made to complete an identity."},
	{ID: goAuthClient.MetricIdentityFallbackFailed, Name: "goauth_client_identity_fallback_failed_total", Help: "Profile lookups that failed."},
	{ID: goAuthClient.MetricCredentialInvalidated, Name: "goauth_client_credential_invalidated_total", Help: "Sessions dropped after expiry, removal or rejection."},
	{ID: goAuthClient.MetricLogout, Name: "goauth_client_logout_total", Help: "Logouts that ended a session or challenge."},
	{ID: goAuthClient.MetricStaleResponseDropped, Name: "goauth_client_stale_response_dropped_total", Help: "Authority responses discarded because the session moved on."},
	{ID: goAuthClient.MetricOperationInFlightRejected, Name: "goauth_client_operation_in_flight_rejected_total", Help: "Submissions rejected while another was in flight."},
	{ID: goAuthClient.MetricSecondFactorEnrolled, Name: "goauth_client_second_factor_enrolled_total", Help: "Successful second-factor activations."},
	{ID: goAuthClient.MetricSecondFactorDisabled, Name: "goauth_client_second_factor_disabled_total", Help: "Successful second-factor deactivations."},
	{ID: goAuthClient.MetricUnsafeRedirectRejected, Name: "goauth_client_unsafe_redirect_rejected_total", Help: "Redirect targets replaced by the role default."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAuthClient.MetricAuthorityLatency, Name: "goauth_client_authority_latency_seconds", Help: "Authority round-trip latency."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const (
	AuditDroppedName = "goauth_client_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBounds are the finite upper bounds in seconds; a final +Inf bucket follows.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters without
// native histograms.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
