package goAuthClient

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one client counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts password logins that established a session directly.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected or failed password logins.
	MetricLoginFailure
	// MetricSecondFactorRequired counts logins answered with a challenge.
	MetricSecondFactorRequired
	// MetricSecondFactorSuccess counts completed challenges.
	MetricSecondFactorSuccess
	// MetricSecondFactorFailure counts rejected second-factor codes.
	MetricSecondFactorFailure
	// MetricBackupCodeUsed counts challenges completed with a backup code.
	MetricBackupCodeUsed
	// MetricBackupCodeRejected counts rejected backup codes.
	MetricBackupCodeRejected
	// MetricChallengeExpired counts challenges ended by expiry.
	MetricChallengeExpired
	// MetricChallengeAttemptsExceeded counts challenges ended by the attempt cap.
	MetricChallengeAttemptsExceeded
	// MetricChallengeCancelled counts CancelSecondFactor calls that discarded a challenge.
	MetricChallengeCancelled
	// MetricRehydrateSuccess counts boots that restored a session.
	MetricRehydrateSuccess
	// MetricRehydrateDiscarded counts boots that cleared a malformed or expired credential.
	MetricRehydrateDiscarded
	// MetricIdentityFallback counts profile lookups made to complete an identity.
	MetricIdentityFallback
	// MetricIdentityFallbackFailed counts profile lookups that failed.
	MetricIdentityFallbackFailed
	// MetricCredentialInvalidated counts sessions dropped after expiry or a 401.
	MetricCredentialInvalidated
	// MetricLogout counts logouts that ended a session or challenge.
	MetricLogout
	// MetricStaleResponseDropped counts responses discarded by the stale-response guard.
	MetricStaleResponseDropped
	// MetricOperationInFlightRejected counts submissions rejected by the single-flight guard.
	MetricOperationInFlightRejected
	// MetricSecondFactorEnrolled counts successful VerifySetup calls.
	MetricSecondFactorEnrolled
	// MetricSecondFactorDisabled counts successful Disable calls.
	MetricSecondFactorDisabled
	// MetricUnsafeRedirectRejected counts redirect candidates replaced by the role default.
	MetricUnsafeRedirectRejected
	// MetricAuthorityLatency is the latency histogram of authority round-trips.
	MetricAuthorityLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and one latency histogram. A nil or disabled
// Metrics ignores writes.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histogram     metricHistogram
}

// MetricsSnapshot is a copy of all counters and histogram buckets.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the authority latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricAuthorityLatency {
		return
	}
	atomic.AddUint64(&m.histogram.buckets[bucketIndex(d)], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies the current values. A disabled Metrics yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricAuthorityLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histogram.buckets[i])
		}
		s.Histograms[MetricAuthorityLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
