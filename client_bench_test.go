package goAuthClient

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func BenchmarkAccessToken(b *testing.B) {
	srv := seedAuthority(b)
	c, _ := newTestClient(b, srv.URL)
	if _, err := c.SubmitCredentials(context.Background(), customerEmail, testPassword); err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.AccessToken(context.Background()); err != nil {
			b.Fatalf("access token failed: %v", err)
		}
	}
}

func BenchmarkAccessTokenParallel(b *testing.B) {
	srv := seedAuthority(b)
	c, _ := newTestClient(b, srv.URL)
	if _, err := c.SubmitCredentials(context.Background(), customerEmail, testPassword); err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := c.AccessToken(context.Background()); err != nil {
				b.Errorf("access token failed: %v", err)
				return
			}
		}
	})
}

func BenchmarkBootRedis(b *testing.B) {
	srv := seedAuthority(b)
	rdb := newBenchmarkRedis(b)
	rs := store.NewRedisStore(rdb, "bench", "default")

	seed, _ := newTestClient(b, srv.URL, withStore(rs))
	if _, err := seed.SubmitCredentials(context.Background(), customerEmail, testPassword); err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, err := New().
			WithConfig(testConfig(srv.URL)).
			WithTokenStore(rs).
			WithLogger(quietLogger()).
			Build()
		if err != nil {
			b.Fatalf("build failed: %v", err)
		}
		if err := c.Boot(context.Background()); err != nil {
			b.Fatalf("boot failed: %v", err)
		}
		if !c.Session().Authenticated() {
			b.Fatal("boot did not restore the session")
		}
		_ = c.Close()
	}
}

func BenchmarkLogin(b *testing.B) {
	srv := seedAuthority(b)
	c, _ := newTestClient(b, srv.URL)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.SubmitCredentials(context.Background(), customerEmail, testPassword); err != nil {
			b.Fatalf("login failed: %v", err)
		}
		_ = c.Logout(context.Background())
	}
}

func BenchmarkNextRoute(b *testing.B) {
	srv := seedAuthority(b)
	c, _ := newTestClient(b, srv.URL)
	candidates := []string{"/customer/accounts?tab=2", "//evil.example", "https://evil.example/x", ""}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.NextRoute(candidates[i%len(candidates)])
	}
}

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricLoginSuccess)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricLoginSuccess)
	}
}

var mixedHotMetricIDs = [...]MetricID{
	MetricLoginSuccess,
	MetricLoginFailure,
	MetricSecondFactorRequired,
	MetricSecondFactorSuccess,
	MetricRehydrateSuccess,
	MetricLogout,
}

func BenchmarkMetricsIncMixedParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(mixedHotMetricIDs[idx])
			idx++
			if idx == len(mixedHotMetricIDs) {
				idx = 0
			}
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 12 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricAuthorityLatency, d)
		}
	})
}

func newBenchmarkRedis(tb testing.TB) *redis.Client {
	tb.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		tb.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb
}
