package goAuthClient

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/authoritytest"
	"github.com/MrEthical07/goAuthClient/store"
)

const (
	adminEmail    = "admin@bank.test"
	customerEmail = "customer@bank.test"
	twoFAEmail    = "mfa@bank.test"
	testPassword  = "correct-password-123"
	testTOTP      = "123456"
)

func seedAuthority(t testing.TB) *authoritytest.Server {
	t.Helper()

	srv := authoritytest.NewServer(t)
	srv.AddUser(authoritytest.User{
		ID:       "admin-1",
		Email:    adminEmail,
		Password: testPassword,
		Role:     "ADMIN",
		Name:     "Ada Admin",
	})
	srv.AddUser(authoritytest.User{
		ID:         "cust-1",
		Email:      customerEmail,
		Password:   testPassword,
		Role:       "CUSTOMER",
		CustomerID: "C-100",
		Name:       "Carla Customer",
		TOTPCode:   testTOTP,
	})
	srv.AddUser(authoritytest.User{
		ID:           "cust-2",
		Email:        twoFAEmail,
		Password:     testPassword,
		Role:         "CUSTOMER",
		CustomerID:   "C-200",
		SecondFactor: true,
		TOTPCode:     testTOTP,
		BackupCodes:  []string{"AAAA-1111", "BBBB-2222", "CCCC-3333"},
	})
	return srv
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.Authority.BaseURL = baseURL
	cfg.Authority.Timeout = 2 * time.Second
	cfg.Store.Backend = StoreMemory
	cfg.Metrics.Enabled = true
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testClientOption func(*Builder)

func withStore(s store.TokenStore) testClientOption {
	return func(b *Builder) { b.WithTokenStore(s) }
}

func withClock(clock func() time.Time) testClientOption {
	return func(b *Builder) { b.WithClock(clock) }
}

func withConfig(mutate func(*Config)) testClientOption {
	return func(b *Builder) {
		cfg := b.config
		mutate(&cfg)
		b.WithConfig(cfg)
	}
}

func newTestClient(t testing.TB, baseURL string, opts ...testClientOption) (*Client, *store.MemoryStore) {
	t.Helper()

	ms := store.NewMemoryStore()
	b := New().WithConfig(testConfig(baseURL)).WithTokenStore(ms).WithLogger(quietLogger())
	for _, opt := range opts {
		opt(b)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, ms
}

func storedToken(t *testing.T, s store.TokenStore) (string, bool) {
	t.Helper()

	raw, ok, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("store Get failed: %v", err)
	}
	return raw, ok
}

func loginWithChallenge(t *testing.T, c *Client) *SecondFactorChallenge {
	t.Helper()

	res, err := c.SubmitCredentials(context.Background(), twoFAEmail, testPassword)
	if err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}
	if !res.SecondFactorRequired || res.Challenge == nil {
		t.Fatalf("expected second factor challenge, got %+v", res)
	}
	return res.Challenge
}

func waitEntered(t *testing.T, entered <-chan struct{}) {
	t.Helper()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not reach the authority")
	}
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Now()}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stateRecorder struct {
	mu      sync.Mutex
	changes []StateChange
}

func (r *stateRecorder) listen(change StateChange) {
	r.mu.Lock()
	r.changes = append(r.changes, change)
	r.mu.Unlock()
}

func (r *stateRecorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.changes))
	for _, ch := range r.changes {
		out = append(out, ch.To)
	}
	return out
}
