package goAuthClient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestSecondFactorEnrollmentLifecycle(t *testing.T) {
	srv := seedAuthority(t)
	c, _ := newTestClient(t, srv.URL)

	if _, err := c.SubmitCredentials(context.Background(), customerEmail, testPassword); err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}

	setup, err := c.StartSetup(context.Background())
	if err != nil {
		t.Fatalf("StartSetup failed: %v", err)
	}
	if setup.Secret == "" || !strings.HasPrefix(setup.QRPayload, "otpauth://") {
		t.Fatalf("unexpected setup %+v", setup)
	}

	if _, err := c.VerifySetup(context.Background(), "999999"); !errors.Is(err, ErrSecondFactorRejected) {
		t.Fatalf("expected ErrSecondFactorRejected, got %v", err)
	}
	if srv.SecondFactorEnabled(customerEmail) {
		t.Fatal("second factor must stay disabled after a rejected code")
	}
	if s := c.Session(); s.State != StateAuthenticated {
		t.Fatalf("a rejected setup code must not end the session, got %v", s.State)
	}

	batch, err := c.VerifySetup(context.Background(), testTOTP)
	if err != nil {
		t.Fatalf("VerifySetup failed: %v", err)
	}
	if !srv.SecondFactorEnabled(customerEmail) {
		t.Fatal("expected second factor to be enabled")
	}
	if batch.Len() != 8 || batch.Revealed() {
		t.Fatalf("expected unrevealed batch of 8, got len=%d revealed=%v", batch.Len(), batch.Revealed())
	}

	codes, ok := batch.Reveal()
	if !ok || len(codes) != 8 {
		t.Fatalf("expected 8 codes on first reveal, got %d ok=%v", len(codes), ok)
	}
	if again, ok := batch.Reveal(); ok || again != nil {
		t.Fatal("backup codes must be revealed only once")
	}
	if got := c.Metrics().Value(MetricSecondFactorEnrolled); got != 1 {
		t.Fatalf("expected 1 enrollment, got %d", got)
	}

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	res, err := c.SubmitCredentials(context.Background(), customerEmail, testPassword)
	if err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}
	if !res.SecondFactorRequired {
		t.Fatal("expected a challenge after enrollment")
	}
	if _, err := c.SubmitSecondFactor(context.Background(), SecondFactorSubmission{Code: codes[0], IsBackupCode: true}); err != nil {
		t.Fatalf("issued backup code was refused: %v", err)
	}

	if err := c.Disable(context.Background()); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	if srv.SecondFactorEnabled(customerEmail) {
		t.Fatal("expected second factor to be disabled")
	}
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	res, err = c.SubmitCredentials(context.Background(), customerEmail, testPassword)
	if err != nil || res.SecondFactorRequired {
		t.Fatalf("expected direct login after disable, got %+v %v", res, err)
	}
}

func TestSecondFactorLifecycleRequiresSession(t *testing.T) {
	srv := seedAuthority(t)
	c, _ := newTestClient(t, srv.URL)

	if _, err := c.StartSetup(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("StartSetup: expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := c.VerifySetup(context.Background(), testTOTP); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("VerifySetup: expected ErrNotAuthenticated, got %v", err)
	}
	if err := c.Disable(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Disable: expected ErrNotAuthenticated, got %v", err)
	}
	if got := srv.Calls("/second-factor/setup"); got != 0 {
		t.Fatalf("expected no authority calls, got %d", got)
	}
}

func TestSecondFactorLifecycleUnauthorizedEndsSession(t *testing.T) {
	srv := seedAuthority(t)
	c, ms := newTestClient(t, srv.URL)

	if _, err := c.SubmitCredentials(context.Background(), customerEmail, testPassword); err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}
	srv.RevokeBearers()

	if _, err := c.StartSetup(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if s := c.Session(); s.State != StateAnonymous {
		t.Fatalf("expected anonymous after 401, got %v", s.State)
	}
	if _, ok := storedToken(t, ms); ok {
		t.Fatal("expected store to be cleared after 401")
	}
}

func TestSecondFactorSecretsAreRedactedFromLogs(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	setup := TOTPSetup{Secret: "JBSWY3DPEHPK3PXP", QRPayload: "otpauth://totp/x?secret=JBSWY3DPEHPK3PXP"}
	batch := newBackupCodes([]string{"AAAA-1111", "BBBB-2222"})
	challenge := SecondFactorChallenge{TempToken: "temp-secret-token", CandidateEmail: twoFAEmail}
	logger.Info("secrets", "setup", setup, "codes", batch, "challenge", challenge, "sub", SecondFactorSubmission{Code: "864209"})

	out := buf.String()
	for _, secret := range []string{"JBSWY3DPEHPK3PXP", "AAAA-1111", "temp-secret-token", "864209"} {
		if strings.Contains(out, secret) {
			t.Fatalf("log output leaked %q: %s", secret, out)
		}
	}
	if got := fmt.Sprint(batch); strings.Contains(got, "AAAA") {
		t.Fatalf("String leaked codes: %s", got)
	}
}
