package goAuthClient

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goAuthClient/authority"
	"github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/store"
	"github.com/MrEthical07/goAuthClient/token"
)

type authorityAPI interface {
	Login(ctx context.Context, email, password string) (authority.LoginOutcome, error)
	VerifySecondFactor(ctx context.Context, req authority.VerifyRequest) (string, error)
	Me(ctx context.Context, bearer string) (authority.Profile, error)
	StartSetup(ctx context.Context, bearer string) (authority.Setup, error)
	VerifySetup(ctx context.Context, bearer, code string) ([]string, error)
	Disable(ctx context.Context, bearer string) error
}

// Client owns the session state machine. All methods are safe for concurrent use.
//
// At most one authentication operation (Boot, SubmitCredentials, SubmitSecondFactor)
// runs at a time; a second one gets ErrOperationInFlight. Every applied change
// advances an epoch, and a response that returns after the epoch moved on (because
// of CancelSecondFactor, Logout, a superseding login or a credential adopted from
// another process) is dropped with ErrStaleResponse without touching state or store.
type Client struct {
	config    Config
	authority authorityAPI
	store     store.TokenStore
	owned     io.Closer
	decoder   *token.Decoder
	identity  *identityResolver
	logger    *slog.Logger
	audit     *audit.Dispatcher
	metrics   *Metrics
	now       func() time.Time
	listeners []StateListener

	mu            sync.Mutex
	state         State
	user          *User
	challenge     *SecondFactorChallenge
	loading       bool
	epoch         uint64
	inflight      bool
	inflightEpoch uint64

	closed atomic.Bool
}

// Session returns a copy of the current state.
func (c *Client) Session() Session {
	if c == nil {
		return Session{State: StateAnonymous}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Session{State: c.state, Loading: c.loading}
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	if c.challenge != nil {
		ch := *c.challenge
		s.Challenge = &ch
	}
	return s
}

// Config returns a copy of the configuration the Client was built with.
func (c *Client) Config() Config {
	return cloneConfig(c.config)
}

// Metrics returns the client's counters.
func (c *Client) Metrics() *Metrics {
	if c == nil {
		return nil
	}
	return c.metrics
}

// Close drains the audit dispatcher and releases a Redis client created by Build.
// Session state and the stored credential are left as they are.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.audit.Close()
	if c.owned != nil {
		return c.owned.Close()
	}
	return nil
}

func (c *Client) ready() error {
	if c == nil || c.closed.Load() {
		return ErrClientNotReady
	}
	return nil
}

// begin claims the single in-flight slot. pre runs under the lock before the claim
// and may transition state; a non-nil error from pre aborts without claiming.
func (c *Client) begin(pre func() (StateChange, error)) (uint64, error) {
	c.mu.Lock()
	if c.inflight && c.inflightEpoch == c.epoch {
		c.mu.Unlock()
		c.metrics.Inc(MetricOperationInFlightRejected)
		return 0, ErrOperationInFlight
	}

	var change StateChange
	if pre != nil {
		var err error
		change, err = pre()
		if err != nil {
			c.mu.Unlock()
			c.notify(change)
			return 0, err
		}
	}

	c.epoch++
	c.inflight = true
	c.inflightEpoch = c.epoch
	epoch := c.epoch
	c.mu.Unlock()

	c.notify(change)
	return epoch, nil
}

func (c *Client) end(epoch uint64) {
	c.mu.Lock()
	if c.inflight && c.inflightEpoch == epoch {
		c.inflight = false
	}
	c.mu.Unlock()
}

func (c *Client) stale(ctx context.Context, op string) error {
	c.metrics.Inc(MetricStaleResponseDropped)
	c.logger.DebugContext(ctx, "goAuthClient: stale response discarded", slog.String("op", op))
	return ErrStaleResponse
}

func (c *Client) setStateLocked(to State, reason string) StateChange {
	change := StateChange{From: c.state, To: to, Reason: reason}
	c.state = to
	return change
}

func (c *Client) notify(change StateChange) {
	if change.From == change.To {
		return
	}
	c.logger.Debug("goAuthClient: state change",
		slog.String("from", change.From.String()),
		slog.String("to", change.To.String()),
		slog.String("reason", change.Reason),
	)
	for _, l := range c.listeners {
		l(change)
	}
}

type credential struct {
	raw    string
	claims token.Claims
	role   Role
}

func (c *Client) decodeCredential(raw string) (credential, error) {
	claims, err := c.decoder.Decode(raw)
	if err != nil {
		return credential{}, mapDecodeError(err)
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		return credential{}, ErrMalformedToken
	}
	return credential{raw: raw, claims: claims, role: role}, nil
}

// establish decodes raw, completes the identity, stores the credential and enters
// StateAuthenticated, unless the epoch moved on meanwhile.
func (c *Client) establish(ctx context.Context, epoch uint64, raw, reason string) (*User, error) {
	cred, err := c.decodeCredential(raw)
	if err != nil {
		c.logger.WarnContext(ctx, "goAuthClient: authority issued an unusable credential", slog.Any("error", err))
		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			return nil, c.stale(ctx, reason)
		}
		c.user = nil
		c.challenge = nil
		change := c.setStateLocked(StateAnonymous, reason+"_failed")
		c.epoch++
		c.mu.Unlock()
		c.notify(change)
		return nil, err
	}

	user := c.identity.resolve(ctx, cred.claims, cred.role, cred.raw)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil, c.stale(ctx, reason)
	}
	if err := c.store.Set(context.WithoutCancel(ctx), cred.raw, cred.claims.ExpiresAt); err != nil {
		c.user = nil
		c.challenge = nil
		change := c.setStateLocked(StateAnonymous, reason+"_failed")
		c.epoch++
		c.mu.Unlock()
		c.notify(change)
		c.logger.ErrorContext(ctx, "goAuthClient: credential could not be stored", slog.Any("error", err))
		return nil, mapStoreError(err)
	}
	u := user
	c.user = &u
	c.challenge = nil
	c.loading = false
	change := c.setStateLocked(StateAuthenticated, reason)
	c.epoch++
	c.mu.Unlock()

	c.notify(change)
	return &user, nil
}

// invalidate drops an authenticated session, optionally clearing the store, if
// the epoch has not moved since it was read.
func (c *Client) invalidate(ctx context.Context, epoch uint64, reason string, clearStore bool) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	var clearErr error
	if clearStore {
		clearErr = c.store.Clear(context.WithoutCancel(ctx))
	}
	prev := c.user
	wasAuthenticated := c.state == StateAuthenticated
	var change StateChange
	if wasAuthenticated {
		c.user = nil
		change = c.setStateLocked(StateAnonymous, reason)
	}
	c.epoch++
	c.mu.Unlock()

	c.notify(change)
	if clearErr != nil {
		c.logger.WarnContext(ctx, "goAuthClient: clearing token store failed", slog.Any("error", clearErr))
	}
	if wasAuthenticated {
		c.metrics.Inc(MetricCredentialInvalidated)
		c.emitAudit(ctx, auditCredentialInvalidated, prev, true, nil, map[string]string{"reason": reason})
	}
	return true
}

// CancelSecondFactor discards the pending challenge and returns to StateAnonymous
// without contacting the authority. A verification still in flight becomes stale.
func (c *Client) CancelSecondFactor() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.state != StateAwaitingSecondFactor {
		c.mu.Unlock()
		return
	}
	var candidate *User
	if c.challenge != nil {
		u := c.challenge.CandidateUser
		candidate = &u
	}
	c.challenge = nil
	change := c.setStateLocked(StateAnonymous, "challenge_cancelled")
	c.epoch++
	c.mu.Unlock()

	c.notify(change)
	c.metrics.Inc(MetricChallengeCancelled)
	c.emitAudit(context.Background(), auditChallengeCancelled, candidate, true, nil, nil)
}

// Logout clears the store, forgets the user and any challenge, and returns to
// StateAnonymous. It is idempotent and never contacts the authority.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}
	c.mu.Lock()
	prevState := c.state
	prevUser := c.user
	clearErr := c.store.Clear(context.WithoutCancel(ctx))
	c.user = nil
	c.challenge = nil
	c.loading = false
	change := c.setStateLocked(StateAnonymous, "logout")
	c.epoch++
	c.mu.Unlock()

	c.notify(change)
	if prevState != StateAnonymous {
		c.metrics.Inc(MetricLogout)
		c.emitAudit(ctx, auditLogout, prevUser, clearErr == nil, mapStoreError(clearErr), nil)
	}
	if clearErr != nil {
		c.logger.WarnContext(ctx, "goAuthClient: clearing token store on logout failed", slog.Any("error", clearErr))
		return mapStoreError(clearErr)
	}
	return nil
}

// LandingPath is the home route for the current session, or LoginPath when anonymous.
func (c *Client) LandingPath() string {
	s := c.Session()
	if !s.Authenticated() {
		return c.config.Redirect.LoginPath
	}
	return c.config.Redirect.Landing(s.User.Role)
}

// NextRoute applies SafeNext to candidate with the current session's landing path
// as the default.
func (c *Client) NextRoute(candidate string) string {
	def := c.LandingPath()
	out := SafeNext(candidate, def)
	if candidate != "" && out != candidate {
		c.metrics.Inc(MetricUnsafeRedirectRejected)
		c.logger.Debug("goAuthClient: redirect target rejected", slog.Int("length", len(candidate)))
	}
	return out
}
