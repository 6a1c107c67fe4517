package goAuthClient

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/goAuthClient/store"
)

var errBootNotNeeded = errors.New("boot not needed")

// Boot rehydrates a stored credential. While it runs the session is
// StateRehydrating with Loading set. A missing, malformed or expired credential
// leaves the client in StateAnonymous with an empty store and no error; the whole
// operation, including the identity fallback, is bounded by Config.Session.BootTimeout.
//
// Boot is a no-op when a session or challenge already exists.
func (c *Client) Boot(ctx context.Context) error {
	epoch, err := c.beginBoot()
	if err != nil {
		if errors.Is(err, errBootNotNeeded) {
			return nil
		}
		return err
	}
	return c.runBoot(ctx, epoch)
}

// BootAsync enters StateRehydrating before returning and finishes Boot in the
// background. The channel closes when the state has settled.
func (c *Client) BootAsync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	epoch, err := c.beginBoot()
	if err != nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		if err := c.runBoot(ctx, epoch); err != nil && !errors.Is(err, ErrStaleResponse) {
			c.logger.WarnContext(ctx, "goAuthClient: background boot failed", slog.Any("error", err))
		}
	}()
	return done
}

func (c *Client) beginBoot() (uint64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.begin(func() (StateChange, error) {
		if c.state != StateAnonymous {
			return StateChange{}, errBootNotNeeded
		}
		c.loading = true
		return c.setStateLocked(StateRehydrating, "boot"), nil
	})
}

func (c *Client) runBoot(ctx context.Context, epoch uint64) error {
	defer c.end(epoch)

	ctx, cancel := context.WithTimeout(ctx, c.config.Session.BootTimeout)
	defer cancel()

	raw, ok, err := c.store.Get(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "goAuthClient: token store read failed during boot", slog.Any("error", err))
		return c.settleAnonymous(ctx, epoch, "boot_store_unavailable", errors.Is(err, store.ErrCorrupt))
	}
	if !ok {
		return c.settleAnonymous(ctx, epoch, "boot_empty", false)
	}

	cred, err := c.decodeCredential(raw)
	if err != nil {
		c.logger.InfoContext(ctx, "goAuthClient: discarding stored credential", slog.Any("reason", err))
		if settleErr := c.settleAnonymous(ctx, epoch, "boot_discarded", true); settleErr != nil {
			return settleErr
		}
		c.metrics.Inc(MetricRehydrateDiscarded)
		c.emitAudit(ctx, auditRehydrateDiscarded, nil, true, err, nil)
		return nil
	}

	user := c.identity.resolve(ctx, cred.claims, cred.role, raw)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return c.stale(ctx, "boot")
	}
	u := user
	c.user = &u
	c.loading = false
	change := c.setStateLocked(StateAuthenticated, "rehydrated")
	c.epoch++
	c.mu.Unlock()

	c.notify(change)
	c.metrics.Inc(MetricRehydrateSuccess)
	c.emitAudit(ctx, auditRehydrateSuccess, &user, true, nil, nil)
	return nil
}

func (c *Client) settleAnonymous(ctx context.Context, epoch uint64, reason string, clearStore bool) error {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return c.stale(ctx, "boot")
	}
	var clearErr error
	if clearStore {
		clearErr = c.store.Clear(context.WithoutCancel(ctx))
	}
	c.loading = false
	c.user = nil
	change := c.setStateLocked(StateAnonymous, reason)
	c.epoch++
	c.mu.Unlock()

	c.notify(change)
	if clearErr != nil {
		c.logger.WarnContext(ctx, "goAuthClient: clearing token store failed", slog.Any("error", clearErr))
	}
	return nil
}

// Revalidate re-reads the store and reconciles the session with it: a credential
// removed or expired elsewhere ends the session, and a valid credential written by
// another process for a different subject (or while anonymous) is adopted.
// Last write to the store wins.
func (c *Client) Revalidate(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.mu.Lock()
	epoch := c.epoch
	state := c.state
	var currentID string
	if c.user != nil {
		currentID = c.user.ID
	}
	c.mu.Unlock()

	if state == StateRehydrating {
		return nil
	}

	raw, ok, err := c.store.Get(ctx)
	if err != nil {
		return mapStoreError(err)
	}
	if !ok {
		if state == StateAuthenticated {
			c.invalidate(ctx, epoch, "credential_removed", false)
		}
		return nil
	}

	cred, err := c.decodeCredential(raw)
	if err != nil {
		reason := "credential_malformed"
		if errors.Is(err, ErrExpiredToken) {
			reason = "credential_expired"
		}
		c.invalidate(ctx, epoch, reason, true)
		return nil
	}
	if state == StateAuthenticated && cred.claims.SubjectID == currentID {
		return nil
	}

	user := c.identity.resolve(ctx, cred.claims, cred.role, raw)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return c.stale(ctx, "revalidate")
	}
	u := user
	c.user = &u
	c.challenge = nil
	change := c.setStateLocked(StateAuthenticated, "credential_adopted")
	c.epoch++
	c.mu.Unlock()

	c.notify(change)
	c.emitAudit(ctx, auditCredentialAdopted, &user, true, nil, nil)
	return nil
}

// AccessToken returns the stored credential for use as a bearer header. Expiry is
// checked on every call; an expired or malformed credential ends the session and
// is cleared from the store.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	c.mu.Lock()
	epoch := c.epoch
	state := c.state
	var currentID string
	if c.user != nil {
		currentID = c.user.ID
	}
	c.mu.Unlock()

	if state != StateAuthenticated {
		return "", ErrNotAuthenticated
	}

	raw, ok, err := c.store.Get(ctx)
	if err != nil {
		return "", mapStoreError(err)
	}
	if !ok {
		c.invalidate(ctx, epoch, "credential_removed", false)
		return "", ErrNotAuthenticated
	}

	cred, err := c.decodeCredential(raw)
	if err != nil {
		reason := "credential_malformed"
		if errors.Is(err, ErrExpiredToken) {
			reason = "credential_expired"
		}
		c.invalidate(ctx, epoch, reason, true)
		return "", err
	}
	if cred.claims.SubjectID != currentID {
		if err := c.Revalidate(ctx); err != nil {
			return "", err
		}
	}
	return raw, nil
}

// CredentialRejected ends the session after the authority answered 401 to a bearer
// call. bearer is the credential that was sent; when the store already holds a
// different one the report is ignored. An empty bearer always invalidates.
func (c *Client) CredentialRejected(ctx context.Context, bearer string) {
	if c.ready() != nil {
		return
	}
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	if bearer != "" {
		raw, ok, err := c.store.Get(ctx)
		if err == nil && ok && raw != bearer {
			return
		}
	}
	c.invalidate(ctx, epoch, "credential_rejected", true)
}

// WatchTokenStore arms a watcher that calls Revalidate whenever another process
// changes the store, until ctx is done. It returns once the watcher is armed, or
// ErrWatchUnsupported for stores that cannot watch.
func (c *Client) WatchTokenStore(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	w, ok := c.store.(store.Watchable)
	if !ok {
		return ErrWatchUnsupported
	}
	return w.Watch(ctx, func() {
		if ctx.Err() != nil {
			return
		}
		if err := c.Revalidate(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
			c.logger.WarnContext(ctx, "goAuthClient: revalidation after store change failed", slog.Any("error", err))
		}
	})
}
