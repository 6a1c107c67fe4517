package goAuthClient

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAuthClient/authority"
	"github.com/MrEthical07/goAuthClient/token"
	"golang.org/x/sync/singleflight"
)

type profileSource interface {
	Me(ctx context.Context, bearer string) (authority.Profile, error)
}

// identityResolver turns decoded claims into a User. A customer credential without
// customerId triggers one profile lookup per call; concurrent lookups for the same
// subject share one request. A failed lookup yields a User without CustomerID.
type identityResolver struct {
	source  profileSource
	group   singleflight.Group
	logger  *slog.Logger
	metrics *Metrics
	onFail  func(ctx context.Context, user *User, err error)
}

func (r *identityResolver) resolve(ctx context.Context, claims token.Claims, role Role, bearer string) User {
	user := User{
		ID:         claims.SubjectID,
		Email:      claims.Email,
		Role:       role,
		CustomerID: claims.CustomerID,
	}
	if role != RoleCustomer || user.CustomerID != "" {
		return user
	}

	r.metrics.Inc(MetricIdentityFallback)
	start := time.Now()
	v, err, _ := r.group.Do(claims.SubjectID, func() (any, error) {
		return r.source.Me(ctx, bearer)
	})
	r.metrics.Observe(MetricAuthorityLatency, time.Since(start))
	if err != nil {
		r.metrics.Inc(MetricIdentityFallbackFailed)
		r.logger.WarnContext(ctx, "goAuthClient: identity fallback failed",
			slog.String("user_id", user.ID),
			slog.Any("error", mapAuthorityError(err)),
		)
		if r.onFail != nil {
			r.onFail(ctx, &user, mapAuthorityError(err))
		}
		return user
	}

	return mergeProfile(user, v.(authority.Profile))
}

// mergeProfile fills gaps in user from p. Claims win for id, email and role.
func mergeProfile(user User, p authority.Profile) User {
	if user.CustomerID == "" {
		user.CustomerID = p.CustomerID
	}
	if user.Name == "" {
		user.Name = p.Name
	}
	return user
}
