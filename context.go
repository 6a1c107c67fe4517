package goAuthClient

import (
	"context"

	"github.com/MrEthical07/goAuthClient/authority"
)

// WithRequestID attaches id to ctx. Authority calls made with ctx send it as
// X-Request-ID and audit events record it; without it each call gets a fresh UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return authority.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	return authority.RequestIDFromContext(ctx)
}
