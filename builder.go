package goAuthClient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goAuthClient/authority"
	"github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/store"
	"github.com/MrEthical07/goAuthClient/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a Client. A Builder can be built once.
type Builder struct {
	config     Config
	store      store.TokenStore
	redis      redis.UniversalClient
	httpClient *http.Client
	logger     *slog.Logger
	auditSink  AuditSink
	listeners  []StateListener
	clock      func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithTokenStore overrides the store selected by Config.Store.
func (b *Builder) WithTokenStore(s store.TokenStore) *Builder {
	b.store = s
	return b
}

// WithRedis supplies the client used by the redis store backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient overrides the transport to the authority. Config.Authority.Timeout
// is ignored when set.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithLogger sets the structured logger. The default is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithStateListener registers l for every state transition.
func (b *Builder) WithStateListener(l StateListener) *Builder {
	if l != nil {
		b.listeners = append(b.listeners, l)
	}
	return b
}

// WithClock overrides the wall clock used for expiry and challenge TTL checks.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a Client in StateAnonymous.
// Call Boot to rehydrate a stored credential.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	authClient, err := authority.New(authority.Config{
		BaseURL:      cfg.Authority.BaseURL,
		Paths:        cfg.Authority.Paths,
		HTTPClient:   b.httpClient,
		Timeout:      cfg.Authority.Timeout,
		MaxBodyBytes: cfg.Authority.MaxBodyBytes,
		UserAgent:    cfg.Authority.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	ts, closer, err := b.tokenStore(cfg.Store, clock)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(cfg.Metrics)
	c := &Client{
		config:    cfg,
		authority: authClient,
		store:     ts,
		owned:     closer,
		decoder:   token.NewDecoder(token.Config{Clock: clock, MaxTokenBytes: cfg.Token.MaxTokenBytes}),
		logger:    logger,
		metrics:   metrics,
		now:       clock,
		listeners: append([]StateListener(nil), b.listeners...),
		state:     StateAnonymous,
	}
	c.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	c.identity = &identityResolver{
		source:  authClient,
		logger:  logger,
		metrics: metrics,
		onFail: func(ctx context.Context, u *User, err error) {
			c.emitAudit(ctx, auditIdentityFallbackFailed, u, false, err, nil)
		},
	}

	b.built = true
	return c, nil
}

func (b *Builder) tokenStore(cfg StoreConfig, clock func() time.Time) (store.TokenStore, io.Closer, error) {
	if b.store != nil {
		return b.store, nil, nil
	}

	switch cfg.Backend {
	case StoreMemory:
		return store.NewMemoryStore(), nil, nil
	case StoreRedis:
		if b.redis != nil {
			return store.NewRedisStore(b.redis, cfg.RedisPrefix, cfg.RedisSlot), nil, nil
		}
		if cfg.RedisAddr == "" {
			return nil, nil, errors.New("redis store requires WithRedis or Store RedisAddr")
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return store.NewRedisStore(rdb, cfg.RedisPrefix, cfg.RedisSlot), rdb, nil
	default:
		opts := []store.FileOption{store.WithFileClock(clock)}
		if len(cfg.SealKey) > 0 {
			opts = append(opts, store.WithSealKey(cfg.SealKey))
		}
		fs, err := store.NewFileStore(cfg.FilePath, opts...)
		if err != nil {
			return nil, nil, mapStoreError(err)
		}
		return fs, nil, nil
	}
}
