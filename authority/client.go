package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 1 << 20
	headerRequestID     = "X-Request-ID"
)

// Paths are the endpoint paths relative to Config.BaseURL.
type Paths struct {
	Login              string `yaml:"login"`
	VerifySecondFactor string `yaml:"verify_second_factor"`
	Me                 string `yaml:"me"`
	Setup              string `yaml:"setup"`
	VerifySetup        string `yaml:"verify_setup"`
	Disable            string `yaml:"disable"`
}

// DefaultPaths returns the conventional endpoint layout.
func DefaultPaths() Paths {
	return Paths{
		Login:              "/login",
		VerifySecondFactor: "/second-factor/verify",
		Me:                 "/session/me",
		Setup:              "/second-factor/setup",
		VerifySetup:        "/second-factor/verify-setup",
		Disable:            "/second-factor/disable",
	}
}

// Config configures a Client. Zero values take defaults.
type Config struct {
	BaseURL      string
	Paths        Paths
	HTTPClient   *http.Client
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

// Client talks to one authentication authority. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	paths     Paths
	http      *http.Client
	maxBody   int64
	userAgent string
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("authority base URL required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("authority base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("authority base URL: unsupported scheme %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, errors.New("authority base URL: missing host")
	}

	paths := mergePaths(cfg.Paths, DefaultPaths())

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "goAuthClient"
	}

	return &Client{
		base:      base,
		paths:     paths,
		http:      hc,
		maxBody:   maxBody,
		userAgent: ua,
	}, nil
}

func mergePaths(p, def Paths) Paths {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Paths{
		Login:              pick(p.Login, def.Login),
		VerifySecondFactor: pick(p.VerifySecondFactor, def.VerifySecondFactor),
		Me:                 pick(p.Me, def.Me),
		Setup:              pick(p.Setup, def.Setup),
		VerifySetup:        pick(p.VerifySetup, def.VerifySetup),
		Disable:            pick(p.Disable, def.Disable),
	}
}

type requestIDKey struct{}

// WithRequestID returns a context whose requests carry id as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// classifyFunc maps a non-2xx response to a sentinel.
type classifyFunc func(status int, body errorBody) error

type call struct {
	method   string
	path     string
	bearer   string
	in       any
	out      any
	classify classifyFunc
}

func (c *Client) do(ctx context.Context, cl call) error {
	var body io.Reader
	if cl.in != nil {
		payload, err := json.Marshal(cl.in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	endpoint := c.base.JoinPath(cl.path)
	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if cl.in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+cl.bearer)
	}
	reqID, ok := RequestIDFromContext(ctx)
	if !ok {
		reqID = uuid.NewString()
	}
	req.Header.Set(headerRequestID, reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, stripURL(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if int64(len(raw)) > c.maxBody {
		return fmt.Errorf("%w: response body exceeds %d bytes", ErrServer, c.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		kind := ErrServer
		if resp.StatusCode < 500 && cl.classify != nil {
			if mapped := cl.classify(resp.StatusCode, eb); mapped != nil {
				kind = mapped
			}
		}
		return &APIError{Status: resp.StatusCode, Code: eb.code(), Message: eb.Message, kind: kind}
	}

	if cl.out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: empty response body", ErrServer)
	}
	if err := json.Unmarshal(raw, cl.out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrServer, err)
	}
	return nil
}

// stripURL drops the request URL from transport errors so query strings never reach logs.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
