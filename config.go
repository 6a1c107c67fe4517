package goAuthClient

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/authority"
	"gopkg.in/yaml.v3"
)

// Config is the complete client configuration. Zero values are not defaults; start
// from DefaultConfig or LoadConfigFile.
type Config struct {
	Authority    AuthorityConfig    `yaml:"authority"`
	Store        StoreConfig        `yaml:"store"`
	Session      SessionConfig      `yaml:"session"`
	SecondFactor SecondFactorConfig `yaml:"second_factor"`
	Redirect     RedirectConfig     `yaml:"redirect"`
	Token        TokenConfig        `yaml:"token"`
	Audit        AuditConfig        `yaml:"audit"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

/*
====================================
AUTHORITY CONFIG
====================================
*/

// AuthorityConfig locates the remote authentication authority.
type AuthorityConfig struct {
	BaseURL      string          `yaml:"base_url"`
	Timeout      time.Duration   `yaml:"timeout"`
	Paths        authority.Paths `yaml:"paths"`
	MaxBodyBytes int64           `yaml:"max_body_bytes"`
	UserAgent    string          `yaml:"user_agent"`
}

/*
====================================
STORE CONFIG
====================================
*/

// Token store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// StoreConfig selects where the bearer credential is persisted.
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	FilePath string `yaml:"file_path"`
	// SealKey enables at-rest sealing of the file backend. Hex in YAML, 32 bytes.
	SealKey     HexBytes `yaml:"seal_key,omitempty"`
	RedisAddr   string   `yaml:"redis_addr"`
	RedisPrefix string   `yaml:"redis_prefix"`
	RedisSlot   string   `yaml:"redis_slot"`
}

// HexBytes is a byte slice written as a hex string in YAML.
type HexBytes []byte

func (h *HexBytes) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: invalid hex: %w", node.Line, err)
	}
	*h = b
	return nil
}

func (h HexBytes) MarshalYAML() (any, error) {
	return hex.EncodeToString(h), nil
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig bounds session rehydration.
type SessionConfig struct {
	// BootTimeout caps Boot, including the identity fallback lookup.
	BootTimeout time.Duration `yaml:"boot_timeout"`
}

// SecondFactorConfig bounds a pending challenge on the client side.
type SecondFactorConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	ChallengeTTL time.Duration `yaml:"challenge_ttl"`
}

// RedirectConfig holds the landing routes used by SafeNext defaults.
type RedirectConfig struct {
	LoginPath    string `yaml:"login_path"`
	AdminHome    string `yaml:"admin_home"`
	CustomerHome string `yaml:"customer_home"`
}

// TokenConfig bounds local credential decoding.
type TokenConfig struct {
	MaxTokenBytes int `yaml:"max_token_bytes"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Authority: AuthorityConfig{
			BaseURL:      "http://localhost:8080",
			Timeout:      10 * time.Second,
			Paths:        authority.DefaultPaths(),
			MaxBodyBytes: 1 << 20,
			UserAgent:    "goAuthClient",
		},
		Store: StoreConfig{
			Backend:     StoreFile,
			FilePath:    defaultStorePath(),
			RedisPrefix: "gac",
			RedisSlot:   "default",
		},
		Session: SessionConfig{
			BootTimeout: 5 * time.Second,
		},
		SecondFactor: SecondFactorConfig{
			MaxAttempts:  5,
			ChallengeTTL: 5 * time.Minute,
		},
		Redirect: RedirectConfig{
			LoginPath:    "/login",
			AdminHome:    "/admin/dashboard",
			CustomerHome: "/customer/dashboard",
		},
		Token: TokenConfig{
			MaxTokenBytes: 8 << 10,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "goauth-client", "session")
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Store.SealKey = HexBytes(cloneBytes(cfg.Store.SealKey))
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
FILE LOADING
====================================
*/

// LoadConfigFile reads a YAML file over DefaultConfig and validates the result.
// Unknown keys are rejected.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := defaultConfig()
	if len(strings.TrimSpace(string(data))) > 0 {
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveConfigFile writes cfg as YAML with 0600 permissions.
func SaveConfigFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Authority
	if c.Authority.BaseURL == "" {
		return errors.New("Authority BaseURL is required")
	}
	u, err := url.Parse(c.Authority.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("Authority BaseURL must be an absolute http(s) URL")
	}
	if c.Authority.Timeout <= 0 {
		return errors.New("Authority Timeout must be > 0")
	}
	if c.Authority.MaxBodyBytes <= 0 {
		return errors.New("Authority MaxBodyBytes must be > 0")
	}

	// Store
	switch c.Store.Backend {
	case StoreFile:
		if c.Store.FilePath == "" {
			return errors.New("Store FilePath is required for the file backend")
		}
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisPrefix == "" || c.Store.RedisSlot == "" {
			return errors.New("Store RedisPrefix and RedisSlot are required for the redis backend")
		}
	default:
		return fmt.Errorf("Store Backend must be %q, %q or %q", StoreFile, StoreMemory, StoreRedis)
	}
	if len(c.Store.SealKey) != 0 && len(c.Store.SealKey) != 32 {
		return errors.New("Store SealKey must be 32 bytes")
	}

	// Session
	if c.Session.BootTimeout <= 0 {
		return errors.New("Session BootTimeout must be > 0")
	}

	// Second factor
	if c.SecondFactor.MaxAttempts <= 0 {
		return errors.New("SecondFactor MaxAttempts must be > 0")
	}
	if c.SecondFactor.ChallengeTTL <= 0 {
		return errors.New("SecondFactor ChallengeTTL must be > 0")
	}

	// Redirect
	for name, p := range map[string]string{
		"LoginPath":    c.Redirect.LoginPath,
		"AdminHome":    c.Redirect.AdminHome,
		"CustomerHome": c.Redirect.CustomerHome,
	} {
		if !isSafePath(p) {
			return fmt.Errorf("Redirect %s must be a same-origin absolute path", name)
		}
	}

	// Token
	if c.Token.MaxTokenBytes <= 0 {
		return errors.New("Token MaxTokenBytes must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
