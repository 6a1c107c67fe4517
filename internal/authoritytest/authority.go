// Package authoritytest is an in-memory stand-in for the remote authentication
// authority. It tracks users, second-factor enrollment, temp tokens, backup-code
// consumption and issued bearer credentials, and counts calls per path.
package authoritytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/tokentest"
	"github.com/google/uuid"
)

// User seeds an account.
type User struct {
	ID         string
	Email      string
	Password   string
	Role       string
	CustomerID string
	Name       string
	// OmitCustomerClaim leaves customerId out of minted credentials so the client
	// must complete identity through /session/me.
	OmitCustomerClaim bool
	SecondFactor      bool
	TOTPCode          string
	BackupCodes       []string
}

type account struct {
	User
	pendingSecret string
	usedBackup    map[string]bool
}

type challenge struct {
	email    string
	issuedAt time.Time
	expired  bool
}

type gate struct {
	entered chan struct{}
	release chan struct{}
}

// Authority implements the authority HTTP API.
type Authority struct {
	mu         sync.Mutex
	accounts   map[string]*account
	challenges map[string]*challenge
	bearers    map[string]string
	calls      map[string]int
	gates      map[string]*gate
	failMe     bool
	tokenTTL   time.Duration
	expireCode string
	now        func() time.Time
	mux        *http.ServeMux
}

// NewAuthority returns an empty authority issuing one-hour credentials.
func NewAuthority() *Authority {
	a := &Authority{
		accounts:   make(map[string]*account),
		challenges: make(map[string]*challenge),
		bearers:    make(map[string]string),
		calls:      make(map[string]int),
		gates:      make(map[string]*gate),
		tokenTTL:   time.Hour,
		now:        time.Now,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", a.login)
	mux.HandleFunc("POST /second-factor/verify", a.verify)
	mux.HandleFunc("GET /session/me", a.me)
	mux.HandleFunc("POST /second-factor/setup", a.setup)
	mux.HandleFunc("POST /second-factor/verify-setup", a.verifySetup)
	mux.HandleFunc("POST /second-factor/disable", a.disable)
	a.mux = mux
	return a
}

func (a *Authority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.calls[r.URL.Path]++
	g := a.gates[r.URL.Path]
	a.mu.Unlock()

	if g != nil {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		select {
		case <-g.release:
		case <-r.Context().Done():
			return
		}
	}
	a.mux.ServeHTTP(w, r)
}

// Server is an Authority behind an httptest server.
type Server struct {
	*Authority
	*httptest.Server
}

// NewServer starts an Authority and closes it through tb.Cleanup.
func NewServer(tb interface{ Cleanup(func()) }) *Server {
	a := NewAuthority()
	srv := httptest.NewServer(a)
	tb.Cleanup(srv.Close)
	return &Server{Authority: a, Server: srv}
}

// AddUser registers u, replacing any account with the same email.
func (a *Authority) AddUser(u User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	a.accounts[strings.ToLower(u.Email)] = &account{User: u, usedBackup: make(map[string]bool)}
}

// Calls returns how many requests reached path.
func (a *Authority) Calls(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[path]
}

// Hold parks requests to path until release is called. entered receives once per
// parked request.
func (a *Authority) Hold(path string) (entered <-chan struct{}, release func()) {
	g := &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
	a.mu.Lock()
	a.gates[path] = g
	a.mu.Unlock()

	var once sync.Once
	return g.entered, func() {
		once.Do(func() {
			a.mu.Lock()
			if a.gates[path] == g {
				delete(a.gates, path)
			}
			a.mu.Unlock()
			close(g.release)
		})
	}
}

// ExpireChallenges marks every outstanding temp token as expired.
func (a *Authority) ExpireChallenges() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.challenges {
		ch.expired = true
	}
}

// SetExpiredCode makes expired challenges answer 400 with code instead of 410.
func (a *Authority) SetExpiredCode(code string) {
	a.mu.Lock()
	a.expireCode = code
	a.mu.Unlock()
}

// FailProfile makes /session/me answer 503.
func (a *Authority) FailProfile(fail bool) {
	a.mu.Lock()
	a.failMe = fail
	a.mu.Unlock()
}

// SetTokenTTL sets the lifetime of minted credentials.
func (a *Authority) SetTokenTTL(ttl time.Duration) {
	a.mu.Lock()
	a.tokenTTL = ttl
	a.mu.Unlock()
}

// RevokeBearers forgets all issued credentials; later bearer calls get 401.
func (a *Authority) RevokeBearers() {
	a.mu.Lock()
	a.bearers = make(map[string]string)
	a.mu.Unlock()
}

// SecondFactorEnabled reports the enrollment state for email.
func (a *Authority) SecondFactorEnabled(email string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct := a.accounts[strings.ToLower(email)]
	return acct != nil && acct.SecondFactor
}

// BackupCodes returns the codes currently issued to email.
func (a *Authority) BackupCodes(email string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct := a.accounts[strings.ToLower(email)]
	if acct == nil {
		return nil
	}
	return append([]string(nil), acct.BackupCodes...)
}

func (a *Authority) mintLocked(acct *account) string {
	c := tokentest.Claims{
		Subject:   acct.ID,
		Email:     acct.Email,
		Role:      acct.Role,
		IssuedAt:  a.now(),
		ExpiresAt: a.now().Add(a.tokenTTL),
	}
	if !acct.OmitCustomerClaim {
		c.CustomerID = acct.CustomerID
	}
	tok := tokentest.Mint(c)
	a.bearers[tok] = strings.ToLower(acct.Email)
	return tok
}

func (a *Authority) bearerAccountLocked(r *http.Request) *account {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}
	email, ok := a.bearers[raw]
	if !ok {
		return nil
	}
	return a.accounts[email]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"code": code, "message": http.StatusText(status)})
}
