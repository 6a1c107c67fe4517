package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/authoritytest"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	authority *authoritytest.Server
	storeFile string
	configDir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)

	srv := authoritytest.NewServer(t)
	for _, u := range demoUsers() {
		srv.AddUser(u)
	}
	return &cliEnv{
		authority: srv,
		storeFile: filepath.Join(dir, "session"),
		configDir: dir,
	}
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()

	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{
		"--authority", e.authority.URL,
		"--store-file", e.storeFile,
	}, args...))

	err := cmd.ExecuteContext(context.Background())
	return cliResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

func TestLoginStatusTokenLogout(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, demoPassword+"\n", "login", "--email", "customer@bank.test")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Signed in as customer@bank.test (CUSTOMER)")
	assert.Contains(t, res.stdout, "Next: /customer/dashboard")

	info, err := os.Stat(env.storeFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	res = env.run(t, "", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "state: authenticated")
	assert.Contains(t, res.stdout, "user: customer@bank.test")
	assert.Contains(t, res.stdout, "customer: C-100")
	assert.Contains(t, res.stdout, "landing: /customer/dashboard")

	res = env.run(t, "", "token")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "subject: cust-1")
	assert.Contains(t, res.stdout, "expires: ")

	res = env.run(t, "", "token", "--reveal")
	require.NoError(t, res.err)
	assert.Len(t, strings.Split(strings.TrimSpace(res.stdout), "."), 3)

	res = env.run(t, "", "logout")
	require.NoError(t, res.err)
	assert.Equal(t, "Signed out\n", res.stdout)

	res = env.run(t, "", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "state: anonymous")
	assert.Contains(t, res.stdout, "landing: /login")
}

func TestLoginPromptsForEmail(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "admin@bank.test\n"+demoPassword+"\n", "login", "--next", "/admin/users")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Email: ")
	assert.Contains(t, res.stderr, "Password: ")
	assert.Contains(t, res.stdout, "Signed in as admin@bank.test (ADMIN)")
	assert.Contains(t, res.stdout, "Next: /admin/users")
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "nope\n", "login", "--email", "customer@bank.test")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, goAuthClient.ErrInvalidCredentials)
	assert.Equal(t, "Incorrect email or password.", res.err.Error())

	unknown := env.run(t, "nope\n", "login", "--email", "ghost@bank.test")
	require.Error(t, unknown.err)
	assert.Equal(t, res.err.Error(), unknown.err.Error())

	_, err := os.Stat(env.storeFile)
	assert.True(t, os.IsNotExist(err))
}

func TestLoginAlreadyAuthenticated(t *testing.T) {
	env := newCLIEnv(t)

	require.NoError(t, env.run(t, demoPassword+"\n", "login", "--email", "customer@bank.test").err)

	res := env.run(t, demoPassword+"\n", "login", "--email", "admin@bank.test")
	assert.ErrorIs(t, res.err, goAuthClient.ErrAlreadyAuthenticated)
}

func TestLoginSecondFactorRetriesRejectedCode(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, demoPassword+"\n000000\n123456\n", "login", "--email", "mfa@bank.test")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Verification code: ")
	assert.Contains(t, res.stderr, "Invalid verification code.")
	assert.Contains(t, res.stdout, "Signed in as mfa@bank.test (CUSTOMER)")
	assert.Equal(t, 2, env.authority.Calls("/second-factor/verify"))
}

func TestLoginSecondFactorBackupCode(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, demoPassword+"\nAAAA-1111\n", "login", "--email", "mfa@bank.test", "--backup")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Backup code: ")
	assert.Contains(t, res.stdout, "Signed in as mfa@bank.test")

	require.NoError(t, env.run(t, "", "logout").err)

	res = env.run(t, demoPassword+"\nAAAA-1111\nBBBB-2222\n", "login", "--email", "mfa@bank.test", "--backup")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Backup code already used or invalid.")
}

func TestLoginSecondFactorInputEndsChallenge(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, demoPassword+"\n", "login", "--email", "mfa@bank.test")
	assert.ErrorIs(t, res.err, errNoInput)

	_, err := os.Stat(env.storeFile)
	assert.True(t, os.IsNotExist(err))
}

func TestLoginSecondFactorAttemptCap(t *testing.T) {
	env := newCLIEnv(t)

	stdin := demoPassword + "\n" + strings.Repeat("000000\n", 6)
	res := env.run(t, stdin, "login", "--email", "mfa@bank.test")
	assert.ErrorIs(t, res.err, goAuthClient.ErrChallengeAttemptsExceeded)
	assert.Equal(t, "Too many invalid codes. Please sign in again.", res.err.Error())
	assert.Equal(t, goAuthClient.DefaultConfig().SecondFactor.MaxAttempts, env.authority.Calls("/second-factor/verify"))
}

func TestTokenRequiresSession(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "", "token")
	assert.ErrorIs(t, res.err, goAuthClient.ErrNotAuthenticated)
	assert.Empty(t, res.stdout)
}

func TestNextRoute(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "anonymous default", args: []string{"next"}, want: "/login"},
		{name: "anonymous protocol relative", args: []string{"next", "//evil.example"}, want: "/login"},
		{name: "anonymous safe path", args: []string{"next", "/customer/accounts"}, want: "/customer/accounts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.run(t, "", tt.args...)
			require.NoError(t, res.err)
			assert.Equal(t, tt.want+"\n", res.stdout)
		})
	}

	require.NoError(t, env.run(t, demoPassword+"\n", "login", "--email", "admin@bank.test").err)

	res := env.run(t, "", "next", "https://evil.example/admin")
	require.NoError(t, res.err)
	assert.Equal(t, "/admin/dashboard\n", res.stdout)
}

func TestSecondFactorEnrollment(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "", "2fa", "setup")
	assert.ErrorIs(t, res.err, goAuthClient.ErrNotAuthenticated)

	require.NoError(t, env.run(t, demoPassword+"\n", "login", "--email", "customer@bank.test").err)

	res = env.run(t, "", "2fa", "setup")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "secret: ")
	assert.Contains(t, res.stdout, "uri: otpauth://totp/")

	res = env.run(t, "", "2fa", "verify", "999999")
	require.Error(t, res.err)

	res = env.run(t, "", "2fa", "verify", "123456")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Backup codes (shown once)")
	assert.Len(t, env.authority.BackupCodes("customer@bank.test"), 8)
	for _, code := range env.authority.BackupCodes("customer@bank.test") {
		assert.Contains(t, res.stdout, code)
	}
	assert.True(t, env.authority.SecondFactorEnabled("customer@bank.test"))

	require.NoError(t, env.run(t, "", "logout").err)
	res = env.run(t, demoPassword+"\n123456\n", "login", "--email", "customer@bank.test")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Verification code: ")

	res = env.run(t, "", "2fa", "disable")
	require.NoError(t, res.err)
	assert.Equal(t, "Second factor disabled\n", res.stdout)
	assert.False(t, env.authority.SecondFactorEnabled("customer@bank.test"))
}

func TestRevokedCredentialEndsSession(t *testing.T) {
	env := newCLIEnv(t)

	require.NoError(t, env.run(t, demoPassword+"\n", "login", "--email", "customer@bank.test").err)
	env.authority.RevokeBearers()

	res := env.run(t, "", "2fa", "setup")
	assert.ErrorIs(t, res.err, goAuthClient.ErrUnauthorized)

	res = env.run(t, "", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "state: anonymous")
}

func TestConfigInitAndShow(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.configDir, "conf", "client.yaml")

	res := env.run(t, "", "--config", path, "config", "init")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Wrote "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := goAuthClient.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, env.authority.URL, cfg.Authority.BaseURL)
	assert.Equal(t, env.storeFile, cfg.Store.FilePath)

	res = env.run(t, "", "--config", path, "config", "init")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already exists")

	require.NoError(t, env.run(t, "", "--config", path, "config", "init", "--force").err)

	res = env.run(t, "", "--config", path, "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "base_url: "+env.authority.URL)
	assert.Contains(t, res.stdout, "backend: file")
}

func TestConfigShowHidesSealKey(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.configDir, "sealed.yaml")
	key := strings.Repeat("ab", 32)
	require.NoError(t, os.WriteFile(path, []byte("store:\n  seal_key: "+key+"\n"), 0o600))

	res := env.run(t, "", "--config", path, "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "seal_key is set and hidden")
	assert.NotContains(t, res.stdout, key)
}

func TestExplicitConfigMustExist(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "", "--config", filepath.Join(env.configDir, "missing.yaml"), "status")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, os.ErrNotExist)
}

func TestInvalidBackendFlag(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "", "--store", "etcd", "status")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid configuration")
}

func TestStubAuthorityServesDemoAccounts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	done := make(chan error, 1)
	go func() { done <- serveStub(ctx, ln, cmd) }()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	login := rootCmd()
	var loginOut bytes.Buffer
	login.SetOut(&loginOut)
	login.SetErr(&bytes.Buffer{})
	login.SetIn(strings.NewReader(demoPassword + "\n"))
	login.SetArgs([]string{
		"--authority", "http://" + ln.Addr().String(),
		"--store", "memory",
		"login", "--email", "admin@bank.test",
	})
	require.NoError(t, login.ExecuteContext(context.Background()))
	assert.Contains(t, loginOut.String(), "Signed in as admin@bank.test (ADMIN)")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stub authority did not shut down")
	}
	assert.Contains(t, out.String(), "stub authority listening on http://"+ln.Addr().String())
	assert.Contains(t, out.String(), "mfa@bank.test")
}

func TestVersion(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, appName+" version "+Version+"\n", out.String())
}
