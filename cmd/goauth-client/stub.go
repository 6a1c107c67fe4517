package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/authoritytest"
	"github.com/spf13/cobra"
)

// demoPassword is shared by every seeded stub account.
const demoPassword = "correct-password-123"

func demoUsers() []authoritytest.User {
	return []authoritytest.User{
		{ID: "admin-1", Email: "admin@bank.test", Password: demoPassword, Role: "ADMIN", Name: "Ada Admin", TOTPCode: "123456"},
		{ID: "cust-1", Email: "customer@bank.test", Password: demoPassword, Role: "CUSTOMER", CustomerID: "C-100", TOTPCode: "123456"},
		{
			ID: "cust-2", Email: "mfa@bank.test", Password: demoPassword, Role: "CUSTOMER", CustomerID: "C-200",
			SecondFactor: true, TOTPCode: "123456", BackupCodes: []string{"AAAA-1111", "BBBB-2222"},
		},
	}
}

func newDemoAuthority() *authoritytest.Authority {
	a := authoritytest.NewAuthority()
	for _, u := range demoUsers() {
		a.AddUser(u)
	}
	return a
}

func stubAuthorityCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "stub-authority",
		Short: "Serve an in-memory authority for local development",
		Long: `Serve an in-memory authority with seeded demo accounts. Every account
uses the password "` + demoPassword + `" and the fixed TOTP code 123456.
Nothing is persisted; credentials die with the process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return serveStub(ctx, ln, cmd)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	return cmd
}

func serveStub(ctx context.Context, ln net.Listener, cmd *cobra.Command) error {
	srv := &http.Server{
		Handler:           newDemoAuthority(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "stub authority listening on http://%s\n", ln.Addr())
	for _, u := range demoUsers() {
		fmt.Fprintf(out, "  %-20s %-9s second_factor=%t\n", u.Email, u.Role, u.SecondFactor)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
