package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/token"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// reasonError shows the user-facing failure reason while keeping the cause
// available to errors.Is.
type reasonError struct {
	err error
}

func (e *reasonError) Error() string { return goAuthClient.FailureReason(e.err) }
func (e *reasonError) Unwrap() error { return e.err }

func userError(err error) error {
	if err == nil {
		return nil
	}
	return &reasonError{err: err}
}

var errNoInput = errors.New("no input")

func prompt(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", errNoInput
	}
	return line, nil
}

/*
====================================
LOGIN
====================================
*/

func loginCmd(g *globals) *cobra.Command {
	var (
		email  string
		backup bool
		next   string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential",
		Long: `Sign in with email and password read from standard input. When the
account has a second factor enabled, the verification code is prompted for
until it is accepted or the challenge ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				if email, err = prompt(cmd, in, "Email: "); err != nil {
					return err
				}
			}
			password, err := prompt(cmd, in, "Password: ")
			if err != nil {
				return err
			}

			res, err := client.SubmitCredentials(cmd.Context(), email, password)
			if err != nil {
				return userError(err)
			}
			user := res.User
			if res.SecondFactorRequired {
				if user, err = completeSecondFactor(cmd, client, in, backup); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Signed in as %s (%s)\n", user.Email, user.Role)
			fmt.Fprintf(out, "Next: %s\n", client.NextRoute(next))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted when empty)")
	cmd.Flags().BoolVar(&backup, "backup", false, "Answer the second factor with a backup code")
	cmd.Flags().StringVar(&next, "next", "", "Route requested before signing in")
	return cmd
}

func completeSecondFactor(cmd *cobra.Command, client *goAuthClient.Client, in *bufio.Reader, backup bool) (*goAuthClient.User, error) {
	label := "Verification code: "
	if backup {
		label = "Backup code: "
	}
	for {
		code, err := prompt(cmd, in, label)
		if err != nil {
			client.CancelSecondFactor()
			return nil, err
		}
		user, err := client.SubmitSecondFactor(cmd.Context(), goAuthClient.SecondFactorSubmission{
			Code:         code,
			IsBackupCode: backup,
		})
		if err == nil {
			return user, nil
		}
		if errors.Is(err, goAuthClient.ErrSecondFactorRejected) {
			fmt.Fprintln(cmd.ErrOrStderr(), goAuthClient.FailureReason(err))
			continue
		}
		return nil, userError(err)
	}
}

/*
====================================
SESSION
====================================
*/

func statusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			s := client.Session()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state: %s\n", s.State)
			if s.Authenticated() {
				fmt.Fprintf(out, "user: %s\n", s.User.Email)
				fmt.Fprintf(out, "role: %s\n", s.User.Role)
				if s.User.CustomerID != "" {
					fmt.Fprintf(out, "customer: %s\n", s.User.CustomerID)
				}
				if s.User.Name != "" {
					fmt.Fprintf(out, "name: %s\n", s.User.Name)
				}
			}
			fmt.Fprintf(out, "landing: %s\n", client.LandingPath())
			return nil
		},
	}
}

func tokenCmd(g *globals) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print the stored credential",
		Long: `Print the subject and expiry of the stored credential. With --reveal the
raw bearer token is printed instead, for use in scripts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			raw, err := client.AccessToken(cmd.Context())
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			if reveal {
				fmt.Fprintln(out, raw)
				return nil
			}
			claims, err := token.Decode(raw, time.Now())
			if err != nil {
				return userError(goAuthClient.ErrMalformedToken)
			}
			fmt.Fprintf(out, "subject: %s\n", claims.SubjectID)
			fmt.Fprintf(out, "expires: %s\n", claims.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the raw bearer token")
	return cmd
}

func logoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session and clear the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Logout(cmd.Context()); err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func nextCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "next [path]",
		Short: "Resolve a post-login redirect target",
		Long: `Print the route a browser would be sent to after signing in with the
given "next" value. Unsafe or missing targets resolve to the landing route of
the current session.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			var candidate string
			if len(args) == 1 {
				candidate = args[0]
			}
			fmt.Fprintln(cmd.OutOrStdout(), client.NextRoute(candidate))
			return nil
		},
	}
}

/*
====================================
SECOND FACTOR
====================================
*/

func secondFactorCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "2fa",
		Short: "Manage the second factor of the signed-in account",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "setup",
			Short: "Start TOTP enrollment",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := g.openClient(cmd)
				if err != nil {
					return err
				}
				defer client.Close()

				setup, err := client.StartSetup(cmd.Context())
				if err != nil {
					return userError(err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "secret: %s\n", setup.Secret)
				fmt.Fprintf(out, "uri: %s\n", setup.QRPayload)
				fmt.Fprintf(out, "Confirm with: %s 2fa verify <code>\n", appName)
				return nil
			},
		},
		&cobra.Command{
			Use:   "verify <code>",
			Short: "Confirm enrollment and print backup codes",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := g.openClient(cmd)
				if err != nil {
					return err
				}
				defer client.Close()

				batch, err := client.VerifySetup(cmd.Context(), args[0])
				if err != nil {
					return userError(err)
				}
				codes, ok := batch.Reveal()
				if !ok {
					return userError(goAuthClient.ErrServerError)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Second factor enabled. Backup codes (shown once):")
				for _, code := range codes {
					fmt.Fprintf(out, "  %s\n", code)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Disable the second factor",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := g.openClient(cmd)
				if err != nil {
					return err
				}
				defer client.Close()

				if err := client.Disable(cmd.Context()); err != nil {
					return userError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Second factor disabled")
				return nil
			},
		},
	)
	return cmd
}

/*
====================================
CONFIG
====================================
*/

func configCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.configPath
			if path == "" {
				path = defaultConfigPath()
			}
			if path == "" {
				return errors.New("no config path: pass --config")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg, err := g.defaults()
			if err != nil {
				return err
			}
			if err := goAuthClient.SaveConfigFile(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Store.SealKey) > 0 {
				cfg.Store.SealKey = nil
				fmt.Fprintln(cmd.OutOrStdout(), "# store.seal_key is set and hidden")
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
