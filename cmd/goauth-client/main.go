// Package main provides the goauth-client binary: a terminal front end for the
// session client. It signs in against the authority, keeps the credential in the
// configured token store and exposes the session to shell scripts.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "goauth-client"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	authority  string
	backend    string
	storeFile  string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Session client for the goAuth authority",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `goauth-client signs in against the authority, stores the bearer
credential and reports the current session.

The credential is kept in the configured token store (a file under the user
config directory by default), so later invocations rehydrate the session
without signing in again.`,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&g.authority, "authority", "", "Authority base URL (overrides config)")
	pf.StringVar(&g.backend, "store", "", "Token store backend: file, memory or redis (overrides config)")
	pf.StringVar(&g.storeFile, "store-file", "", "Token file path for the file backend (overrides config)")
	pf.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		loginCmd(g),
		statusCmd(g),
		tokenCmd(g),
		logoutCmd(g),
		nextCmd(g),
		secondFactorCmd(g),
		configCmd(g),
		stubAuthorityCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ""
	}
	return filepath.Join(dir, appName, "config.yaml")
}

// loadConfig reads the config file and applies flag overrides. A missing file is
// only an error when --config names it explicitly.
func (g *globals) loadConfig() (goAuthClient.Config, error) {
	cfg := goAuthClient.DefaultConfig()

	path := g.configPath
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	if path != "" {
		loaded, err := goAuthClient.LoadConfigFile(path)
		switch {
		case err == nil:
			cfg = loaded
		case !explicit && errors.Is(err, fs.ErrNotExist):
		default:
			return goAuthClient.Config{}, err
		}
	}

	return g.apply(cfg)
}

// defaults is loadConfig without reading any file.
func (g *globals) defaults() (goAuthClient.Config, error) {
	return g.apply(goAuthClient.DefaultConfig())
}

func (g *globals) apply(cfg goAuthClient.Config) (goAuthClient.Config, error) {
	if g.authority != "" {
		cfg.Authority.BaseURL = g.authority
	}
	if g.backend != "" {
		cfg.Store.Backend = g.backend
	}
	if g.storeFile != "" {
		cfg.Store.FilePath = g.storeFile
	}
	if err := cfg.Validate(); err != nil {
		return goAuthClient.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (g *globals) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(g.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openClient builds a client and rehydrates the stored credential.
func (g *globals) openClient(cmd *cobra.Command) (*goAuthClient.Client, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := goAuthClient.New().
		WithConfig(cfg).
		WithLogger(g.logger(cmd)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}
	if err := client.Boot(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return client, nil
}
