// Package cli implements the netguard command line: one-off requests,
// uploads and token management over a configured netguard.Client.
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/netguard"
	"github.com/ambiyansyah-risyal/netguard/internal/config"
	"github.com/ambiyansyah-risyal/netguard/internal/logging"
	"github.com/ambiyansyah-risyal/netguard/internal/tokenstore"
)

// Env carries the injectable dependencies of every command.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	ConfigPath string
	LogLevel   string
}

// DefaultEnv writes to the process streams and reads netguard.yaml.
func DefaultEnv() *Env {
	return &Env{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		ConfigPath: "netguard.yaml",
	}
}

// app is everything a command needs, opened from the configuration.
type app struct {
	cfg     *config.Config
	logger  netguard.Logger
	store   *tokenstore.Store
	client  *netguard.Client
	monitor *netguard.ReachabilityMonitor
	closers []io.Closer
}

func (e *Env) open(ctx context.Context) (*app, error) {
	cfg, err := config.Load(e.ConfigPath)
	if err != nil {
		return nil, err
	}
	if e.LogLevel != "" {
		cfg.Log.Level = e.LogLevel
	}
	cfg.Log.Console = e.Stderr

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	store, err := tokenstore.Open(cfg.TokenStore.DSN, tokenstore.Options{TablePrefix: cfg.TokenStore.TablePrefix, Logger: logger})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append([]io.Closer{store}, a.closers...)

	opts, err := cfg.ToOptions(logger, store)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.monitor = cfg.ReachabilityMonitor(logger); a.monitor != nil {
		a.monitor.Start(ctx)
		opts = append(opts, netguard.WithReachability(a.monitor))
	}

	a.client = netguard.New(opts...)
	if err := a.client.ValidationError(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close stops the monitor and releases the store and log file.
func (a *app) Close() error {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// withApp opens the app for the duration of fn.
func (e *Env) withApp(cmd *cobra.Command, fn func(*app) error) error {
	a, err := e.open(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// NewRootCmd assembles the command tree.
func NewRootCmd(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "netguard",
		Short:         "Send guarded HTTP requests: throttling, retries, token resolution and error classification",
		Version:       netguard.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&env.ConfigPath, "config", env.ConfigPath, "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&env.LogLevel, "log-level", env.LogLevel, "log level override (debug, info, warn, error)")

	root.AddCommand(RequestCmd(env))
	root.AddCommand(UploadCmd(env))
	root.AddCommand(TokenCmd(env))
	root.AddCommand(VersionCmd(env))
	return root
}
