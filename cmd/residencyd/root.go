package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"residencyd/internal/config"
)

// options are the command-line overrides. Only flags the user actually set
// are applied on top of the file and environment.
type options struct {
	configPath   string
	addr         string
	registryFile string
	deviceIndex  int
	logLevel     string
	logFormat    string
	zombie       bool
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&options{}) }

// newRootCmdWith constructs the command tree bound to opts.
func newRootCmdWith(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "residencyd",
		Short:         "GPU model residency tracking and ghost-memory detection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "Config file (.yaml, .yml, .json, .toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: json|console")
	pf.IntVar(&opts.deviceIndex, "device", 0, "Index of the tracked accelerator")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, poller and zombie killer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			log, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	serve.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address, e.g. :8080")
	serve.Flags().StringVar(&opts.registryFile, "registry", "", "Model registry file merged over the builtin line-up")
	serve.Flags().BoolVar(&opts.zombie, "zombie-killer", false, "Enable the zombie killer at startup")

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Print the accelerator listing and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return printDiagnostics(ctx, cmd.OutOrStdout(), cfg.DeviceIndex, log)
		},
	}

	root.AddCommand(serve, probeCmd)
	return root
}

// loadConfig resolves settings in order: file, environment, flags. The
// result has defaults applied and is validated.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	var cfg config.Config
	if opts.configPath != "" {
		c, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	cfg, err := cfg.FromEnv()
	if err != nil {
		return cfg, err
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("addr") {
		cfg.Addr = opts.addr
	}
	if changed("registry") {
		cfg.RegistryFile = opts.registryFile
	}
	if changed("device") {
		cfg.DeviceIndex = opts.deviceIndex
	}
	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if changed("zombie-killer") {
		cfg.ZombieKillerEnabled = opts.zombie
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. format is json or console.
func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "residencyd").Logger(), nil
}
