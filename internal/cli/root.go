package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/querydeck/internal/metrics"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	Database    string
	ConfigPath  string
	Catalog     string
	MetricsAddr string

	// DefaultLimit caps search results when no --limit is given. Zero
	// leaves searches unpaged. Only settable through the config file.
	DefaultLimit int

	// LogLevel is the config file level; --verbose forces debug.
	LogLevel string

	logger  *slog.Logger
	metrics *http.Server
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultDatabase is the database path used when neither --db nor the
// config file names one.
const DefaultDatabase = "querydeck.db"

// NewRootCommand creates the root command for the querydeck CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "querydeck",
		Short: "querydeck - dynamic queries with cache-consistent bulk mutations",
		Long: `Compose member searches from optional inputs, run them against SQLite,
and apply bulk updates and deletes that invalidate cached entities.

Every bulk mutation records an invalidation signal in the database
journal before the command returns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.resolve(cmd); err != nil {
				return err
			}
			return opts.startMetrics(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.stopMetrics()
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Database, "db", DefaultDatabase, "path to SQLite database")
	flags.StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	flags.StringVar(&opts.Catalog, "catalog", "", "path to CUE entity catalog (default: built-in)")
	flags.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	// Add subcommands
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve validates flags, merges the config file, and installs the
// logger. Flags set on the command line win over config values.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	if o.ConfigPath != "" {
		cfg, err := LoadConfig(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		o.apply(cfg, cmd)
	}

	level, err := parseLevel(o.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// apply copies config values into options whose flags were not set.
func (o *RootOptions) apply(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if cfg.Database != "" && !flags.Changed("db") {
		o.Database = cfg.Database
	}
	if cfg.Catalog != "" && !flags.Changed("catalog") {
		o.Catalog = cfg.Catalog
	}
	if cfg.MetricsAddr != "" && !flags.Changed("metrics-addr") {
		o.MetricsAddr = cfg.MetricsAddr
	}
	o.DefaultLimit = cfg.DefaultLimit
	o.LogLevel = cfg.LogLevel
}

// Logger returns the command logger, or slog.Default() before the
// options were resolved.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}

func (o *RootOptions) startMetrics(cmd *cobra.Command) error {
	if o.MetricsAddr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", o.MetricsAddr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen for metrics", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	o.metrics = srv

	logger := o.Logger()
	logger.Info("serving metrics", "addr", ln.Addr().String(), "command", cmd.Name())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return nil
}

func (o *RootOptions) stopMetrics() error {
	if o.metrics == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := o.metrics.Shutdown(ctx)
	o.metrics = nil
	return err
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
