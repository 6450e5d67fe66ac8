package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/config"
	"github.com/Yrrrrrf/ts-forge/internal/introspect"
	"github.com/Yrrrrrf/ts-forge/internal/logging"
	"github.com/Yrrrrrf/ts-forge/internal/metadata"
	"github.com/Yrrrrrf/ts-forge/internal/request"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

// app carries the global flags and the state built from them
type app struct {
	configPath string
	baseURL    string
	dbURL      string
	schemas    []string
	logLevel   string
	devLog     bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tsforge",
		Short: "Generate a typed TypeScript client from a database-backed REST API",
		Long: `tsforge discovers the schema metadata a REST backend exposes (tables, views, enums,
functions) and generates TypeScript declarations for it. Metadata can also be read
directly from PostgreSQL, MySQL or SQLite with --db-url.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default: "+config.DefaultFile+" if present)")
	flags.StringVar(&a.baseURL, "base-url", "", "REST backend root URL")
	flags.StringVar(&a.dbURL, "db-url", "", "Read metadata directly from a database (postgres://, mysql://, sqlite://)")
	flags.StringSliceVarP(&a.schemas, "schemas", "s", nil, "Schemas to load (comma-separated, default: all)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&a.devLog, "dev-log", false, "Human-readable development logging")

	root.AddCommand(
		newGenerateCmd(a),
		newDumpCmd(a),
		newStatsCmd(a),
		newDescribeCmd(a),
		newHealthCmd(a),
	)
	return root
}

// setup loads configuration, applies flag overrides and builds the logger
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = strings.TrimRight(a.baseURL, "/")
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = a.dbURL
	}
	if flags.Changed("schemas") {
		cfg.Schemas = a.schemas
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("dev-log") {
		cfg.DevLog = a.devLog
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.DevLog)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// client builds the request primitive for the configured backend
func (a *app) client() (*request.Client, error) {
	if a.cfg.BaseURL == "" {
		return nil, fmt.Errorf("this command needs a backend: set --base-url or TSFORGE_BASE_URL")
	}
	return request.NewClient(a.cfg.ClientConfig(), a.logger)
}

// fetchSchemas loads metadata from the database when a database URL is
// configured, otherwise from the backend's discovery endpoint
func (a *app) fetchSchemas(ctx context.Context) ([]schema.SchemaMetadata, error) {
	if a.cfg.DatabaseURL != "" {
		src, err := introspect.Open(ctx, a.cfg.DatabaseURL, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			if err := src.Close(ctx); err != nil {
				a.logger.Warn("Failed to close database connection", zap.Error(err))
			}
		}()
		return src.FetchSchemas(ctx, a.cfg.Schemas)
	}

	client, err := a.client()
	if err != nil {
		return nil, err
	}
	return metadata.NewFetcher(client, a.logger).FetchSchemas(ctx, a.cfg.Schemas)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
