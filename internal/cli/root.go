// Package cli is the pgdocs command line: ingest, watch, serve and migrate.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/SzymonLeja/pgdocs-ingest/internal/config"
	"github.com/SzymonLeja/pgdocs-ingest/internal/corpus"
	"github.com/SzymonLeja/pgdocs-ingest/internal/db"
	"github.com/SzymonLeja/pgdocs-ingest/internal/embeddings"
	"github.com/SzymonLeja/pgdocs-ingest/internal/ingest"
	"github.com/SzymonLeja/pgdocs-ingest/internal/jobs"
	"github.com/SzymonLeja/pgdocs-ingest/internal/tokenizer"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "pgdocs",
	Short: "Build and publish the PostgreSQL documentation corpus",
	Long: `pgdocs chunks the markdown build of the PostgreSQL documentation,
embeds every chunk and publishes one docs version at a time into Postgres.
Other versions already in the corpus are carried over untouched.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")
}

// Execute runs the command named by os.Args.
func Execute() error {
	return rootCmd.Execute()
}

func parseVersion(arg string) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("version must be a positive integer, got %q", arg)
	}
	return v, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	slog.SetDefault(logger)

	pool, err := db.Connect(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, pool: pool}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

func (a *app) store() *corpus.Store {
	return corpus.NewStore(a.pool, corpus.DefaultTables, a.logger)
}

func (a *app) ingestService() (*ingest.Service, error) {
	tok, err := tokenizer.NewTiktoken(a.cfg.TokenizerEncoding)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.FromConfig(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	return ingest.NewService(
		a.cfg,
		a.store(),
		db.NewAdvisoryLock(a.pool, a.cfg.LockKey),
		jobs.NewService(a.pool),
		embedder,
		tok,
		a.logger,
	), nil
}
