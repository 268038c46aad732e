// Package postgres provides a PostgreSQL writer for the download manifest.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/invoicedl/pkg/api"
	"github.com/ArionMiles/invoicedl/pkg/writer/buffered"
)

//go:embed 001_create_invoice_downloads.sql
var migrationSQL string

// Config holds the PostgreSQL writer configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// BatchSize is the number of artifacts to buffer before writing.
	BatchSize int
	// FlushInterval is the time between automatic flushes.
	FlushInterval time.Duration

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Writer records artifacts in a PostgreSQL table.
type Writer struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	buffered  *buffered.Writer
	closeOnce sync.Once
}

// New connects to PostgreSQL and applies the manifest migration.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Set defaults
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 4
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	w := &Writer{
		pool:   pool,
		logger: logger,
	}

	if err := w.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "postgres_buffer"))

	return w, nil
}

// runMigrations runs the database migrations.
func (w *Writer) runMigrations(ctx context.Context) error {
	w.logger.Info("running database migrations")

	if _, err := w.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}

	w.logger.Info("migrations completed successfully")
	return nil
}

// Write consumes artifacts from the channel and records them in PostgreSQL.
// The pool is closed when Write returns.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Artifact) error {
	defer func() { _ = w.Close() }()
	return w.buffered.Write(ctx, in)
}

// flushBatch writes a batch of artifacts in one transaction. Re-recording an
// invoice within the same run updates its row.
func (w *Writer) flushBatch(artifacts []*api.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range artifacts {
		batch.Queue(`
			INSERT INTO invoice_downloads (
				run_id, identifier, path, size_bytes, pages, fetched_at
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (run_id, identifier) DO UPDATE SET
				path = EXCLUDED.path,
				size_bytes = EXCLUDED.size_bytes,
				pages = EXCLUDED.pages,
				fetched_at = EXCLUDED.fetched_at,
				updated_at = NOW()
		`,
			a.RunID,
			a.Identifier,
			a.Path,
			a.SizeBytes,
			a.Pages,
			a.FetchedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range artifacts {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("inserting %s: %w", artifacts[i].Identifier, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	w.logger.Info("wrote manifest batch", "count", len(artifacts))
	return nil
}

// CountRun returns how many invoices are recorded for a run.
func (w *Writer) CountRun(ctx context.Context, runID string) (int, error) {
	var n int
	if err := w.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoice_downloads WHERE run_id = $1`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting run %s: %w", runID, err)
	}
	return n, nil
}

// Close closes the database connection pool. It is safe to call more than once.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		if w.pool != nil {
			w.pool.Close()
			w.logger.Info("closed PostgreSQL connection pool")
		}
	})
	return nil
}
