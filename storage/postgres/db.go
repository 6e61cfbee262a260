// Package postgres implements the fragment index and document catalog on
// PostgreSQL with the pgvector extension. Conversations stay in the embedded
// store regardless of backend.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDimensions matches nomic-embed-text.
const DefaultDimensions = 768

// DB is a connection pool with the ragline schema applied.
type DB struct {
	pool       *pgxpool.Pool
	dimensions int
	logger     *slog.Logger
}

// Option configures Open.
type Option func(*options) error

type options struct {
	dimensions   int
	connAttempts int
	connDelay    time.Duration
	logger       *slog.Logger
}

// WithDimensions sets the embedding column size.
// Default is DefaultDimensions.
func WithDimensions(dims int) Option {
	return func(o *options) error {
		if dims < 1 {
			return errors.New("dimensions must be greater than 0")
		}
		o.dimensions = dims
		return nil
	}
}

// WithConnectRetry sets how often Open retries an unreachable server.
// Default is 1 attempt.
func WithConnectRetry(attempts int, delay time.Duration) Option {
	return func(o *options) error {
		if attempts < 1 {
			return errors.New("attempts must be greater than 0")
		}
		o.connAttempts = attempts
		o.connDelay = delay
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// Open connects to url, enables pgvector, and creates the schema if needed.
func Open(ctx context.Context, url string, opts ...Option) (*DB, error) {
	o := &options{
		dimensions:   DefaultDimensions,
		connAttempts: 1,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if url == "" {
		return nil, errors.New("postgres url is required")
	}

	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}

	logger := o.logger.With("component", "postgres")
	var pool *pgxpool.Pool
	for attempt := 1; ; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		if attempt >= o.connAttempts {
			return nil, fmt.Errorf("connect to postgres after %d attempts: %w", attempt, err)
		}
		logger.Warn("postgres not reachable, retrying", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.connDelay):
		}
	}

	db := &DB{pool: pool, dimensions: o.dimensions, logger: logger}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected to postgres", "dimensions", o.dimensions)
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS fragments (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL,
			owner_id TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			embedding vector(%d) NOT NULL
		)`, db.dimensions),
		"CREATE INDEX IF NOT EXISTS idx_fragments_owner ON fragments (owner_id)",
		"CREATE INDEX IF NOT EXISTS idx_fragments_source ON fragments (source)",
		// hnsw builds on an empty table; ivfflat needs rows to pick its lists.
		"CREATE INDEX IF NOT EXISTS idx_fragments_embedding ON fragments USING hnsw (embedding vector_cosine_ops)",
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			filename TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			chunk_count INTEGER NOT NULL,
			document_type TEXT NOT NULL,
			owner_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (filename, content_hash)
		)`,
		"CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (owner_id)",
	}
	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// Close closes the pool.
func (db *DB) Close() {
	db.pool.Close()
}
