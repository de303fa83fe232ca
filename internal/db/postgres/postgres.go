// Package postgres manages the PostgreSQL connection pool.
// pgxpool is used so the scheduler, the delivery loop and the bot poller
// can share one handle safely.
//
// The pool reconnects on its own and caps the number of connections.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	log "github.com/sirupsen/logrus"
)

// Options are the pool settings taken from the configuration.
type Options struct {
	URL      string
	MaxConns int32
	MinConns int32
	// Echo traces every query into the debug log
	Echo bool
	// Schema, when set, becomes the search_path of every connection
	Schema string
}

// NewPool creates a new pool and checks that the database answers.
//
// Parameters:
//   - ctx: context for cancelling the connect
//   - opts: connection settings
//
// Example:
//
//	pool, err := postgres.NewPool(ctx, postgres.Options{URL: cfg.Common.DatabaseURL})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
func NewPool(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	poolConfig.MinConns = opts.MinConns
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute
	if opts.Schema != "" {
		poolConfig.ConnConfig.RuntimeParams["search_path"] = opts.Schema
	}

	if opts.Echo {
		poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   tracelog.LoggerFunc(echoQuery),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database is unreachable: %w", err)
	}

	log.Info("connected to PostgreSQL")
	return pool, nil
}

func echoQuery(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	entry := log.WithField("component", "db").WithFields(log.Fields(data))
	if level <= tracelog.LogLevelError {
		entry.Warn(msg)
		return
	}
	entry.Debug(msg)
}
