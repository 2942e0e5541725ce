// Package postgres implements the durable leveling store: guild settings,
// member XP, the reward catalog, channel overrides and role multipliers.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ChatSift/Social/pkg/logger"
)

var (
	// ErrConnectionClosed is returned by every call made after Close.
	ErrConnectionClosed = errors.New("postgres: connection pool is closed")

	// ErrInvalidConfig marks settings that can never produce a pool.
	ErrInvalidConfig = errors.New("postgres: invalid configuration")

	// ErrMigrationFailed wraps migration failures.
	ErrMigrationFailed = errors.New("postgres: migration failed")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds pool settings.
type Config struct {
	// URL is a libpq connection string or postgres:// URL.
	URL string

	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration

	// SlowQuery is the duration above which a statement is logged at warn.
	// Zero disables slow-query logging.
	SlowQuery time.Duration

	// Logger receives query traces. Nil disables tracing.
	Logger *slog.Logger
}

// DefaultConfig returns pool defaults for a single bot process. XP grants
// hold a connection for one statement, so the pool stays small.
func DefaultConfig() Config {
	return Config{
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
		SlowQuery:         250 * time.Millisecond,
	}
}

// PoolConfig translates Config into pgxpool settings. Zero values keep
// the pgx defaults.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse database URL: %w", ErrInvalidConfig, err)
	}

	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}
	if c.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = c.HealthCheckPeriod
	}
	if c.Logger != nil {
		pc.ConnConfig.Tracer = &queryTracer{
			logger: c.Logger.With(logger.Component("postgres")),
			slow:   c.SlowQuery,
		}
	}
	return pc, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Querier is implemented by *Connection and pgx.Tx, so repositories and
// migrations can run inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connection wraps a pgx pool and refuses work once closed.
type Connection struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

var _ Querier = (*Connection)(nil)

// NewConnection creates a pool and verifies it with a ping.
func NewConnection(ctx context.Context, cfg Config) (*Connection, error) {
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}
	return &Connection{pool: pool}, nil
}

// Close closes the pool. Later calls are no-ops.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.pool.Close()
	}
}

// Ping checks that the database answers.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return c.pool.Ping(ctx)
}

// WithTx runs fn in a read-committed transaction, committing when fn
// returns nil and rolling back otherwise.
func (c *Connection) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.closed.Load() {
		return pgconn.CommandTag{}, ErrConnectionClosed
	}
	return c.pool.Exec(ctx, sql, args...)
}

func (c *Connection) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.pool.Query(ctx, sql, args...)
}

func (c *Connection) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if c.closed.Load() {
		return errRow{ErrConnectionClosed}
	}
	return c.pool.QueryRow(ctx, sql, args...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// IsNoRows reports whether err is pgx's "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY TRACING
// ══════════════════════════════════════════════════════════════════════════════

type traceStartKey struct{}

// queryTracer logs failed statements at error and slow ones at warn.
// Successful fast statements go to debug.
type queryTracer struct {
	logger *slog.Logger
	slow   time.Duration
}

type traceStart struct {
	sql   string
	start time.Time
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, traceStart{sql: data.SQL, start: time.Now()})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	ts, ok := ctx.Value(traceStartKey{}).(traceStart)
	if !ok {
		return
	}
	elapsed := time.Since(ts.start)
	attrs := []any{
		slog.String("sql", compactSQL(ts.sql)),
		slog.Duration("elapsed", elapsed),
	}

	switch {
	case data.Err != nil && !IsNoRows(data.Err):
		t.logger.ErrorContext(ctx, "query failed", append(attrs, logger.Err(data.Err))...)
	case t.slow > 0 && elapsed >= t.slow:
		t.logger.WarnContext(ctx, "slow query", append(attrs, slog.Int64("rows", data.CommandTag.RowsAffected()))...)
	default:
		t.logger.DebugContext(ctx, "query", attrs...)
	}
}

// compactSQL collapses the whitespace of multi-line statements for logs.
func compactSQL(sql string) string {
	out := make([]byte, 0, len(sql))
	space := false
	for i := 0; i < len(sql); i++ {
		switch b := sql[i]; b {
		case ' ', '\t', '\n', '\r':
			space = len(out) > 0
		default:
			if space {
				out = append(out, ' ')
				space = false
			}
			out = append(out, b)
		}
	}
	return string(out)
}
