package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	var last int
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status returns every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_leveling",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_role_multipliers",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: LEVELING
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS guild_settings (
    guild_id TEXT PRIMARY KEY,

    -- The four numeric fields are written together by the settings API;
    -- NULLs mean the guild has not finished configuration.
    required_messages INTEGER,
    required_messages_timespan INTEGER,
    xp_gain INTEGER,
    required_xp_base INTEGER,
    required_xp_multiplier INTEGER,

    level_up_notification_mode VARCHAR(10) NOT NULL DEFAULT 'None',
    level_up_notification_fallback_channel_id TEXT,
    level_up_notification_message TEXT,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_required_messages CHECK (required_messages IS NULL OR required_messages BETWEEN 1 AND 15),
    CONSTRAINT valid_timespan CHECK (required_messages_timespan IS NULL OR required_messages_timespan BETWEEN 1 AND 60),
    CONSTRAINT valid_xp_gain CHECK (xp_gain IS NULL OR xp_gain >= 1),
    CONSTRAINT valid_xp_base CHECK (required_xp_base IS NULL OR required_xp_base BETWEEN 0 AND 100),
    CONSTRAINT valid_xp_multiplier CHECK (required_xp_multiplier IS NULL OR required_xp_multiplier BETWEEN 1 AND 100),
    CONSTRAINT valid_notification_mode CHECK (level_up_notification_mode IN ('None', 'DM', 'Channel'))
);

CREATE TABLE IF NOT EXISTS users (
    guild_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    xp BIGINT NOT NULL DEFAULT 0,
    ignored BOOLEAN NOT NULL DEFAULT FALSE,

    PRIMARY KEY (guild_id, user_id),
    CONSTRAINT valid_xp CHECK (xp >= 0)
);

CREATE INDEX IF NOT EXISTS idx_users_guild_xp ON users(guild_id, xp DESC);

CREATE TABLE IF NOT EXISTS rewards (
    guild_id TEXT NOT NULL,
    role_id TEXT NOT NULL,
    level INTEGER NOT NULL,
    clean BOOLEAN NOT NULL DEFAULT FALSE,

    PRIMARY KEY (guild_id, role_id),
    CONSTRAINT valid_level CHECK (level >= 1)
);

CREATE INDEX IF NOT EXISTS idx_rewards_guild_level ON rewards(guild_id, level);

CREATE TABLE IF NOT EXISTS channels (
    guild_id TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    ignored BOOLEAN NOT NULL DEFAULT FALSE,
    multiplier INTEGER,

    PRIMARY KEY (guild_id, channel_id),
    CONSTRAINT valid_multiplier CHECK (multiplier IS NULL OR multiplier >= 1)
);
`

const migration001Down = `
DROP TABLE IF EXISTS channels;
DROP TABLE IF EXISTS rewards;
DROP TABLE IF EXISTS users;
DROP TABLE IF EXISTS guild_settings;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ROLE MULTIPLIERS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS roles (
    guild_id TEXT NOT NULL,
    role_id TEXT NOT NULL,
    multiplier INTEGER NOT NULL,

    PRIMARY KEY (guild_id, role_id),
    CONSTRAINT valid_multiplier CHECK (multiplier BETWEEN 1 AND 10)
);
`

const migration002Down = `
DROP TABLE IF EXISTS roles;
`
