package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ChatSift/Social/internal/domain/leveling"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARDS
// ══════════════════════════════════════════════════════════════════════════════

// RewardRepository implements leveling.RewardRepository for PostgreSQL.
type RewardRepository struct {
	conn *Connection
}

var _ leveling.RewardRepository = (*RewardRepository)(nil)

// NewRewardRepository creates a new RewardRepository.
func NewRewardRepository(conn *Connection) *RewardRepository {
	return &RewardRepository{conn: conn}
}

// ListByGuild returns the guild's rewards ordered by level.
func (r *RewardRepository) ListByGuild(ctx context.Context, guildID string) ([]leveling.Reward, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT guild_id, role_id, level, clean
		FROM rewards
		WHERE guild_id = $1
		ORDER BY level, role_id
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}

	rewards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leveling.Reward, error) {
		var rw leveling.Reward
		err := row.Scan(&rw.GuildID, &rw.RoleID, &rw.Level, &rw.Clean)
		return rw, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rewards: %w", err)
	}
	return rewards, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL OVERRIDES
// ══════════════════════════════════════════════════════════════════════════════

// ChannelRepository implements leveling.ChannelRepository for PostgreSQL.
type ChannelRepository struct {
	conn *Connection
}

var _ leveling.ChannelRepository = (*ChannelRepository)(nil)

// NewChannelRepository creates a new ChannelRepository.
func NewChannelRepository(conn *Connection) *ChannelRepository {
	return &ChannelRepository{conn: conn}
}

// FindByIDs returns the overrides stored for any of channelIDs.
func (r *ChannelRepository) FindByIDs(ctx context.Context, guildID string, channelIDs []string) ([]leveling.ChannelOverride, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}

	rows, err := r.conn.Query(ctx, `
		SELECT guild_id, channel_id, ignored, multiplier
		FROM channels
		WHERE guild_id = $1 AND channel_id = ANY($2)
	`, guildID, channelIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find channel overrides: %w", err)
	}

	overrides, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leveling.ChannelOverride, error) {
		var o leveling.ChannelOverride
		err := row.Scan(&o.GuildID, &o.ChannelID, &o.Ignored, &o.Multiplier)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan channel overrides: %w", err)
	}
	return overrides, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLE MULTIPLIERS
// ══════════════════════════════════════════════════════════════════════════════

// RoleMultiplierRepository implements leveling.RoleMultiplierRepository.
type RoleMultiplierRepository struct {
	conn *Connection
}

var _ leveling.RoleMultiplierRepository = (*RoleMultiplierRepository)(nil)

// NewRoleMultiplierRepository creates a new RoleMultiplierRepository.
func NewRoleMultiplierRepository(conn *Connection) *RoleMultiplierRepository {
	return &RoleMultiplierRepository{conn: conn}
}

// FindByIDs returns the multipliers stored for any of roleIDs.
func (r *RoleMultiplierRepository) FindByIDs(ctx context.Context, guildID string, roleIDs []string) ([]leveling.RoleMultiplier, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	rows, err := r.conn.Query(ctx, `
		SELECT guild_id, role_id, multiplier
		FROM roles
		WHERE guild_id = $1 AND role_id = ANY($2)
	`, guildID, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find role multipliers: %w", err)
	}

	multipliers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leveling.RoleMultiplier, error) {
		var m leveling.RoleMultiplier
		err := row.Scan(&m.GuildID, &m.RoleID, &m.Multiplier)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan role multipliers: %w", err)
	}
	return multipliers, nil
}
