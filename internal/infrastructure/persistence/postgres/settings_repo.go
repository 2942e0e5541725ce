package postgres

import (
	"context"
	"fmt"

	"github.com/ChatSift/Social/internal/domain/leveling"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SettingsRepository implements leveling.SettingsRepository for PostgreSQL.
type SettingsRepository struct {
	conn *Connection
}

var _ leveling.SettingsRepository = (*SettingsRepository)(nil)

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(conn *Connection) *SettingsRepository {
	return &SettingsRepository{conn: conn}
}

// Get returns the stored settings of a guild.
func (r *SettingsRepository) Get(ctx context.Context, guildID string) (*leveling.SettingsRecord, error) {
	query := `
		SELECT guild_id, required_messages, required_messages_timespan, xp_gain,
			   required_xp_base, required_xp_multiplier,
			   level_up_notification_mode, level_up_notification_fallback_channel_id,
			   level_up_notification_message
		FROM guild_settings
		WHERE guild_id = $1
	`

	var rec leveling.SettingsRecord
	err := r.conn.QueryRow(ctx, query, guildID).Scan(
		&rec.GuildID,
		&rec.RequiredMessages,
		&rec.RequiredMessagesTimespan,
		&rec.XPGain,
		&rec.RequiredXPBase,
		&rec.RequiredXPMultiplier,
		&rec.LevelUpNotificationMode,
		&rec.LevelUpNotificationFallbackChannelID,
		&rec.LevelUpNotificationMessage,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, leveling.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}

	// A zero timespan written by older tooling means "no window".
	if rec.RequiredMessagesTimespan != nil && *rec.RequiredMessagesTimespan == 0 {
		rec.RequiredMessagesTimespan = nil
	}

	return &rec, nil
}

// ClearFallbackChannel unsets the level-up fallback channel.
func (r *SettingsRepository) ClearFallbackChannel(ctx context.Context, guildID string) error {
	query := `
		UPDATE guild_settings
		SET level_up_notification_fallback_channel_id = NULL, updated_at = NOW()
		WHERE guild_id = $1
	`

	if _, err := r.conn.Exec(ctx, query, guildID); err != nil {
		return fmt.Errorf("failed to clear fallback channel: %w", err)
	}
	return nil
}
