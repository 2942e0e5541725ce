package leveling

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// SettingsRepository reads guild settings.
type SettingsRepository interface {
	// Get returns the stored settings row.
	// Returns ErrSettingsNotFound if the guild was never configured.
	Get(ctx context.Context, guildID string) (*SettingsRecord, error)

	// ClearFallbackChannel unsets the level-up fallback channel.
	ClearFallbackChannel(ctx context.Context, guildID string) error
}

// ProgressRepository stores per-member XP.
type ProgressRepository interface {
	// Find returns the member's record without creating it.
	// Returns a shared.ErrNotFound error if the member has no record.
	Find(ctx context.Context, guildID, userID string) (*UserProgress, error)

	// Ensure returns the member's record, creating an empty one if absent.
	Ensure(ctx context.Context, guildID, userID string) (*UserProgress, error)

	// IncrementXP atomically adds delta and returns the new total.
	IncrementXP(ctx context.Context, guildID, userID string, delta int64) (int64, error)
}

// RewardRepository reads the reward catalog.
type RewardRepository interface {
	// ListByGuild returns every reward of the guild ordered by level.
	ListByGuild(ctx context.Context, guildID string) ([]Reward, error)
}

// ChannelRepository reads channel overrides.
type ChannelRepository interface {
	// FindByIDs returns the overrides that exist among channelIDs, in any order.
	FindByIDs(ctx context.Context, guildID string, channelIDs []string) ([]ChannelOverride, error)
}

// RoleMultiplierRepository reads role XP multipliers.
type RoleMultiplierRepository interface {
	// FindByIDs returns the multipliers that exist among roleIDs.
	FindByIDs(ctx context.Context, guildID string, roleIDs []string) ([]RoleMultiplier, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// EXTERNAL COLLABORATORS
// ══════════════════════════════════════════════════════════════════════════════

// RoleService reads and replaces member roles.
type RoleService interface {
	MemberRoles(ctx context.Context, guildID, userID string) ([]MemberRole, error)
	SetMemberRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
}

// Notifier delivers level-up messages. Implementations return
// ErrChannelNotFound when the channel no longer exists.
type Notifier interface {
	SendToChannel(ctx context.Context, channelID, content string) error
	SendDirect(ctx context.Context, userID, content string) error
}
