// Package query contains read operations of the leveling core.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"

	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEVEL QUERY
// Where a member stands in a guild: level, progress towards the next level
// and the rewards on either side of it.
// ══════════════════════════════════════════════════════════════════════════════

// GetLevelQuery identifies the member to look up.
type GetLevelQuery struct {
	GuildID string
	UserID  string
}

// ErrInvalidQuery marks a query whose ids are missing or not snowflakes.
var ErrInvalidQuery = errors.New("invalid level query")

// Validate checks that both ids are Discord snowflakes.
func (q GetLevelQuery) Validate() error {
	for _, id := range []struct{ name, value string }{
		{"guild_id", q.GuildID},
		{"user_id", q.UserID},
	} {
		if id.value == "" {
			return shared.WrapError("leveling", "GetLevel", shared.ErrInvalidInput,
				id.name+" is required", ErrInvalidQuery)
		}
		if _, err := snowflake.Parse(id.value); err != nil {
			return shared.WrapError("leveling", "GetLevel", shared.ErrInvalidInput,
				fmt.Sprintf("%s %q is not a snowflake", id.name, id.value), ErrInvalidQuery)
		}
	}
	return nil
}

// LevelDTO is the read model behind the level command.
type LevelDTO struct {
	GuildID string
	UserID  string

	Level int64
	XP    int64

	// Progress is the XP earned since the current level was reached.
	Progress int64

	// RequiredForNext is the XP span between the current level and the next.
	RequiredForNext int64

	CurrentRewards []leveling.Reward
	NextRewards    []leveling.Reward
}

// Remaining returns the XP still missing for the next level.
func (d LevelDTO) Remaining() int64 {
	if r := d.RequiredForNext - d.Progress; r > 0 {
		return r
	}
	return 0
}

// GetLevelHandler handles the level query.
type GetLevelHandler struct {
	settings leveling.SettingsRepository
	progress leveling.ProgressRepository
	rewards  leveling.RewardRepository
}

// NewGetLevelHandler creates a new handler.
func NewGetLevelHandler(
	settings leveling.SettingsRepository,
	progress leveling.ProgressRepository,
	rewards leveling.RewardRepository,
) *GetLevelHandler {
	return &GetLevelHandler{
		settings: settings,
		progress: progress,
		rewards:  rewards,
	}
}

// Handle executes the query without writing anything. A member with no
// progress row is reported at 0 XP. Guilds without a complete configuration
// yield an ErrPartialConfiguration error.
func (h *GetLevelHandler) Handle(ctx context.Context, q GetLevelQuery) (*LevelDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rec, err := h.settings.Get(ctx, q.GuildID)
	if err != nil {
		return nil, fmt.Errorf("get_level: failed to load settings: %w", err)
	}
	cfg, err := rec.Resolve()
	if err != nil {
		return nil, fmt.Errorf("get_level: %w", err)
	}
	complete, ok := cfg.(leveling.Complete)
	if !ok {
		return nil, shared.NewDomainError("leveling", "GetLevel", shared.ErrPartialConfiguration,
			"leveling is not fully configured for this guild")
	}
	settings := complete.Settings
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("get_level: %w", err)
	}

	user, err := h.progress.Find(ctx, q.GuildID, q.UserID)
	switch {
	case shared.IsNotFound(err):
		user = &leveling.UserProgress{GuildID: q.GuildID, UserID: q.UserID}
	case err != nil:
		return nil, fmt.Errorf("get_level: failed to load progress: %w", err)
	}

	level, err := leveling.LevelFor(settings.Formula, user.XP)
	if err != nil {
		return nil, fmt.Errorf("get_level: %w", err)
	}

	dto := &LevelDTO{
		GuildID: q.GuildID,
		UserID:  q.UserID,
		Level:   level,
		XP:      user.XP,
	}

	var reached int64
	if level > 0 {
		if reached, err = leveling.CumulativeXPFor(settings.Formula, level); err != nil {
			return nil, fmt.Errorf("get_level: %w", err)
		}
		dto.Progress = user.XP - reached
	} else {
		dto.Progress = user.XP
	}

	next, err := leveling.CumulativeXPFor(settings.Formula, level+1)
	if err != nil {
		return nil, fmt.Errorf("get_level: %w", err)
	}
	dto.RequiredForNext = next - reached

	catalog, err := h.rewards.ListByGuild(ctx, q.GuildID)
	if err != nil {
		return nil, fmt.Errorf("get_level: failed to load rewards: %w", err)
	}
	dto.CurrentRewards = leveling.RewardsUpTo(catalog, level)
	dto.NextRewards = leveling.RewardsAt(catalog, level+1)

	return dto, nil
}
