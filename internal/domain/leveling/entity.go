package leveling

import (
	"errors"

	"github.com/ChatSift/Social/internal/domain/shared"
)

// ErrChannelNotFound is returned by delivery adapters when a channel no
// longer exists.
var ErrChannelNotFound = shared.NewDomainError("leveling", "Deliver", shared.ErrNotFound, "channel not found")

// ErrSettingsNotFound is returned when a guild has no leveling settings.
var ErrSettingsNotFound = shared.NewDomainError("leveling", "FindSettings", shared.ErrNotFound, "guild is not configured")

// IsChannelNotFound reports whether err means the target channel is gone.
func IsChannelNotFound(err error) bool {
	return errors.Is(err, ErrChannelNotFound)
}

// UserProgress is the XP record of one member in one guild.
type UserProgress struct {
	GuildID string
	UserID  string
	XP      int64
	Ignored bool
}

// Reward grants RoleID once a member reaches Level. Clean rewards are
// dropped again once the member progresses past that level.
type Reward struct {
	GuildID string
	RoleID  string
	Level   int64
	Clean   bool
}

// ChannelOverride changes XP behaviour for activity in one channel or
// category.
type ChannelOverride struct {
	GuildID    string
	ChannelID  string
	Ignored    bool
	Multiplier *int64
}

// EffectiveMultiplier returns the multiplier, defaulting to 1.
func (c ChannelOverride) EffectiveMultiplier() int64 {
	if c.Multiplier == nil || *c.Multiplier < 1 {
		return 1
	}
	return *c.Multiplier
}

// RoleMultiplier scales XP gain for members holding RoleID.
type RoleMultiplier struct {
	GuildID    string
	RoleID     string
	Multiplier int64
}

// ChannelContext locates an activity in the channel tree. ParentID is the
// category (or, for threads, the thread's channel); GrandparentID is only
// set for threads and holds the category of the thread's channel.
type ChannelContext struct {
	ChannelID     string
	ParentID      string
	GrandparentID string
}

// Chain returns the non-empty ids from most to least specific.
func (c ChannelContext) Chain() []string {
	chain := make([]string, 0, 3)
	for _, id := range []string{c.ChannelID, c.ParentID, c.GrandparentID} {
		if id != "" {
			chain = append(chain, id)
		}
	}
	return chain
}

// MemberRole is a role currently held by a member.
type MemberRole struct {
	ID string
	// Managed roles are controlled by an integration and cannot be
	// assigned or removed by the bot.
	Managed bool
}

// LevelUpResult describes a level boundary crossing.
type LevelUpResult struct {
	GuildID string
	UserID  string
	Level   int64
	XP      int64
	// Earned holds the rewards whose level equals Level.
	Earned        []Reward
	TargetRoleIDs []string
}

