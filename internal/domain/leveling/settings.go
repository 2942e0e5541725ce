// Package leveling holds the XP leveling domain: the level formula, guild
// settings, rewards, channel overrides and the reward role reconciliation.
package leveling

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ChatSift/Social/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION MODE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationMode selects how a level-up is announced.
type NotificationMode string

const (
	NotifyNone    NotificationMode = "None"
	NotifyDM      NotificationMode = "DM"
	NotifyChannel NotificationMode = "Channel"
)

// ParseNotificationMode parses the stored representation. Unknown values are
// rejected rather than silently mapped to None.
func ParseNotificationMode(s string) (NotificationMode, error) {
	switch NotificationMode(s) {
	case NotifyNone, NotifyDM, NotifyChannel:
		return NotificationMode(s), nil
	case "":
		return NotifyNone, nil
	default:
		return "", shared.NewDomainError("leveling", "ParseNotificationMode", shared.ErrInvalidInput,
			fmt.Sprintf("unknown notification mode %q", s))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GUILD SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// Formula holds the quadratic level formula parameters.
type Formula struct {
	Base       int64
	Multiplier int64
}

// Validate reports whether the formula can be evaluated.
func (f Formula) Validate() error {
	if f.Base < 0 || f.Multiplier < 1 {
		return shared.NewDomainError("leveling", "Formula", shared.ErrInvalidArgument,
			fmt.Sprintf("formula requires base >= 0 and multiplier >= 1 (base=%d, multiplier=%d)", f.Base, f.Multiplier))
	}
	return nil
}

// GuildSettings is a fully configured guild. Values of this type only come
// out of SettingsRecord.Resolve.
type GuildSettings struct {
	GuildID string

	RequiredMessages int64
	// Timespan is the eligibility window. Zero means no window is configured.
	Timespan time.Duration
	XPGain   int64
	Formula  Formula

	NotificationMode              NotificationMode
	NotificationFallbackChannelID string
	NotificationMessage           string
}

// HasTimespan reports whether an eligibility window is configured.
func (s GuildSettings) HasTimespan() bool {
	return s.Timespan > 0
}

// TimespanSeconds returns the configured window in whole seconds.
func (s GuildSettings) TimespanSeconds() int64 {
	return int64(s.Timespan / time.Second)
}

// Validate checks the numeric fields the engine relies on. Operator input is
// range-checked when it is written; this catches anything that slipped by.
func (s GuildSettings) Validate() error {
	var problems []string
	if s.RequiredMessages < 1 {
		problems = append(problems, "requiredMessages must be >= 1")
	}
	if s.Timespan < 0 || (s.Timespan > 0 && s.Timespan < time.Second) {
		problems = append(problems, "requiredMessagesTimespan must be unset or >= 1s")
	}
	if s.XPGain < 1 {
		problems = append(problems, "xpGain must be >= 1")
	}
	if err := s.Formula.Validate(); err != nil {
		problems = append(problems, "requiredXpBase must be >= 0 and requiredXpMultiplier >= 1")
	}
	if len(problems) > 0 {
		return shared.NewDomainError("leveling", "ValidateSettings", shared.ErrInvalidArgument,
			strings.Join(problems, "; "))
	}
	return nil
}

// TemplateOrDefault returns the configured level-up message or the default.
func (s GuildSettings) TemplateOrDefault() string {
	if s.NotificationMessage == "" {
		return DefaultLevelUpMessage
	}
	return s.NotificationMessage
}

// ══════════════════════════════════════════════════════════════════════════════
// STORED SETTINGS → CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// SettingsRecord mirrors the stored row, where the numeric formula fields
// are nullable.
type SettingsRecord struct {
	GuildID string

	RequiredMessages         *int64
	RequiredMessagesTimespan *int64 // seconds
	XPGain                   *int64
	RequiredXPBase           *int64
	RequiredXPMultiplier     *int64

	LevelUpNotificationMode              string
	LevelUpNotificationFallbackChannelID *string
	LevelUpNotificationMessage           *string
}

// Configuration is either Complete or Partial.
type Configuration interface {
	configuration()
}

// Complete carries settings the engine can operate on.
type Complete struct {
	Settings GuildSettings
}

// Partial means at least one required numeric field is missing.
type Partial struct {
	GuildID string
	Missing []string
}

func (Complete) configuration() {}
func (Partial) configuration()  {}

// Resolve separates complete from partial configuration. It does not judge
// the numeric values themselves; GuildSettings.Validate does that.
func (r SettingsRecord) Resolve() (Configuration, error) {
	var missing []string
	for name, v := range map[string]*int64{
		"requiredMessages":     r.RequiredMessages,
		"xpGain":               r.XPGain,
		"requiredXpBase":       r.RequiredXPBase,
		"requiredXpMultiplier": r.RequiredXPMultiplier,
	} {
		if v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return Partial{GuildID: r.GuildID, Missing: missing}, nil
	}

	mode, err := ParseNotificationMode(r.LevelUpNotificationMode)
	if err != nil {
		return nil, err
	}

	s := GuildSettings{
		GuildID:          r.GuildID,
		RequiredMessages: *r.RequiredMessages,
		XPGain:           *r.XPGain,
		Formula: Formula{
			Base:       *r.RequiredXPBase,
			Multiplier: *r.RequiredXPMultiplier,
		},
		NotificationMode: mode,
	}
	if r.RequiredMessagesTimespan != nil {
		s.Timespan = time.Duration(*r.RequiredMessagesTimespan) * time.Second
	}
	if r.LevelUpNotificationFallbackChannelID != nil {
		s.NotificationFallbackChannelID = *r.LevelUpNotificationFallbackChannelID
	}
	if r.LevelUpNotificationMessage != nil {
		s.NotificationMessage = *r.LevelUpNotificationMessage
	}

	return Complete{Settings: s}, nil
}
