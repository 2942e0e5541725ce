// Package command contains the write side of the leveling core.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/domain/shared"
	"github.com/ChatSift/Social/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS ACTIVITY COMMAND
// Converts a qualifying activity event into an XP grant and, when a level
// boundary is crossed, a reward role update and a level-up notification.
// ══════════════════════════════════════════════════════════════════════════════

// ProcessActivityCommand describes one activity event.
type ProcessActivityCommand struct {
	GuildID string
	UserID  string

	// Channel locates the activity; its chain is checked for overrides.
	Channel leveling.ChannelContext

	// EventID identifies the event (the message id).
	EventID string

	// Timestamp is when the event happened. Zero means "now".
	Timestamp time.Time

	// RoleIDs are the roles the member held when the event happened. They
	// select the role multiplier.
	RoleIDs []string

	// Username and GuildName fill the level-up message. Username defaults
	// to a mention of the member.
	Username  string
	GuildName string

	// CorrelationID for tracing. Generated when empty.
	CorrelationID string
}

// Validate validates the command.
func (c ProcessActivityCommand) Validate() error {
	switch {
	case c.GuildID == "":
		return errors.New("process_activity: guild_id is required")
	case c.UserID == "":
		return errors.New("process_activity: user_id is required")
	case c.EventID == "":
		return errors.New("process_activity: event_id is required")
	case c.Channel.ChannelID == "":
		return errors.New("process_activity: channel_id is required")
	}
	return nil
}

// EligibilityChecker decides whether an event counts toward XP gain.
type EligibilityChecker interface {
	Admit(ctx context.Context, settings leveling.GuildSettings, guildID, userID, eventID string, eventTime time.Time) (bool, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProcessActivityDeps groups the collaborators of the handler.
type ProcessActivityDeps struct {
	Settings        leveling.SettingsRepository
	Progress        leveling.ProgressRepository
	Rewards         leveling.RewardRepository
	Channels        leveling.ChannelRepository
	RoleMultipliers leveling.RoleMultiplierRepository // optional
	Roles           leveling.RoleService
	Notifier        leveling.Notifier
	Eligibility     EligibilityChecker
	Asserter        *shared.Asserter
	Logger          *slog.Logger
}

// ProcessActivityHandler is the leveling engine. It is the only entry point
// the message ingestion path calls.
type ProcessActivityHandler struct {
	settings        leveling.SettingsRepository
	progress        leveling.ProgressRepository
	rewards         leveling.RewardRepository
	channels        leveling.ChannelRepository
	roleMultipliers leveling.RoleMultiplierRepository
	roles           leveling.RoleService
	notifier        leveling.Notifier
	eligibility     EligibilityChecker
	asserter        *shared.Asserter
	logger          *slog.Logger
	tracer          trace.Tracer
}

// NewProcessActivityHandler creates a new ProcessActivityHandler.
func NewProcessActivityHandler(deps ProcessActivityDeps) *ProcessActivityHandler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	asserter := deps.Asserter
	if asserter == nil {
		asserter = shared.NewAsserter(true, log)
	}

	return &ProcessActivityHandler{
		settings:        deps.Settings,
		progress:        deps.Progress,
		rewards:         deps.Rewards,
		channels:        deps.Channels,
		roleMultipliers: deps.RoleMultipliers,
		roles:           deps.Roles,
		notifier:        deps.Notifier,
		eligibility:     deps.Eligibility,
		asserter:        asserter,
		logger:          log.With(logger.Component("leveling")),
		tracer:          otel.Tracer("github.com/ChatSift/Social/internal/application/command"),
	}
}

// Handle processes one activity event. It returns the level-up that the
// event caused, or nil when XP was not granted or no boundary was crossed.
//
// Only a single boundary crossing is detected per event: a grant large
// enough to skip a level reports the first new level only.
func (h *ProcessActivityHandler) Handle(ctx context.Context, cmd ProcessActivityCommand) (result *leveling.LevelUpResult, err error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("process_activity: validation failed: %w", err)
	}
	if cmd.CorrelationID == "" {
		cmd.CorrelationID = uuid.NewString()
	}

	ctx, span := h.tracer.Start(ctx, "leveling.ProcessActivity", trace.WithAttributes(
		attribute.String("guild.id", cmd.GuildID),
		attribute.String("user.id", cmd.UserID),
		attribute.String("channel.id", cmd.Channel.ChannelID),
		attribute.String("correlation.id", cmd.CorrelationID),
	))
	defer func() {
		if result != nil {
			span.SetAttributes(attribute.Int64("leveling.new_level", result.Level))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := h.logger.With(
		logger.GuildID(cmd.GuildID),
		logger.UserID(cmd.UserID),
		logger.EventID(cmd.EventID),
		logger.CorrelationID(cmd.CorrelationID),
	)

	settings, ok, err := h.loadSettings(ctx, log, cmd.GuildID)
	if err != nil || !ok {
		return nil, err
	}

	user, err := h.progress.Ensure(ctx, cmd.GuildID, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("process_activity: failed to load user: %w", err)
	}
	if user.Ignored {
		log.DebugContext(ctx, "user is ignored")
		return nil, nil
	}

	override, err := h.channelOverride(ctx, cmd.GuildID, cmd.Channel)
	if err != nil {
		return nil, fmt.Errorf("process_activity: failed to load channel overrides: %w", err)
	}
	channelMultiplier := int64(1)
	if override != nil {
		if override.Ignored {
			log.DebugContext(ctx, "channel is ignored", logger.ChannelID(override.ChannelID))
			return nil, nil
		}
		channelMultiplier = override.EffectiveMultiplier()
	}

	admitted, err := h.eligibility.Admit(ctx, settings, cmd.GuildID, cmd.UserID, cmd.EventID, cmd.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("process_activity: eligibility check failed: %w", err)
	}
	if !admitted {
		return nil, nil
	}

	gain := settings.XPGain * channelMultiplier * h.roleMultiplier(ctx, log, cmd.GuildID, cmd.RoleIDs)

	newXP, err := h.progress.IncrementXP(ctx, cmd.GuildID, cmd.UserID, gain)
	if err != nil {
		return nil, fmt.Errorf("process_activity: failed to grant xp: %w", err)
	}
	log.DebugContext(ctx, "granted xp", slog.Int64("gain", gain), logger.XP(newXP))

	// Derive the previous total from the increment's result so concurrent
	// grants each judge their own boundary.
	oldLevel, err := leveling.LevelFor(settings.Formula, newXP-gain)
	if err != nil {
		return nil, err
	}
	requiredForNext, err := leveling.CumulativeXPFor(settings.Formula, oldLevel+1)
	if err != nil {
		return nil, err
	}
	if newXP < requiredForNext {
		return nil, nil
	}

	levelUp := leveling.LevelUpResult{
		GuildID: cmd.GuildID,
		UserID:  cmd.UserID,
		Level:   oldLevel + 1,
		XP:      newXP,
	}
	log = log.With(logger.Level(levelUp.Level))
	log.InfoContext(ctx, "member leveled up", logger.XP(newXP))

	// Earned rewards depend only on the catalog, so a failed role read or
	// update still lists them in the message. Without the catalog the member
	// keeps their roles and the message reports no rewards.
	catalog, err := h.rewards.ListByGuild(ctx, cmd.GuildID)
	if err != nil {
		log.WarnContext(ctx, "failed to load rewards; skipping role update", logger.Err(err))
	} else {
		levelUp.Earned = leveling.RewardsAt(catalog, levelUp.Level)
		h.reconcileRoles(ctx, log, &levelUp, catalog)
	}
	h.notify(ctx, log, settings, cmd, levelUp)

	return &levelUp, nil
}

// loadSettings returns the guild settings when the guild is fully and
// sanely configured. ok is false for every no-op case.
func (h *ProcessActivityHandler) loadSettings(ctx context.Context, log *slog.Logger, guildID string) (leveling.GuildSettings, bool, error) {
	rec, err := h.settings.Get(ctx, guildID)
	if errors.Is(err, leveling.ErrSettingsNotFound) {
		return leveling.GuildSettings{}, false, nil
	}
	if err != nil {
		return leveling.GuildSettings{}, false, fmt.Errorf("process_activity: failed to load settings: %w", err)
	}

	cfg, err := rec.Resolve()
	if err != nil {
		checkErr := h.asserter.Check(ctx, false,
			shared.WrapError("leveling", "ProcessActivity", shared.ErrInvariant, "stored settings are unreadable", err),
			logger.GuildID(guildID))
		return leveling.GuildSettings{}, false, checkErr
	}

	switch c := cfg.(type) {
	case leveling.Partial:
		log.DebugContext(ctx, "guild is partially configured", slog.Any("missing", c.Missing))
		return leveling.GuildSettings{}, false, nil
	case leveling.Complete:
		if verr := c.Settings.Validate(); verr != nil {
			checkErr := h.asserter.Check(ctx, false,
				shared.WrapError("leveling", "ProcessActivity", shared.ErrInvariant,
					"settings have bad integers; refusing to grant xp", verr),
				logger.GuildID(guildID))
			return leveling.GuildSettings{}, false, checkErr
		}
		return c.Settings, true, nil
	default:
		return leveling.GuildSettings{}, false, fmt.Errorf("process_activity: unexpected configuration %T", cfg)
	}
}

// channelOverride returns the first override found walking from the
// channel up to its grandparent, or nil.
func (h *ProcessActivityHandler) channelOverride(ctx context.Context, guildID string, channel leveling.ChannelContext) (*leveling.ChannelOverride, error) {
	chain := channel.Chain()
	overrides, err := h.channels.FindByIDs(ctx, guildID, chain)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]leveling.ChannelOverride, len(overrides))
	for _, o := range overrides {
		byID[o.ChannelID] = o
	}
	for _, id := range chain {
		if o, ok := byID[id]; ok {
			return &o, nil
		}
	}
	return nil, nil
}

// roleMultiplier returns the highest multiplier among roleIDs, or 1. A
// failed lookup falls back to 1 so the grant still happens.
func (h *ProcessActivityHandler) roleMultiplier(ctx context.Context, log *slog.Logger, guildID string, roleIDs []string) int64 {
	if h.roleMultipliers == nil || len(roleIDs) == 0 {
		return 1
	}

	multipliers, err := h.roleMultipliers.FindByIDs(ctx, guildID, roleIDs)
	if err != nil {
		log.WarnContext(ctx, "failed to load role multipliers", logger.Err(err))
		return 1
	}

	best := int64(1)
	for _, m := range multipliers {
		if m.Multiplier > best {
			best = m.Multiplier
		}
	}
	return best
}

// reconcileRoles replaces the member's roles with the reward target set.
// Failures are logged; the XP grant stands.
func (h *ProcessActivityHandler) reconcileRoles(ctx context.Context, log *slog.Logger, levelUp *leveling.LevelUpResult, catalog []leveling.Reward) {
	if len(catalog) == 0 {
		return
	}

	current, err := h.roles.MemberRoles(ctx, levelUp.GuildID, levelUp.UserID)
	if err != nil {
		log.WarnContext(ctx, "failed to read member roles; skipping role update", logger.Err(err))
		return
	}

	levelUp.TargetRoleIDs = leveling.ResolveRoles(
		leveling.RewardsUpTo(catalog, levelUp.Level),
		levelUp.Earned,
		current,
		catalog,
	)

	if err := h.roles.SetMemberRoles(ctx, levelUp.GuildID, levelUp.UserID, levelUp.TargetRoleIDs); err != nil {
		log.WarnContext(ctx, "failed to update member roles", logger.Err(err))
	}
}
