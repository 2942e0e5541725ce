package command

import (
	"context"
	"log/slog"

	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/pkg/logger"
)

// notify announces a level-up according to the guild's notification mode.
// Delivery failures never propagate.
func (h *ProcessActivityHandler) notify(
	ctx context.Context,
	log *slog.Logger,
	settings leveling.GuildSettings,
	cmd ProcessActivityCommand,
	levelUp leveling.LevelUpResult,
) {
	if settings.NotificationMode == leveling.NotifyNone {
		return
	}

	username := cmd.Username
	if username == "" {
		username = "<@" + cmd.UserID + ">"
	}
	content := leveling.RenderLevelUpMessage(settings.TemplateOrDefault(), leveling.LevelUpMessageData{
		EarnedRewards: levelUp.Earned,
		GuildName:     cmd.GuildName,
		Level:         levelUp.Level,
		Username:      username,
	})

	switch settings.NotificationMode {
	case leveling.NotifyDM:
		if err := h.notifier.SendDirect(ctx, cmd.UserID, content); err != nil {
			log.WarnContext(ctx, "failed to send level-up DM", logger.Err(err))
		}

	case leveling.NotifyChannel:
		err := h.notifier.SendToChannel(ctx, cmd.Channel.ChannelID, content)
		if err == nil {
			return
		}
		log.WarnContext(ctx, "failed to send level-up message",
			logger.ChannelID(cmd.Channel.ChannelID), logger.Err(err))

		fallback := settings.NotificationFallbackChannelID
		if fallback == "" {
			return
		}

		err = h.notifier.SendToChannel(ctx, fallback, content)
		switch {
		case err == nil:
		case leveling.IsChannelNotFound(err):
			log.WarnContext(ctx, "level-up fallback channel no longer exists; clearing it",
				logger.ChannelID(fallback))
			if cerr := h.settings.ClearFallbackChannel(ctx, settings.GuildID); cerr != nil {
				log.WarnContext(ctx, "failed to clear fallback channel", logger.Err(cerr))
			}
		default:
			log.WarnContext(ctx, "failed to send level-up message to fallback channel",
				logger.ChannelID(fallback), logger.Err(err))
		}

	default:
		log.ErrorContext(ctx, "unknown notification mode", slog.String("mode", string(settings.NotificationMode)))
	}
}
